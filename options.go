package beacon

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/action"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/ratelimit"
	"github.com/xraph/beacon/store"
)

// Option configures a Beacon instance.
type Option func(*Beacon) error

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(b *Beacon) error {
		b.store = s
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(b *Beacon) error {
		b.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Beacon) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// WithClock sets the clock every component reads time from and waits on.
func WithClock(c clockwork.Clock) Option {
	return func(b *Beacon) error {
		b.clock = c
		return nil
	}
}

// WithTransport sets the outbound transport for deliveries and webhook steps.
func WithTransport(t delivery.Transport) Option {
	return func(b *Beacon) error {
		b.transport = t
		return nil
	}
}

// WithLimiter sets the per-target rate limiter. The default is an
// in-process ratelimit.Memory.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(b *Beacon) error {
		b.limiter = l
		return nil
	}
}

// WithNotifier sets where message steps send. The default only logs.
func WithNotifier(n action.Notifier) Option {
	return func(b *Beacon) error {
		b.notifier = n
		return nil
	}
}

// WithAction registers a custom action, replacing the built-in one of the
// same kind.
func WithAction(a action.Action) Option {
	return func(b *Beacon) error {
		b.actions = append(b.actions, a)
		return nil
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Beacon) error {
		b.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans.
func WithTracer(t *observability.Tracer) Option {
	return func(b *Beacon) error {
		b.tracer = t
		return nil
	}
}

// WithConcurrency sets how many retries execute at once.
func WithConcurrency(n int) Option {
	return func(b *Beacon) error {
		b.config.Concurrency = n
		return nil
	}
}

// WithRunConcurrency sets how many workflow runs execute at once.
func WithRunConcurrency(n int) Option {
	return func(b *Beacon) error {
		b.config.RunConcurrency = n
		return nil
	}
}

// WithSweepInterval sets how often due retries are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Beacon) error {
		b.config.SweepInterval = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time Stop waits.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Beacon) error {
		b.config.ShutdownTimeout = d
		return nil
	}
}
