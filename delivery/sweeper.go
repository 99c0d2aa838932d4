package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/beacon/observability"
)

// SweeperConfig holds retry sweeper configuration.
type SweeperConfig struct {
	// Interval between sweeps.
	Interval time.Duration

	// BatchSize is the maximum number of deliveries claimed per sweep.
	BatchSize int

	// Concurrency bounds the retries executed at once.
	Concurrency int

	Metrics *observability.Metrics
}

// Sweeper periodically retries deliveries whose NextRetryAt has passed.
type Sweeper struct {
	store    Store
	executor *Executor
	clock    clockwork.Clock
	config   SweeperConfig
	logger   *slog.Logger

	// sweepMu serializes sweeps within this instance.
	sweepMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a retry sweeper.
func NewSweeper(store Store, executor *Executor, clock clockwork.Clock, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &Sweeper{
		store:    store,
		executor: executor,
		clock:    clock,
		config:   cfg,
		logger:   logger,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(_ context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retry sweep failed", "error", err)
			}
		}
	}
}

// Sweep claims every due retry (in batches) and executes them. It returns
// the number of attempts made. Claimed deliveries are in StateProcessing
// until their attempt finishes, so no other sweep can pick them up.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	total := 0
	for {
		if ctx.Err() != nil {
			return total, nil
		}

		batch, err := s.store.ClaimRetries(ctx, s.clock.Now().UTC(), s.config.BatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		s.config.Metrics.RetryClaimed(len(batch))

		s.run(ctx, batch)
		total += len(batch)

		if len(batch) < s.config.BatchSize {
			return total, nil
		}
	}
}

func (s *Sweeper) run(ctx context.Context, batch []*Delivery) {
	sem := make(chan struct{}, s.config.Concurrency)
	var wg sync.WaitGroup

	for _, d := range batch {
		sem <- struct{}{}
		wg.Add(1)
		go func(d *Delivery) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.ErrorContext(ctx, "retry panicked", "delivery_id", d.ID, "panic", r)
				}
			}()

			s.logger.DebugContext(ctx, "retrying delivery",
				"delivery_id", d.ID,
				"attempt", d.AttemptNumber,
				"max_attempts", d.MaxAttempts,
			)
			if err := s.executor.Execute(ctx, d); err != nil {
				s.logger.ErrorContext(ctx, "retry execution failed",
					"delivery_id", d.ID,
					"error", err,
				)
			}
		}(d)
	}
	wg.Wait()
}
