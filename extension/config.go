package extension

import "github.com/xraph/beacon"

// Config holds configuration for the Beacon extension. Fields can be set
// programmatically via ExtOption functions or loaded from YAML configuration
// files (under the "beacon" key).
type Config struct {
	// Config embeds the core beacon configuration.
	beacon.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all admin API routes (default: "/beacon").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables automatic database migration on Init.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   beacon.DefaultConfig(),
		BasePath: "/beacon",
	}
}

// ToBeaconOptions converts the embedded Config into beacon.Option values.
// Zero fields fall back to the beacon defaults.
func (c Config) ToBeaconOptions() []beacon.Option {
	cfg := beacon.DefaultConfig()
	merge(&cfg, c.Config)
	return []beacon.Option{beacon.WithConfig(cfg)}
}

func merge(dst *beacon.Config, src beacon.Config) {
	if src.Concurrency > 0 {
		dst.Concurrency = src.Concurrency
	}
	if src.SweepInterval > 0 {
		dst.SweepInterval = src.SweepInterval
	}
	if src.SweepBatchSize > 0 {
		dst.SweepBatchSize = src.SweepBatchSize
	}
	if src.RunConcurrency > 0 {
		dst.RunConcurrency = src.RunConcurrency
	}
	if src.DefaultTimeout > 0 {
		dst.DefaultTimeout = src.DefaultTimeout
	}
	if src.DefaultMaxAttempts > 0 {
		dst.DefaultMaxAttempts = src.DefaultMaxAttempts
	}
	if src.DefaultBackoffBase > 0 {
		dst.DefaultBackoffBase = src.DefaultBackoffBase
	}
	if src.MaxBackoff > 0 {
		dst.MaxBackoff = src.MaxBackoff
	}
	if src.MaxResponseBody > 0 {
		dst.MaxResponseBody = src.MaxResponseBody
	}
	if src.UserAgent != "" {
		dst.UserAgent = src.UserAgent
	}
	if src.WebhookTimeout > 0 {
		dst.WebhookTimeout = src.WebhookTimeout
	}
	if src.ShutdownTimeout > 0 {
		dst.ShutdownTimeout = src.ShutdownTimeout
	}
	dst.ResumeRuns = src.ResumeRuns
}
