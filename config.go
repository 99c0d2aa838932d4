package beacon

import "time"

// Config holds the configuration for a Beacon instance.
type Config struct {
	// Concurrency bounds the retries the sweeper executes at once.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// SweepInterval is how often the sweeper looks for due retries.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`

	// SweepBatchSize is the maximum number of retries claimed at once.
	SweepBatchSize int `json:"sweep_batch_size" yaml:"sweep_batch_size" mapstructure:"sweep_batch_size"`

	// RunConcurrency bounds the workflow runs executing at once.
	RunConcurrency int `json:"run_concurrency" yaml:"run_concurrency" mapstructure:"run_concurrency"`

	// DefaultTimeout, DefaultMaxAttempts and DefaultBackoffBase apply to
	// endpoints registered without their own values.
	DefaultTimeout     time.Duration `json:"default_timeout" yaml:"default_timeout" mapstructure:"default_timeout"`
	DefaultMaxAttempts int           `json:"default_max_attempts" yaml:"default_max_attempts" mapstructure:"default_max_attempts"`
	DefaultBackoffBase time.Duration `json:"default_backoff_base" yaml:"default_backoff_base" mapstructure:"default_backoff_base"`

	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`

	// MaxResponseBody caps the response bytes kept per delivery.
	MaxResponseBody int64 `json:"max_response_body" yaml:"max_response_body" mapstructure:"max_response_body"`

	// UserAgent is sent on every delivery and webhook step.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// WebhookTimeout applies to webhook steps without their own timeout.
	WebhookTimeout time.Duration `json:"webhook_timeout" yaml:"webhook_timeout" mapstructure:"webhook_timeout"`

	// ResumeRuns relaunches runs left started by a previous process when
	// Start is called.
	ResumeRuns bool `json:"resume_runs" yaml:"resume_runs" mapstructure:"resume_runs"`

	// ShutdownTimeout is the maximum time Stop waits for in-flight runs
	// and sweeps.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        10,
		SweepInterval:      10 * time.Second,
		SweepBatchSize:     100,
		RunConcurrency:     50,
		DefaultTimeout:     30 * time.Second,
		DefaultMaxAttempts: 3,
		DefaultBackoffBase: time.Minute,
		MaxBackoff:         24 * time.Hour,
		MaxResponseBody:    4096,
		UserAgent:          "Beacon/1.0",
		WebhookTimeout:     30 * time.Second,
		ResumeRuns:         true,
		ShutdownTimeout:    30 * time.Second,
	}
}
