package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/beacon/extension"
)

// Config is the daemon configuration. Every key can be overridden from the
// environment with the BEACON_ prefix, e.g. BEACON_SERVER_ADDR.
type Config struct {
	Server  ServerConfig     `mapstructure:"server"`
	Logging LoggingConfig    `mapstructure:"logging"`
	Redis   RedisConfig      `mapstructure:"redis"`
	Beacon  extension.Config `mapstructure:"beacon"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig enables the shared rate limiter when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	def := extension.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("beacon.base_path", def.BasePath)
	v.SetDefault("beacon.disable_routes", false)
	v.SetDefault("beacon.disable_migrate", false)
	v.SetDefault("beacon.concurrency", def.Concurrency)
	v.SetDefault("beacon.sweep_interval", def.SweepInterval)
	v.SetDefault("beacon.sweep_batch_size", def.SweepBatchSize)
	v.SetDefault("beacon.run_concurrency", def.RunConcurrency)
	v.SetDefault("beacon.default_timeout", def.DefaultTimeout)
	v.SetDefault("beacon.default_max_attempts", def.DefaultMaxAttempts)
	v.SetDefault("beacon.default_backoff_base", def.DefaultBackoffBase)
	v.SetDefault("beacon.max_backoff", def.MaxBackoff)
	v.SetDefault("beacon.max_response_body", def.MaxResponseBody)
	v.SetDefault("beacon.user_agent", def.UserAgent)
	v.SetDefault("beacon.webhook_timeout", def.WebhookTimeout)
	v.SetDefault("beacon.resume_runs", def.ResumeRuns)
	v.SetDefault("beacon.shutdown_timeout", def.ShutdownTimeout)
}

// LoadConfig reads path (if non-empty) and then the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("beacon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}
