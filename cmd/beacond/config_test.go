package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Beacon.BasePath != "/beacon" {
		t.Errorf("base path = %q", cfg.Beacon.BasePath)
	}
	if cfg.Beacon.SweepInterval != 10*time.Second {
		t.Errorf("sweep interval = %v", cfg.Beacon.SweepInterval)
	}
	if cfg.Beacon.DefaultMaxAttempts != 3 {
		t.Errorf("max attempts = %d", cfg.Beacon.DefaultMaxAttempts)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("redis addr = %q, want empty", cfg.Redis.Addr)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacond.yaml")
	body := `
server:
  addr: ":9090"
logging:
  format: text
beacon:
  base_path: /crm
  sweep_interval: 2s
  default_max_attempts: 5
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BEACON_SERVER_ADDR", ":7070")
	t.Setenv("BEACON_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("env should override file: addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("format = %q", cfg.Logging.Format)
	}
	if cfg.Beacon.BasePath != "/crm" {
		t.Errorf("base path = %q", cfg.Beacon.BasePath)
	}
	if cfg.Beacon.SweepInterval != 2*time.Second {
		t.Errorf("sweep interval = %v", cfg.Beacon.SweepInterval)
	}
	if cfg.Beacon.DefaultMaxAttempts != 5 {
		t.Errorf("max attempts = %d", cfg.Beacon.DefaultMaxAttempts)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
