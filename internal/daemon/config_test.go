package daemon

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"http endpoint", func(c *Config) {
			c.Endpoints = []string{"http://localhost:8080/health"}
		}, false},
		{"https endpoint", func(c *Config) {
			c.Endpoints = []string{"https://example.com/health"}
		}, false},
		{"bad scheme", func(c *Config) {
			c.Endpoints = []string{"ftp://example.com"}
		}, true},
		{"not a url", func(c *Config) {
			c.Endpoints = []string{"::::"}
		}, true},
		{"watch without config path", func(c *Config) {
			c.Watch = true
		}, true},
		{"watch with config path", func(c *Config) {
			c.Watch = true
			c.ConfigPath = "/tmp/refkeeper.toml"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want 30s", cfg.ProbeInterval)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.DebounceDelay != 100*time.Millisecond {
		t.Errorf("DebounceDelay = %v, want 100ms", cfg.DebounceDelay)
	}

	// Explicit values survive.
	cfg = Config{ProbeInterval: time.Minute}
	cfg.SetDefaults()
	if cfg.ProbeInterval != time.Minute {
		t.Errorf("ProbeInterval = %v, want 1m", cfg.ProbeInterval)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("REFKEEPER_ENDPOINTS", "http://a.example/health, http://b.example/health")
	t.Setenv("REFKEEPER_PROBE_INTERVAL", "45s")
	t.Setenv("REFKEEPER_WATCH", "true")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if len(cfg.Endpoints) != 2 {
		t.Fatalf("Endpoints = %v, want 2 entries", cfg.Endpoints)
	}
	if cfg.Endpoints[1] != "http://b.example/health" {
		t.Errorf("Endpoints[1] = %q (whitespace not trimmed?)", cfg.Endpoints[1])
	}
	if cfg.ProbeInterval != 45*time.Second {
		t.Errorf("ProbeInterval = %v, want 45s", cfg.ProbeInterval)
	}
	if !cfg.Watch {
		t.Error("Watch = false, want true")
	}
}

func TestApplyEnvConfig_FlagPrecedence(t *testing.T) {
	t.Setenv("REFKEEPER_ENDPOINTS", "http://env.example/health")
	t.Setenv("REFKEEPER_PROBE_INTERVAL", "45s")

	cfg := DefaultConfig()
	cfg.Endpoints = []string{"http://flag.example/health"}
	cfg.ProbeInterval = 10 * time.Second

	changed := map[string]bool{"endpoint": true, "probe-interval": true}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0] != "http://flag.example/health" {
		t.Errorf("Endpoints = %v, want flag value preserved", cfg.Endpoints)
	}
	if cfg.ProbeInterval != 10*time.Second {
		t.Errorf("ProbeInterval = %v, want flag value preserved", cfg.ProbeInterval)
	}
}

func TestApplyEnvConfig_BadDuration(t *testing.T) {
	t.Setenv("REFKEEPER_PROBE_TIMEOUT", "not-a-duration")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err == nil {
		t.Error("ApplyEnvConfig() error = nil, want parse error")
	}
}
