package daemon

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Endpoints     []string `toml:"endpoints"`
	Watch         *bool    `toml:"watch"`
	ProbeInterval string   `toml:"probe_interval"`
	ProbeTimeout  string   `toml:"probe_timeout"`
	DebounceDelay string   `toml:"debounce_delay"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.refkeeper/config.toml if the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".refkeeper", "config.toml")
	}
	return ""
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// ApplyFileConfig applies configuration from a file to the Config
// struct. It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("endpoint", fc.Endpoints, &cfg.Endpoints)
	if fc.Watch != nil && !changed["watch"] {
		cfg.Watch = *fc.Watch
	}
	if err := s.setDuration("probe-interval", fc.ProbeInterval, &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("debounce", fc.DebounceDelay, &cfg.DebounceDelay); err != nil {
		return err
	}
	return nil
}
