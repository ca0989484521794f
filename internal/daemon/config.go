package daemon

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the refkeeper daemon.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Endpoints is the initial set of endpoint URLs to monitor.
	Endpoints []string

	// ConfigPath is the TOML file the endpoint set was loaded from.
	// When Watch is set, changes to this file are picked up at runtime.
	ConfigPath string

	// Watch enables live reloading of the endpoint set from ConfigPath.
	Watch bool

	// ProbeInterval is the delay between probes of a healthy endpoint.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe request.
	ProbeTimeout time.Duration

	// DebounceDelay is how long to wait after a config file change
	// before reloading, to coalesce editor write bursts.
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = 100 * time.Millisecond
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	for _, ep := range c.Endpoints {
		u, err := url.Parse(ep)
		if err != nil {
			return fmt.Errorf("endpoint %q: %w", ep, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint %q: unsupported scheme %q", ep, u.Scheme)
		}
	}
	if c.Watch && c.ConfigPath == "" {
		return fmt.Errorf("watch requires a config file path")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBoolFromString parses a bool from a string (environment variables
// come as strings) and sets the destination if valid.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return
	}
	*dst = b
}

// splitList splits a comma-separated environment value into a slice.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
