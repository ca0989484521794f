package daemon

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (REFKEEPER_*). It respects flags that have been explicitly set
// (changed map). Returns an error if a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("endpoint", splitList(os.Getenv("REFKEEPER_ENDPOINTS")), &cfg.Endpoints)
	s.setString("config", os.Getenv("REFKEEPER_CONFIG"), &cfg.ConfigPath)

	if err := s.setDuration("probe-interval", os.Getenv("REFKEEPER_PROBE_INTERVAL"), &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("probe-timeout", os.Getenv("REFKEEPER_PROBE_TIMEOUT"), &cfg.ProbeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("debounce", os.Getenv("REFKEEPER_DEBOUNCE"), &cfg.DebounceDelay); err != nil {
		return err
	}

	s.setBoolFromString("watch", os.Getenv("REFKEEPER_WATCH"), &cfg.Watch)

	return nil
}
