package main

import (
	"github.com/fenwick-labs/stationrt/internal/config"
)

// loadConfig builds the effective Config: defaults, then configFile (if
// set), then environment overrides — matching config.LoadFromFile's own
// default-then-override contract.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}
