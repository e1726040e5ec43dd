package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the preset for a named deployment profile, with
// environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	switch name {
	case "development", "default":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Simulation.Enabled = true
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Server.Address = "127.0.0.1:0"
		cfg.Sessions.AsyncDispatch = false
		cfg.Sessions.WaitTimeout = 5 * time.Second
		cfg.Analytics.Enabled = false
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.Security.EnableRateLimit = true
	case "production":
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = "sql"
		cfg.Storage.SeedSamplePlayers = false
		cfg.Server.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 120
		cfg.Security.RateLimit.BurstSize = 20
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg.Profile = name

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for profile %s: %w", name, err)
	}
	return cfg, nil
}
