package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"arenakit/adapters/sqlx"
)

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}
	return joinErrs(errs)
}

var validAdapters = []string{"memory", "redis", "sql", "file"}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if s.SQL.Driver != sqlx.DriverPostgres && s.SQL.Driver != sqlx.DriverMySQL {
			errs = append(errs, fmt.Sprintf("sql config: driver must be %s or %s", sqlx.DriverPostgres, sqlx.DriverMySQL))
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}
	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
	validOutputs = []string{"stdout", "stderr"}
)

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

func (s *SessionsConfig) Validate() error {
	var errs []string
	if s.DefaultMaxPlayers < 2 {
		errs = append(errs, "default_max_players must be >= 2")
	}
	if s.WaitTimeout <= 0 {
		errs = append(errs, "wait_timeout must be positive")
	}
	return joinErrs(errs)
}

func validProbability(p float64) bool { return p >= 0 && p <= 1 }

func (s *SimulationConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if s.Interval <= 0 {
		errs = append(errs, "interval must be positive when simulation is enabled")
	}
	if !validProbability(s.ActivityProbability) {
		errs = append(errs, "activity_probability must be within [0, 1]")
	}
	if !validProbability(s.JoinProbability) {
		errs = append(errs, "join_probability must be within [0, 1]")
	}
	return joinErrs(errs)
}

func (a *AnalyticsConfig) Validate() error {
	if a.Enabled && a.ExportInterval <= 0 {
		return errors.New("export_interval must be positive when analytics are enabled")
	}
	return nil
}

func (i *IntegrationsConfig) Validate() error {
	var errs []string
	for n, ep := range i.Webhook.Endpoints {
		if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
			errs = append(errs, fmt.Sprintf("webhook.endpoints[%d] must be an http(s) URL", n))
		}
	}
	if len(i.Webhook.Endpoints) > 0 && i.Webhook.Timeout <= 0 {
		errs = append(errs, "webhook.timeout must be positive")
	}
	if i.Kafka.Enabled {
		if len(i.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers cannot be empty when kafka is enabled")
		}
		if strings.TrimSpace(i.Kafka.Topic) == "" {
			errs = append(errs, "kafka.topic cannot be empty when kafka is enabled")
		}
	}
	return joinErrs(errs)
}
