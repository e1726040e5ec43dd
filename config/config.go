package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"arenakit/adapters/redis"
	"arenakit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" env:"ARENAKIT_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"ARENAKIT_PROFILE"`

	Server       ServerConfig       `json:"server" yaml:"server"`
	Storage      StorageConfig      `json:"storage" yaml:"storage"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
	Security     SecurityConfig     `json:"security" yaml:"security"`
	Sessions     SessionsConfig     `json:"sessions" yaml:"sessions"`
	Simulation   SimulationConfig   `json:"simulation" yaml:"simulation"`
	Analytics    AnalyticsConfig    `json:"analytics" yaml:"analytics"`
	Integrations IntegrationsConfig `json:"integrations" yaml:"integrations"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"ARENAKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"ARENAKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" env:"ARENAKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"ARENAKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"ARENAKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"ARENAKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"ARENAKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"ARENAKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration. Sessions and games are
// always in memory; the adapter persists players, history and achievements.
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"ARENAKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty"`
	// SeedSamplePlayers registers the demo roster when it is missing.
	SeedSamplePlayers bool `json:"seed_sample_players" yaml:"seed_sample_players" env:"ARENAKIT_STORAGE_SEED"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" env:"ARENAKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"ARENAKIT_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"ARENAKIT_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"ARENAKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"ARENAKIT_LOG_ATTRIBUTES" envKeyValSeparator:"="`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"ARENAKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"ARENAKIT_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" env:"ARENAKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" yaml:"burst_size" env:"ARENAKIT_SECURITY_RATE_LIMIT_BURST"`
}

// SessionsConfig holds defaults applied by the transport.
type SessionsConfig struct {
	DefaultMaxPlayers int           `json:"default_max_players" yaml:"default_max_players" env:"ARENAKIT_SESSIONS_DEFAULT_MAX_PLAYERS"`
	WaitTimeout       time.Duration `json:"wait_timeout" yaml:"wait_timeout" env:"ARENAKIT_SESSIONS_WAIT_TIMEOUT"`
	AsyncDispatch     bool          `json:"async_dispatch" yaml:"async_dispatch" env:"ARENAKIT_SESSIONS_ASYNC_DISPATCH"`
}

// SimulationConfig controls the background lobby bots.
type SimulationConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled" env:"ARENAKIT_SIMULATION_ENABLED"`
	Interval            time.Duration `json:"interval" yaml:"interval" env:"ARENAKIT_SIMULATION_INTERVAL"`
	ActivityProbability float64       `json:"activity_probability" yaml:"activity_probability" env:"ARENAKIT_SIMULATION_ACTIVITY_PROBABILITY"`
	JoinProbability     float64       `json:"join_probability" yaml:"join_probability" env:"ARENAKIT_SIMULATION_JOIN_PROBABILITY"`
}

// AnalyticsConfig controls event counters and their periodic export.
type AnalyticsConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled" env:"ARENAKIT_ANALYTICS_ENABLED"`
	ExportInterval time.Duration `json:"export_interval" yaml:"export_interval" env:"ARENAKIT_ANALYTICS_EXPORT_INTERVAL"`
	Endpoint       string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"ARENAKIT_ANALYTICS_ENDPOINT"`
	APIKey         string        `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"ARENAKIT_ANALYTICS_API_KEY"`
}

// IntegrationsConfig holds outbound event sinks.
type IntegrationsConfig struct {
	Webhook WebhookConfig `json:"webhook" yaml:"webhook"`
	Kafka   KafkaConfig   `json:"kafka" yaml:"kafka"`
}

type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" yaml:"endpoints,omitempty" env:"ARENAKIT_WEBHOOK_ENDPOINTS"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"ARENAKIT_WEBHOOK_TIMEOUT"`
}

type KafkaConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled" env:"ARENAKIT_KAFKA_ENABLED"`
	Brokers  []string `json:"brokers,omitempty" yaml:"brokers,omitempty" env:"ARENAKIT_KAFKA_BROKERS"`
	Topic    string   `json:"topic" yaml:"topic" env:"ARENAKIT_KAFKA_TOPIC"`
	ClientID string   `json:"client_id" yaml:"client_id" env:"ARENAKIT_KAFKA_CLIENT_ID"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) (fileFormat, error) {
	if path == "" {
		return 0, errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	var format fileFormat
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json":
		format = formatJSON
	case ".yaml", ".yml":
		format = formatYAML
	default:
		return 0, errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return 0, fmt.Errorf("config file not accessible: %w", err)
	}
	return format, nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Environment
// variables override file values.
func LoadFromFile(path string) (*Config, error) {
	format, err := validateConfigPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := cfg.decode(format, data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(format fileFormat, data []byte) error {
	if format == formatYAML {
		return yaml.Unmarshal(data, c)
	}
	return json.Unmarshal(data, c)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/arenakit.json",
			},
			SeedSamplePlayers: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Sessions: SessionsConfig{
			DefaultMaxPlayers: 4,
			WaitTimeout:       30 * time.Second,
			AsyncDispatch:     true,
		},
		Simulation: SimulationConfig{
			Enabled:             false,
			Interval:            10 * time.Second,
			ActivityProbability: 0.3,
			JoinProbability:     0.5,
		},
		Analytics: AnalyticsConfig{
			Enabled:        true,
			ExportInterval: time.Hour,
		},
		Integrations: IntegrationsConfig{
			Webhook: WebhookConfig{Timeout: 2 * time.Second},
			Kafka:   KafkaConfig{Topic: "arena-events", ClientID: "arenakit"},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		err  error
	}{
		{"server", c.Server.Validate()},
		{"storage", c.Storage.Validate()},
		{"logging", c.Logging.Validate()},
		{"security", c.Security.Validate()},
		{"sessions", c.Sessions.Validate()},
		{"simulation", c.Simulation.Validate()},
		{"analytics", c.Analytics.Validate()},
		{"integrations", c.Integrations.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Analytics.APIKey != "" {
		cfg.Analytics.APIKey = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
