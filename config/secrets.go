package config

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrSecretNotFound is returned when a store has no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves credentials kept out of config files.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// Secret keys consulted by LoadSecrets.
const (
	SecretRedisPassword = "ARENAKIT_SECRET_REDIS_PASSWORD"
	SecretSQLDSN        = "ARENAKIT_SECRET_SQL_DSN"
	SecretAnalyticsKey  = "ARENAKIT_SECRET_ANALYTICS_API_KEY"
)

// LoadSecrets fills credentials from store. In production a storage secret
// required by the selected adapter must be present.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	c.Storage.Redis.Password = store.GetWithDefault(ctx, SecretRedisPassword, c.Storage.Redis.Password)
	c.Analytics.APIKey = store.GetWithDefault(ctx, SecretAnalyticsKey, c.Analytics.APIKey)

	dsn, err := store.Get(ctx, SecretSQLDSN)
	switch {
	case err == nil:
		c.Storage.SQL.DSN = dsn
	case c.Environment == EnvProduction && c.Storage.Adapter == "sql":
		return fmt.Errorf("production sql storage: %w", err)
	}
	return nil
}

// LoadSecretsFromEnv is LoadSecrets over the process environment.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}
