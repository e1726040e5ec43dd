package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ServiceOption configures the engine services.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	locks  *KeyLock
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(c *serviceConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides the uuid-based id source.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(c *serviceConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithKeyLock shares one lock table between services.
func WithKeyLock(l *KeyLock) ServiceOption {
	return func(c *serviceConfig) {
		if l != nil {
			c.locks = l
		}
	}
}

func newServiceConfig(opts []ServiceOption) serviceConfig {
	cfg := serviceConfig{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		locks:  NewKeyLock(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}
