package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

// loadFromEnv overlays ARENAKIT_* variables onto cfg. Unset variables keep
// the current value. List entries are trimmed and blanks dropped.
func loadFromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return err
	}
	cfg.Security.APIKeys = trimList(cfg.Security.APIKeys)
	cfg.Integrations.Webhook.Endpoints = trimList(cfg.Integrations.Webhook.Endpoints)
	cfg.Integrations.Kafka.Brokers = trimList(cfg.Integrations.Kafka.Brokers)
	if attrs := cfg.Logging.Attributes; attrs != nil {
		cfg.Logging.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Logging.Attributes[k] = strings.TrimSpace(v)
			}
		}
	}
	return nil
}

func trimList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
