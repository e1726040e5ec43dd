package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"arenakit/adapters/jsonfile"
	mem "arenakit/adapters/memory"
	redisAdapter "arenakit/adapters/redis"
	sqlxAdapter "arenakit/adapters/sqlx"
	"arenakit/analytics"
	"arenakit/api/httpapi"
	"arenakit/arena"
	"arenakit/config"
	"arenakit/core"
	"arenakit/engine"
	"arenakit/integrations/kafka"
	"arenakit/integrations/webhook"
	"arenakit/realtime"
	"arenakit/simulate"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Arena     *engine.Arena
	Analytics *analytics.Collector
	Exporter  analytics.Exporter
	Simulator *simulate.Simulator
	Handler   http.Handler
	Server    *http.Server
}

// eventSinks are the outbound bridges subscribed to every arena topic.
type eventSinks struct {
	handlers []arena.Handler
}

func provideConfig(ctx context.Context, flags Flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case flags.Config != "":
		cfg, err = config.LoadFromFile(flags.Config)
	case flags.Profile != "":
		cfg, err = config.LoadProfile(flags.Profile)
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flags.Addr != "" {
		cfg.Server.Address = flags.Addr
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg, os.Stdout, os.Stderr)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(cfg *config.Config) (engine.Storage, func(), error) {
	return setupStorage(cfg)
}

func provideCollector(cfg *config.Config) *analytics.Collector {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewCollector()
}

func provideExporter(cfg *config.Config, logger *slog.Logger) (analytics.Exporter, func()) {
	if !cfg.Analytics.Enabled {
		return nil, func() {}
	}
	var exp analytics.Exporter = analytics.NewLogExporter(logger)
	if cfg.Analytics.Endpoint != "" {
		exp = analytics.NewMultiExporter(exp, analytics.NewHTTPExporter(cfg.Analytics.Endpoint, cfg.Analytics.APIKey, 1))
	}
	return exp, func() {
		if err := exp.Close(); err != nil {
			logger.Warn("closing analytics exporter", "error", err)
		}
	}
}

func provideSinks(cfg *config.Config, logger *slog.Logger) (*eventSinks, func(), error) {
	sinks := &eventSinks{}
	cleanup := func() {}
	if wh := cfg.Integrations.Webhook; len(wh.Endpoints) > 0 {
		s := webhook.New(wh.Endpoints,
			webhook.WithClient(&http.Client{Timeout: wh.Timeout}),
			webhook.WithLogger(logger))
		sinks.handlers = append(sinks.handlers, s.Handle)
	}
	if kc := cfg.Integrations.Kafka; kc.Enabled {
		s, err := kafka.New(kafka.Config{
			Brokers:  kc.Brokers,
			Topic:    kc.Topic,
			ClientID: kc.ClientID,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks.handlers = append(sinks.handlers, s.Handle)
		cleanup = func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing kafka producer", "error", err)
			}
		}
	}
	return sinks, cleanup, nil
}

func provideArena(ctx context.Context, cfg *config.Config, logger *slog.Logger, storage engine.Storage, hub *realtime.Hub, collector *analytics.Collector, sinks *eventSinks) (*engine.Arena, func(), error) {
	mode := engine.DispatchSync
	if cfg.Sessions.AsyncDispatch {
		mode = engine.DispatchAsync
	}
	opts := []arena.Option{
		arena.WithStorage(storage),
		arena.WithRealtime(hub),
		arena.WithDispatchMode(mode),
		arena.WithServiceOptions(engine.WithLogger(logger)),
	}
	if collector != nil {
		opts = append(opts, arena.WithHandler(analytics.Handler(collector)))
	}
	for _, h := range sinks.handlers {
		opts = append(opts, arena.WithHandler(h))
	}
	if cfg.Storage.SeedSamplePlayers {
		opts = append(opts, arena.WithSeed(core.SamplePlayers()...))
	}
	a, err := arena.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, a.Close, nil
}

func provideSimulator(cfg *config.Config, a *engine.Arena, logger *slog.Logger) *simulate.Simulator {
	if !cfg.Simulation.Enabled {
		return nil
	}
	return simulate.New(a.Games, simulate.Config{
		Interval:            cfg.Simulation.Interval,
		ActivityProbability: cfg.Simulation.ActivityProbability,
		JoinProbability:     cfg.Simulation.JoinProbability,
	}, simulate.WithLogger(logger))
}

func provideHandler(cfg *config.Config, logger *slog.Logger, a *engine.Arena, hub *realtime.Hub, collector *analytics.Collector) http.Handler {
	return httpapi.NewMux(a, hub, httpapi.Options{
		PathPrefix:        cfg.Server.PathPrefix,
		AllowCORSOrigin:   cfg.Server.CORSOrigin,
		APIKeys:           cfg.Security.APIKeys,
		RateLimitEnabled:  cfg.Security.EnableRateLimit,
		RateLimitRPM:      cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:    cfg.Security.RateLimit.BurstSize,
		DefaultMaxPlayers: cfg.Sessions.DefaultMaxPlayers,
		WaitTimeout:       cfg.Sessions.WaitTimeout,
		Analytics:         collector,
		Logger:            logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *slog.Logger {
	var handler slog.Handler

	out := stdout
	if cfg.Logging.Output == "stderr" {
		out = stderr
	}
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the player storage adapter named by the configuration.
func setupStorage(cfg *config.Config) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "file":
		store, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case "redis":
		store, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
