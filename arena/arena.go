// Package arena assembles an engine.Arena with its stores and event bridges.
package arena

import (
	"context"
	"errors"
	"fmt"

	mem "arenakit/adapters/memory"
	"arenakit/core"
	"arenakit/engine"
	"arenakit/realtime"
)

// Option configures the Arena builder.
type Option func(*config)

// Handler receives every event the arena publishes.
type Handler func(context.Context, core.Event)

type config struct {
	storage  engine.Storage
	sessions engine.SessionStore
	games    engine.GameStore
	mode     engine.DispatchMode
	rules    engine.RuleEngine
	hub      *realtime.Hub
	handlers []Handler
	seed     []core.Player
	svcOpts  []engine.ServiceOption
}

// WithStorage sets the player and achievement persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithSessionStore overrides the in-memory session store.
func WithSessionStore(s engine.SessionStore) Option { return func(c *config) { c.sessions = s } }

// WithGameStore overrides the in-memory game store.
func WithGameStore(s engine.GameStore) Option { return func(c *config) { c.games = s } }

// WithRuleEngine sets the achievement rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all arena events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHandler subscribes h to every topic, e.g. a webhook or Kafka sink.
func WithHandler(h Handler) Option {
	return func(c *config) {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
}

// WithSeed registers players that are missing from storage at startup.
func WithSeed(players ...core.Player) Option {
	return func(c *config) { c.seed = append(c.seed, players...) }
}

// WithServiceOptions passes clock, id, logger or lock overrides to every service.
func WithServiceOptions(opts ...engine.ServiceOption) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, opts...) }
}

// New builds a configured Arena. If not provided, defaults are used:
//   - storage, sessions and games: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(ctx context.Context, opts ...Option) (*engine.Arena, error) {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if cfg.sessions == nil {
		cfg.sessions = mem.NewSessions()
	}
	if cfg.games == nil {
		cfg.games = mem.NewGames()
	}

	bus := engine.NewEventBus(cfg.mode)
	a, err := engine.NewArena(ctx, cfg.storage, cfg.sessions, cfg.games, cfg.rules, bus, cfg.svcOpts...)
	if err != nil {
		bus.Close()
		return nil, err
	}
	if cfg.hub != nil {
		a.SubscribeAll(cfg.hub.Broadcast)
	}
	for _, h := range cfg.handlers {
		a.SubscribeAll(h)
	}
	for _, p := range cfg.seed {
		if _, err := a.Ratings.AddPlayer(ctx, p); err != nil && !errors.Is(err, core.ErrAlreadyExists) {
			a.Close()
			return nil, fmt.Errorf("seeding %s: %w", p.ID, err)
		}
	}
	return a, nil
}
