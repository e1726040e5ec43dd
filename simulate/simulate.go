// Package simulate drives background lobby activity: bots drift in and out
// of waiting games so push consumers see a live lobby list.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"arenakit/core"
)

// Lobby is the slice of the game service the simulator drives.
type Lobby interface {
	ListOpenGames(ctx context.Context) ([]core.Game, error)
	JoinGame(ctx context.Context, id core.GameID, p core.Participant) (core.Game, error)
	LeaveGame(ctx context.Context, id core.GameID, player core.PlayerID) (core.Game, bool, error)
}

// Config controls the simulation cadence.
type Config struct {
	Interval time.Duration
	// ActivityProbability is the chance a waiting game changes on one tick.
	ActivityProbability float64
	// JoinProbability is the chance an active game gains a bot rather than loses one.
	JoinProbability float64
}

func DefaultConfig() Config {
	return Config{Interval: 10 * time.Second, ActivityProbability: 0.3, JoinProbability: 0.5}
}

const botPrefix = "bot-"

// Simulator joins and removes bot players on waiting games.
type Simulator struct {
	lobby Lobby
	sched Scheduler
	cfg   Config
	log   *slog.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	seq  int
	stop func()

	// seated holds the bots this simulator placed, per game.
	seated map[core.GameID]map[core.PlayerID]bool
}

type Option func(*Simulator)

func WithScheduler(s Scheduler) Option { return func(sim *Simulator) { sim.sched = s } }
func WithRand(r *rand.Rand) Option     { return func(sim *Simulator) { sim.rng = r } }
func WithLogger(l *slog.Logger) Option { return func(sim *Simulator) { sim.log = l } }

func New(lobby Lobby, cfg Config, opts ...Option) *Simulator {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	s := &Simulator{
		lobby:  lobby,
		sched:  TickerScheduler{},
		cfg:    cfg,
		log:    slog.Default(),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		seated: map[core.GameID]map[core.PlayerID]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "simulate")
	return s
}

// Start schedules ticks until ctx ends or Stop is called. Starting twice is a no-op.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	cancel := s.sched.Every(s.cfg.Interval, func() {
		if ctx.Err() != nil {
			return
		}
		s.Tick(ctx)
	})
	s.stop = cancel
	context.AfterFunc(ctx, s.Stop)
	s.log.Info("simulation started", "interval", s.cfg.Interval)
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		s.log.Info("simulation stopped")
	}
}

// Tick visits every waiting game once.
func (s *Simulator) Tick(ctx context.Context) {
	games, err := s.lobby.ListOpenGames(ctx)
	if err != nil {
		s.log.Warn("list open games", "error", err)
		return
	}
	s.prune(games)
	for _, g := range games {
		if !s.roll(s.cfg.ActivityProbability) {
			continue
		}
		if err := s.step(ctx, g); err != nil {
			// races with real players are expected; the next tick retries
			s.log.Debug("simulation step skipped", "game_id", g.ID, "error", err)
		}
	}
}

func (s *Simulator) step(ctx context.Context, g core.Game) error {
	if s.roll(s.cfg.JoinProbability) && g.ActivePlayers < g.MaxPlayers {
		bot := s.nextBot()
		if _, err := s.lobby.JoinGame(ctx, g.ID, bot); err != nil {
			return err
		}
		s.seat(g.ID, bot.ID, true)
		return nil
	}
	if g.ActivePlayers <= 1 {
		return nil
	}
	for i := len(g.Players) - 1; i >= 0; i-- {
		id := g.Players[i].ID
		if !s.Seated(g.ID, id) {
			continue
		}
		if _, _, err := s.lobby.LeaveGame(ctx, g.ID, id); err != nil {
			return err
		}
		s.seat(g.ID, id, false)
		return nil
	}
	return nil
}

// Seated reports whether this simulator placed player in game.
func (s *Simulator) Seated(game core.GameID, player core.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seated[game][player]
}

func (s *Simulator) seat(game core.GameID, player core.PlayerID, in bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in {
		if s.seated[game] == nil {
			s.seated[game] = map[core.PlayerID]bool{}
		}
		s.seated[game][player] = true
		return
	}
	delete(s.seated[game], player)
	if len(s.seated[game]) == 0 {
		delete(s.seated, game)
	}
}

// prune forgets games that are no longer open.
func (s *Simulator) prune(open []core.Game) {
	live := make(map[core.GameID]bool, len(open))
	for _, g := range open {
		live[g.ID] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.seated {
		if !live[id] {
			delete(s.seated, id)
		}
	}
}

func (s *Simulator) roll(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func (s *Simulator) nextBot() core.Participant {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return core.Participant{
		ID:       core.PlayerID(fmt.Sprintf("%s%d", botPrefix, n)),
		Username: fmt.Sprintf("Bot %d", n),
		Avatar:   "🤖",
	}
}
