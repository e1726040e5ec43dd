package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arenakit/core"
)

// Arena composes the rating, session, game and achievement services over
// one event bus and one lock table, and runs the match outcome flow.
type Arena struct {
	Ratings      *RatingService
	Sessions     *SessionService
	Games        *GameService
	Achievements *AchievementService

	bus *EventBus
	log *slog.Logger
}

// NewArena wires the services. A nil rules engine selects the default catalog.
func NewArena(ctx context.Context, storage Storage, sessions SessionStore, games GameStore, rules RuleEngine, bus *EventBus, opts ...ServiceOption) (*Arena, error) {
	if storage == nil || sessions == nil || games == nil || bus == nil {
		panic("NewArena requires non-nil stores and bus")
	}
	opts = append([]ServiceOption{WithKeyLock(NewKeyLock())}, opts...)
	ratings, err := NewRatingService(ctx, storage, bus, opts...)
	if err != nil {
		return nil, err
	}
	cfg := newServiceConfig(opts)
	return &Arena{
		Ratings:      ratings,
		Sessions:     NewSessionService(sessions, bus, opts...),
		Games:        NewGameService(games, bus, opts...),
		Achievements: NewAchievementService(storage, rules, bus, opts...),
		bus:          bus,
		log:          cfg.logger.With("component", "arena"),
	}, nil
}

// MatchResult reports everything a finished session changed.
type MatchResult struct {
	Session  core.Session                         `json:"session"`
	Ratings  []RatingResult                       `json:"ratings"`
	Unlocked map[core.PlayerID][]core.Achievement `json:"unlocked"`
}

// JoinSession adds a roster player to a session.
func (a *Arena) JoinSession(ctx context.Context, id core.SessionID, player core.PlayerID) (core.Session, error) {
	p, err := a.Ratings.GetPlayer(ctx, player)
	if err != nil {
		return core.Session{}, err
	}
	return a.Sessions.JoinSession(ctx, id, p.Participant())
}

// CreateGame opens a lobby hosted by a roster player.
func (a *Arena) CreateGame(ctx context.Context, name, description string, maxPlayers int, host core.PlayerID) (core.Game, error) {
	p, err := a.Ratings.GetPlayer(ctx, host)
	if err != nil {
		return core.Game{}, err
	}
	return a.Games.CreateGame(ctx, name, description, maxPlayers, p.Participant())
}

// JoinGame adds a roster player to a lobby.
func (a *Arena) JoinGame(ctx context.Context, id core.GameID, player core.PlayerID) (core.Game, error) {
	p, err := a.Ratings.GetPlayer(ctx, player)
	if err != nil {
		return core.Game{}, err
	}
	return a.Games.JoinGame(ctx, id, p.Participant())
}

// FinishSession ends the session, rates the winner against every other
// participant in join order, then checks achievements for all of them.
// Once the session has ended, the rating and achievement writes run to
// completion even if ctx is cancelled.
func (a *Arena) FinishSession(ctx context.Context, id core.SessionID, winner core.PlayerID) (MatchResult, error) {
	winner = core.CanonicalPlayerID(winner)
	sess, err := a.Sessions.EndSession(ctx, id, winner)
	if err != nil {
		return MatchResult{}, err
	}
	ctx = context.WithoutCancel(ctx)
	res := MatchResult{Session: sess, Unlocked: map[core.PlayerID][]core.Achievement{}}
	log := a.log.With("session_id", id, "winner", winner)

	if _, err := a.Ratings.GetPlayer(ctx, winner); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return res, err
		}
		log.Warn("winner not in roster, skipping ratings")
	} else {
		for _, p := range sess.Players {
			if p.ID == winner {
				continue
			}
			rr, err := a.Ratings.UpdateRating(ctx, winner, p.ID, sess.GameID)
			if errors.Is(err, core.ErrNotFound) {
				log.Warn("participant not in roster, skipping rating", "player_id", p.ID)
				continue
			}
			if err != nil {
				return res, fmt.Errorf("rating %s against %s: %w", winner, p.ID, err)
			}
			res.Ratings = append(res.Ratings, rr)
		}
	}

	for _, p := range sess.Players {
		player, err := a.Ratings.GetPlayer(ctx, p.ID)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, err
		}
		got, err := a.Achievements.CheckAndUnlock(ctx, p.ID, player.Stats())
		if err != nil {
			return res, fmt.Errorf("achievements for %s: %w", p.ID, err)
		}
		if len(got) > 0 {
			res.Unlocked[p.ID] = got
		}
	}
	log.Info("match recorded", "ratings", len(res.Ratings), "unlocking_players", len(res.Unlocked))
	return res, nil
}

// Subscribe registers fn for one topic and returns its unsubscribe func.
func (a *Arena) Subscribe(typ core.EventType, fn func(context.Context, core.Event)) func() {
	return a.bus.Subscribe(typ, fn)
}

// SubscribeAll registers fn on every topic.
func (a *Arena) SubscribeAll(fn func(context.Context, core.Event)) func() {
	return a.bus.SubscribeAll(fn)
}

// Bus exposes the underlying event bus for bridges.
func (a *Arena) Bus() *EventBus { return a.bus }

// Close stops the event bus.
func (a *Arena) Close() { a.bus.Close() }
