package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arenakit/core"
	"arenakit/leaderboard"
)

// RatingResult is the outcome of one rated game.
type RatingResult struct {
	Winner core.Player `json:"winner"`
	Loser  core.Player `json:"loser"`
	Delta  int64       `json:"rating_change"`
}

// RatingService owns the roster and derives the leaderboard from it.
type RatingService struct {
	store PlayerStore
	board leaderboard.Board
	bus   *EventBus
	locks *KeyLock
	log   *slog.Logger
	now   func() time.Time
}

// NewRatingService loads the roster into the leaderboard board.
func NewRatingService(ctx context.Context, store PlayerStore, bus *EventBus, opts ...ServiceOption) (*RatingService, error) {
	if store == nil || bus == nil {
		panic("NewRatingService requires non-nil store and bus")
	}
	cfg := newServiceConfig(opts)
	r := &RatingService{
		store: store,
		board: leaderboard.NewSkipList(),
		bus:   bus,
		locks: cfg.locks,
		log:   cfg.logger.With("component", "rating"),
		now:   cfg.now,
	}
	players, err := store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	for _, p := range players {
		r.board.Update(p.ID, p.Rating)
	}
	return r, nil
}

// AddPlayer registers a new player in the roster.
func (r *RatingService) AddPlayer(ctx context.Context, p core.Player) (core.Player, error) {
	id, err := core.NormalizePlayerID(p.ID)
	if err != nil {
		return core.Player{}, err
	}
	p.ID = id
	if p.Level == 0 {
		p.Level = core.CalculateLevel(p.Experience)
	}
	if err := p.Validate(); err != nil {
		return core.Player{}, err
	}
	if p.LastActive.IsZero() {
		p.LastActive = r.now()
	}
	err = r.locks.Do(ctx, func() error {
		if err := r.store.CreatePlayer(ctx, p); err != nil {
			return err
		}
		r.board.Update(p.ID, p.Rating)
		return nil
	}, playerKey(id))
	if err != nil {
		r.log.Debug("add player rejected", "player_id", id, "error", err)
		return core.Player{}, err
	}
	r.log.Info("player registered", "player_id", p.ID, "rating", p.Rating)
	r.publishRoster(ctx, p.ID)
	return p, nil
}

// UpdateRating applies an Elo update for one decided game.
func (r *RatingService) UpdateRating(ctx context.Context, winnerID, loserID core.PlayerID, gameID string) (RatingResult, error) {
	winnerID, loserID = core.CanonicalPlayerID(winnerID), core.CanonicalPlayerID(loserID)
	if winnerID == loserID {
		return RatingResult{}, fmt.Errorf("%w: winner and loser are both %s", core.ErrInvalidArgument, winnerID)
	}
	var (
		res     RatingResult
		history []core.RatingChange
	)
	err := r.locks.Do(ctx, func() error {
		winner, err := r.store.GetPlayer(ctx, winnerID)
		if err != nil {
			return err
		}
		loser, err := r.store.GetPlayer(ctx, loserID)
		if err != nil {
			return err
		}

		delta := core.RatingDelta(winner.Rating, loser.Rating)
		now := r.now()
		winner.Rating += delta
		loser.Rating = core.ApplyLoss(loser.Rating, delta)
		winner.GamesPlayed++
		winner.GamesWon++
		loser.GamesPlayed++
		winner.LastActive, loser.LastActive = now, now

		history = []core.RatingChange{
			{PlayerID: winner.ID, Time: now, Rating: winner.Rating, Delta: delta, GameID: gameID},
			{PlayerID: loser.ID, Time: now, Rating: loser.Rating, Delta: -delta, GameID: gameID},
		}
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := r.store.SavePlayers(ctx, []core.Player{winner, loser}, history); err != nil {
			return fmt.Errorf("saving ratings: %w", err)
		}
		r.board.Update(winner.ID, winner.Rating)
		r.board.Update(loser.ID, loser.Rating)
		res = RatingResult{Winner: winner, Loser: loser, Delta: delta}
		return nil
	}, playerKey(winnerID), playerKey(loserID))
	if err != nil {
		r.log.Debug("rating update rejected", "winner", winnerID, "loser", loserID, "error", err)
		return RatingResult{}, err
	}

	r.log.Info("rating updated", "winner", winnerID, "loser", loserID, "delta", res.Delta, "game_id", gameID)
	r.bus.Publish(ctx, core.NewRatingChanged(history))
	r.publishRoster(ctx, winnerID)
	return res, nil
}

// AddExperience credits xp and raises the level when the curve allows. Levels never drop.
func (r *RatingService) AddExperience(ctx context.Context, id core.PlayerID, xp int64) (core.Player, error) {
	id = core.CanonicalPlayerID(id)
	if xp <= 0 {
		return core.Player{}, fmt.Errorf("%w: xp must be positive", core.ErrInvalidArgument)
	}
	var p core.Player
	err := r.locks.Do(ctx, func() error {
		var err error
		if p, err = r.store.GetPlayer(ctx, id); err != nil {
			return err
		}
		total, err := core.AddSafe(p.Experience, xp)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
		}
		p.Experience = total
		if lvl := core.CalculateLevel(p.Experience); lvl > p.Level {
			r.log.Info("level up", "player_id", id, "from", p.Level, "to", lvl)
			p.Level = lvl
		}
		p.LastActive = r.now()
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := r.store.SavePlayers(ctx, []core.Player{p}, nil); err != nil {
			return fmt.Errorf("saving experience: %w", err)
		}
		return nil
	}, playerKey(id))
	if err != nil {
		return core.Player{}, err
	}
	r.publishRoster(ctx, id)
	return p, nil
}

// GetPlayer returns a copy of a roster record.
func (r *RatingService) GetPlayer(ctx context.Context, id core.PlayerID) (core.Player, error) {
	return r.store.GetPlayer(ctx, core.CanonicalPlayerID(id))
}

// ListPlayers returns the roster in insertion order.
func (r *RatingService) ListPlayers(ctx context.Context) ([]core.Player, error) {
	return r.store.ListPlayers(ctx)
}

// GetLeaderboard returns the top limit players by descending rating.
func (r *RatingService) GetLeaderboard(ctx context.Context, limit int) ([]core.LeaderboardEntry, error) {
	top := r.board.TopN(limit)
	out := make([]core.LeaderboardEntry, 0, len(top))
	for i, e := range top {
		p, err := r.store.GetPlayer(ctx, e.Player)
		if err != nil {
			return nil, fmt.Errorf("building leaderboard: %w", err)
		}
		out = append(out, core.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    p.ID,
			Username:    p.Username,
			Avatar:      p.Avatar,
			Rating:      p.Rating,
			GamesPlayed: p.GamesPlayed,
			WinRate:     core.WinRate(p.GamesWon, p.GamesPlayed),
			LastActive:  p.LastActive,
		})
	}
	return out, nil
}

// GetPlayerStats derives losses and win rate for a player.
func (r *RatingService) GetPlayerStats(ctx context.Context, id core.PlayerID) (core.PlayerStats, error) {
	p, err := r.GetPlayer(ctx, id)
	if err != nil {
		return core.PlayerStats{}, err
	}
	return core.DeriveStats(p), nil
}

// GetPlayerRank returns the 1-based leaderboard position.
func (r *RatingService) GetPlayerRank(_ context.Context, id core.PlayerID) (int, error) {
	rank, ok := r.board.Rank(core.CanonicalPlayerID(id))
	if !ok {
		return 0, fmt.Errorf("%w: player %s", core.ErrNotFound, id)
	}
	return rank, nil
}

// GetPlayerProgress reports level progression.
func (r *RatingService) GetPlayerProgress(ctx context.Context, id core.PlayerID) (core.Progress, error) {
	p, err := r.GetPlayer(ctx, id)
	if err != nil {
		return core.Progress{}, err
	}
	return core.DeriveProgress(p), nil
}

// GetRatingHistory returns the player's history newest first.
func (r *RatingService) GetRatingHistory(ctx context.Context, id core.PlayerID) ([]core.RatingChange, error) {
	id = core.CanonicalPlayerID(id)
	if _, err := r.store.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	return r.store.RatingHistory(ctx, id)
}

func (r *RatingService) publishRoster(ctx context.Context, subject core.PlayerID) {
	players, err := r.store.ListPlayers(ctx)
	if err != nil {
		r.log.Warn("roster snapshot failed", "error", err)
		return
	}
	r.bus.Publish(ctx, core.NewPlayersUpdated(subject, players))
	board, err := r.GetLeaderboard(ctx, r.board.Len())
	if err != nil {
		r.log.Warn("leaderboard snapshot failed", "error", err)
		return
	}
	r.bus.Publish(ctx, core.NewLeaderboardUpdated(board))
}
