package engine

import (
	"context"

	"arenakit/core"
)

// PlayerStore persists the canonical roster and rating history.
// GetPlayer returns core.ErrNotFound for unknown ids.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, p core.Player) error
	GetPlayer(ctx context.Context, id core.PlayerID) (core.Player, error)
	// ListPlayers returns the roster in insertion order.
	ListPlayers(ctx context.Context) ([]core.Player, error)
	// SavePlayers replaces existing records and appends history in one atomic write.
	SavePlayers(ctx context.Context, players []core.Player, history []core.RatingChange) error
	// RatingHistory returns a player's entries newest first.
	RatingHistory(ctx context.Context, id core.PlayerID) ([]core.RatingChange, error)
}

// AchievementStore persists per-player unlocks and the reward ledger.
type AchievementStore interface {
	// UnlockAchievements applies every unlock atomically. It fails with
	// core.ErrAlreadyExists, writing nothing, if any achievement or reward id is taken.
	UnlockAchievements(ctx context.Context, player core.PlayerID, unlocks []core.Unlock) error
	// PlayerAchievements returns unlocked achievements in unlock order.
	PlayerAchievements(ctx context.Context, player core.PlayerID) ([]core.Achievement, error)
	// AddReward fails with core.ErrAlreadyExists if the reward id is taken.
	AddReward(ctx context.Context, player core.PlayerID, r core.Reward) error
	// PlayerRewards returns the ledger in award order.
	PlayerRewards(ctx context.Context, player core.PlayerID) ([]core.Reward, error)
}

// Storage is what persistence adapters implement.
type Storage interface {
	PlayerStore
	AchievementStore
}

// SessionStore holds session lifecycle objects.
type SessionStore interface {
	InsertSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, id core.SessionID) (core.Session, error)
	PutSession(ctx context.Context, s core.Session) error
	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context) ([]core.Session, error)
}

// GameStore holds multiplayer games and their chat logs.
type GameStore interface {
	InsertGame(ctx context.Context, g core.Game) error
	GetGame(ctx context.Context, id core.GameID) (core.Game, error)
	// PutGame replaces the game and appends notes to its chat log in one write.
	PutGame(ctx context.Context, g core.Game, notes ...core.ChatMessage) error
	// DeleteGame removes the game and its chat log.
	DeleteGame(ctx context.Context, id core.GameID) error
	// ListGames returns games newest first.
	ListGames(ctx context.Context) ([]core.Game, error)
	AppendChat(ctx context.Context, id core.GameID, msgs ...core.ChatMessage) error
	Chat(ctx context.Context, id core.GameID) ([]core.ChatMessage, error)
}

// RuleEngine selects the unlocks stats earn, given what is already unlocked.
type RuleEngine interface {
	Evaluate(ctx context.Context, stats core.Stats, unlocked map[core.AchievementID]bool) []core.Achievement
	Catalog() []core.Achievement
	Lookup(id core.AchievementID) (core.Achievement, bool)
}
