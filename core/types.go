package core

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// PlayerID uniquely identifies a player in the roster.
type PlayerID string

// SessionID identifies a game session.
type SessionID string

// GameID identifies a multiplayer game lobby.
type GameID string

// AchievementID identifies a catalog achievement.
type AchievementID string

// Player is a roster record. Values handed out by the engine are copies.
type Player struct {
	ID          PlayerID  `json:"id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	Level       int64     `json:"level"`
	Experience  int64     `json:"experience"`
	Rating      int64     `json:"rating"`
	GamesPlayed int64     `json:"games_played"`
	GamesWon    int64     `json:"games_won"`
	LastActive  time.Time `json:"last_active"`
}

// Validate checks the roster invariants of a player record.
func (p Player) Validate() error {
	var errs []string
	if strings.TrimSpace(string(p.ID)) == "" {
		errs = append(errs, "id cannot be empty")
	}
	if p.Level < 1 {
		errs = append(errs, "level must be >= 1")
	}
	if p.Experience < 0 {
		errs = append(errs, "experience must be >= 0")
	}
	if p.Rating < 0 {
		errs = append(errs, "rating must be >= 0")
	}
	if p.GamesWon < 0 || p.GamesPlayed < 0 {
		errs = append(errs, "game counters must be >= 0")
	}
	if p.GamesWon > p.GamesPlayed {
		errs = append(errs, "games_won cannot exceed games_played")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: player %q: %s", ErrInvalidArgument, p.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Participant returns the lightweight reference sessions and games keep.
func (p Player) Participant() Participant {
	return Participant{ID: p.ID, Username: p.Username, Avatar: p.Avatar}
}

// Participant references a roster player from a session or game.
type Participant struct {
	ID       PlayerID `json:"id"`
	Username string   `json:"username"`
	Avatar   string   `json:"avatar,omitempty"`
}

// SessionStatus is the lifecycle state of a GameSession.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionActive    SessionStatus = "active"
	SessionFinished  SessionStatus = "finished"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionFinished || s == SessionCancelled
}

// Session is a game session. CurrentPlayers always equals len(Players).
type Session struct {
	ID             SessionID     `json:"id"`
	GameID         string        `json:"game_id"`
	Name           string        `json:"name"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        *time.Time    `json:"end_time"`
	Players        []Participant `json:"players"`
	WinnerID       *PlayerID     `json:"winner_id"`
	Status         SessionStatus `json:"status"`
	MaxPlayers     int           `json:"max_players"`
	CurrentPlayers int           `json:"current_players"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	cp := s
	cp.Players = slices.Clone(s.Players)
	if s.EndTime != nil {
		t := *s.EndTime
		cp.EndTime = &t
	}
	if s.WinnerID != nil {
		w := *s.WinnerID
		cp.WinnerID = &w
	}
	return cp
}

// HasPlayer reports whether id is a participant.
func (s Session) HasPlayer(id PlayerID) bool {
	return indexOf(s.Players, id) >= 0
}

// GameStatus is the lifecycle state of a multiplayer game.
type GameStatus string

const (
	GameWaiting    GameStatus = "waiting"
	GameInProgress GameStatus = "in_progress"
	GameFinished   GameStatus = "finished"
)

// Game is a multiplayer lobby. HostID is always a participant while any remain.
type Game struct {
	ID            GameID        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	MaxPlayers    int           `json:"max_players"`
	MinPlayers    int           `json:"min_players"`
	ActivePlayers int           `json:"active_players"`
	Status        GameStatus    `json:"status"`
	HostID        PlayerID      `json:"host_id"`
	Players       []Participant `json:"players"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Clone returns a deep copy of the game.
func (g Game) Clone() Game {
	cp := g
	cp.Players = slices.Clone(g.Players)
	return cp
}

// HasPlayer reports whether id is a participant.
func (g Game) HasPlayer(id PlayerID) bool {
	return indexOf(g.Players, id) >= 0
}

func indexOf(ps []Participant, id PlayerID) int {
	return slices.IndexFunc(ps, func(p Participant) bool { return p.ID == id })
}

// RemoveParticipant returns ps without id and whether it was present.
func RemoveParticipant(ps []Participant, id PlayerID) ([]Participant, bool) {
	i := indexOf(ps, id)
	if i < 0 {
		return slices.Clone(ps), false
	}
	out := make([]Participant, 0, len(ps)-1)
	out = append(out, ps[:i]...)
	return append(out, ps[i+1:]...), true
}

// RatingChange is one append-only rating history entry.
type RatingChange struct {
	PlayerID PlayerID  `json:"player_id"`
	Time     time.Time `json:"time"`
	Rating   int64     `json:"rating"`
	Delta    int64     `json:"delta"`
	GameID   string    `json:"game_id"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	PlayerID    PlayerID  `json:"player_id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	Rating      int64     `json:"rating"`
	GamesPlayed int64     `json:"games_played"`
	WinRate     float64   `json:"win_rate"`
	LastActive  time.Time `json:"last_active"`
}

// PlayerStats are derived from a roster record.
type PlayerStats struct {
	TotalGames    int64   `json:"total_games"`
	Wins          int64   `json:"wins"`
	Losses        int64   `json:"losses"`
	Draws         int64   `json:"draws"`
	WinRate       float64 `json:"win_rate"`
	TotalPlayTime int64   `json:"total_play_time"`
}

// Progress describes a player's level progression.
type Progress struct {
	Level                 int64   `json:"level"`
	Experience            int64   `json:"experience"`
	ExperienceToNextLevel int64   `json:"experience_to_next_level"`
	LevelProgress         float64 `json:"level_progress"`
}

// Stats is the input of achievement predicates.
type Stats struct {
	GamesPlayed int64 `json:"games_played"`
	GamesWon    int64 `json:"games_won"`
	Rating      int64 `json:"rating"`
}

// Stats projects the achievement-relevant counters of a player.
func (p Player) Stats() Stats {
	return Stats{GamesPlayed: p.GamesPlayed, GamesWon: p.GamesWon, Rating: p.Rating}
}

// AchievementCategory groups catalog entries.
type AchievementCategory string

const (
	CategoryGame    AchievementCategory = "game"
	CategorySocial  AchievementCategory = "social"
	CategorySkill   AchievementCategory = "skill"
	CategorySpecial AchievementCategory = "special"
)

// Achievement is a catalog definition or, when Unlocked, a player's unlock record.
type Achievement struct {
	ID          AchievementID       `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon,omitempty"`
	Points      int64               `json:"points"`
	Unlocked    bool                `json:"unlocked"`
	UnlockedAt  *time.Time          `json:"unlocked_at"`
	Category    AchievementCategory `json:"category"`
}

// Clone returns a deep copy of the achievement.
func (a Achievement) Clone() Achievement {
	cp := a
	if a.UnlockedAt != nil {
		t := *a.UnlockedAt
		cp.UnlockedAt = &t
	}
	return cp
}

// RewardType enumerates reward kinds.
type RewardType string

const (
	RewardXP    RewardType = "xp"
	RewardCoins RewardType = "coins"
	RewardItem  RewardType = "item"
	RewardBadge RewardType = "badge"
)

// Reward is one ledger entry granted to a player.
type Reward struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        RewardType `json:"type"`
	Value       int64      `json:"value"`
	Icon        string     `json:"icon,omitempty"`
	Awarded     bool       `json:"awarded"`
	AwardedAt   *time.Time `json:"awarded_at"`
}

// Clone returns a deep copy of the reward.
func (r Reward) Clone() Reward {
	cp := r
	if r.AwardedAt != nil {
		t := *r.AwardedAt
		cp.AwardedAt = &t
	}
	return cp
}

// ValidateRewardType reports whether t is a known reward kind.
func ValidateRewardType(t RewardType) error {
	switch t {
	case RewardXP, RewardCoins, RewardItem, RewardBadge:
		return nil
	}
	return fmt.Errorf("%w: unknown reward type %q", ErrInvalidArgument, t)
}

// AchievementProgress summarizes a player's unlocks against the catalog.
type AchievementProgress struct {
	Total       int     `json:"total"`
	Unlocked    int     `json:"unlocked"`
	Progress    float64 `json:"progress"`
	TotalPoints int64   `json:"total_points"`
}

// ChatType enumerates chat message kinds.
type ChatType string

const (
	ChatText      ChatType = "text"
	ChatSystem    ChatType = "system"
	ChatGameEvent ChatType = "game_event"
)

// SystemPlayer is the author of system and game event messages.
const SystemPlayer PlayerID = "system"

// ChatMessage is one entry of a game's chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	GameID     GameID    `json:"game_id"`
	PlayerID   PlayerID  `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
	Type       ChatType  `json:"type"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizePlayerID trims and lowercases player identifiers.
func NormalizePlayerID(id PlayerID) (PlayerID, error) {
	c := CanonicalPlayerID(id)
	if c == "" {
		return "", fmt.Errorf("%w: empty player id", ErrInvalidArgument)
	}
	return c, nil
}

// CanonicalPlayerID is the lookup form of an id: trimmed and lowercased.
func CanonicalPlayerID(id PlayerID) PlayerID {
	return PlayerID(strings.ToLower(strings.TrimSpace(string(id))))
}

// ValidateAchievementID ensures non-empty id with simple charset check.
func ValidateAchievementID(a AchievementID) error {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return fmt.Errorf("%w: empty achievement id", ErrInvalidArgument)
	}
	// simple check: alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("%w: invalid achievement id %q", ErrInvalidArgument, a)
	}
	return nil
}

// Unlock is one achievement grant together with the reward it issues.
type Unlock struct {
	Achievement Achievement
	Reward      Reward
}
