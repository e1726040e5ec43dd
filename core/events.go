package core

import "time"

// EventType enumerates the push topics. Every event carries the full
// post-mutation aggregate of its topic, never a diff.
type EventType string

const (
	EventPlayersUpdated      EventType = "players_updated"
	EventLeaderboardUpdated  EventType = "leaderboard_updated"
	EventRatingChanged       EventType = "rating_changed"
	EventSessionsUpdated     EventType = "sessions_updated"
	EventGamesUpdated        EventType = "games_updated"
	EventChatUpdated         EventType = "chat_updated"
	EventAchievementsUpdated EventType = "achievements_updated"
	EventRewardsUpdated      EventType = "rewards_updated"
)

// AllEventTypes lists every topic, for bridges that forward everything.
var AllEventTypes = []EventType{
	EventPlayersUpdated,
	EventLeaderboardUpdated,
	EventRatingChanged,
	EventSessionsUpdated,
	EventGamesUpdated,
	EventChatUpdated,
	EventAchievementsUpdated,
	EventRewardsUpdated,
}

// Event is an immutable notification. Subject fields identify what changed;
// payload fields hold the authoritative aggregate.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	PlayerID  PlayerID  `json:"player_id,omitempty"`
	SessionID SessionID `json:"session_id,omitempty"`
	GameID    GameID    `json:"game_id,omitempty"`

	Players      []Player           `json:"players,omitempty"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard,omitempty"`
	Changes      []RatingChange     `json:"changes,omitempty"`
	Session      *Session           `json:"session,omitempty"`
	Sessions     []Session          `json:"sessions,omitempty"`
	Game         *Game              `json:"game,omitempty"`
	Games        []Game             `json:"games,omitempty"`
	Chat         []ChatMessage      `json:"chat,omitempty"`
	Achievements []Achievement      `json:"achievements,omitempty"`
	Rewards      []Reward           `json:"rewards,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Time: time.Now().UTC()}
}

func NewPlayersUpdated(subject PlayerID, players []Player) Event {
	ev := newEvent(EventPlayersUpdated)
	ev.PlayerID = subject
	ev.Players = players
	return ev
}

func NewLeaderboardUpdated(entries []LeaderboardEntry) Event {
	ev := newEvent(EventLeaderboardUpdated)
	ev.Leaderboard = entries
	return ev
}

func NewRatingChanged(changes []RatingChange) Event {
	ev := newEvent(EventRatingChanged)
	ev.Changes = changes
	return ev
}

func NewSessionsUpdated(session Session, sessions []Session) Event {
	ev := newEvent(EventSessionsUpdated)
	ev.SessionID = session.ID
	ev.Session = &session
	ev.Sessions = sessions
	return ev
}

// NewGamesUpdated reports a game transition; game is nil when it was deleted.
func NewGamesUpdated(id GameID, game *Game, games []Game) Event {
	ev := newEvent(EventGamesUpdated)
	ev.GameID = id
	ev.Game = game
	ev.Games = games
	return ev
}

func NewChatUpdated(id GameID, chat []ChatMessage) Event {
	ev := newEvent(EventChatUpdated)
	ev.GameID = id
	ev.Chat = chat
	return ev
}

func NewAchievementsUpdated(player PlayerID, achievements []Achievement) Event {
	ev := newEvent(EventAchievementsUpdated)
	ev.PlayerID = player
	ev.Achievements = achievements
	return ev
}

func NewRewardsUpdated(player PlayerID, rewards []Reward) Event {
	ev := newEvent(EventRewardsUpdated)
	ev.PlayerID = player
	ev.Rewards = rewards
	return ev
}
