package analytics

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"arenakit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// Handler adapts a hook to the event bus handler signature.
func Handler(h Hook) func(context.Context, core.Event) {
	return func(_ context.Context, e core.Event) { h.OnEvent(e) }
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// activePlayers returns the players an event shows acting: rated
// participants and the subject of a roster change.
func activePlayers(e core.Event) []core.PlayerID {
	switch e.Type {
	case core.EventRatingChanged:
		out := make([]core.PlayerID, 0, len(e.Changes))
		for _, c := range e.Changes {
			out = append(out, c.PlayerID)
		}
		return out
	case core.EventPlayersUpdated, core.EventAchievementsUpdated, core.EventRewardsUpdated:
		if e.PlayerID != "" {
			return []core.PlayerID{e.PlayerID}
		}
	}
	return nil
}

// DAU tracks daily active players.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.PlayerID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.PlayerID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	players := activePlayers(e)
	if len(players) == 0 {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.PlayerID]struct{}{}
		d.days[day] = m
	}
	for _, p := range players {
		m[p] = struct{}{}
	}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// Metrics counts matches, lifecycle outcomes and unlocks per day. Events
// carry full aggregates, so it remembers what it has already counted.
type Metrics struct {
	mu sync.RWMutex

	ratingUpdatesByDay map[string]int64
	matchesByDay       map[string]map[string]struct{}
	sessionsFinished   map[string]int64
	sessionsCancelled  map[string]int64
	gamesCreated       map[string]int64
	gamesDeleted       map[string]int64
	unlocksByDay       map[string]int64
	unlocksByID        map[core.AchievementID]int64
	chatMessagesByDay  map[string]int64

	seenSessions map[core.SessionID]core.SessionStatus
	seenGames    map[core.GameID]struct{}
	seenUnlocks  map[core.PlayerID]map[core.AchievementID]struct{}
	chatLengths  map[core.GameID]int
}

func NewMetrics() *Metrics {
	return &Metrics{
		ratingUpdatesByDay: map[string]int64{},
		matchesByDay:       map[string]map[string]struct{}{},
		sessionsFinished:   map[string]int64{},
		sessionsCancelled:  map[string]int64{},
		gamesCreated:       map[string]int64{},
		gamesDeleted:       map[string]int64{},
		unlocksByDay:       map[string]int64{},
		unlocksByID:        map[core.AchievementID]int64{},
		chatMessagesByDay:  map[string]int64{},
		seenSessions:       map[core.SessionID]core.SessionStatus{},
		seenGames:          map[core.GameID]struct{}{},
		seenUnlocks:        map[core.PlayerID]map[core.AchievementID]struct{}{},
		chatLengths:        map[core.GameID]int{},
	}
}

func (m *Metrics) OnEvent(e core.Event) {
	day := dayKey(e.Time)
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case core.EventRatingChanged:
		m.ratingUpdatesByDay[day]++
		for _, c := range e.Changes {
			if c.GameID == "" {
				continue
			}
			if m.matchesByDay[day] == nil {
				m.matchesByDay[day] = map[string]struct{}{}
			}
			m.matchesByDay[day][c.GameID] = struct{}{}
		}
	case core.EventSessionsUpdated:
		if e.Session == nil {
			return
		}
		prev := m.seenSessions[e.SessionID]
		m.seenSessions[e.SessionID] = e.Session.Status
		if prev == e.Session.Status {
			return
		}
		switch e.Session.Status {
		case core.SessionFinished:
			m.sessionsFinished[day]++
		case core.SessionCancelled:
			m.sessionsCancelled[day]++
		}
	case core.EventGamesUpdated:
		if e.Game == nil {
			if _, ok := m.seenGames[e.GameID]; ok {
				m.gamesDeleted[day]++
			}
			delete(m.seenGames, e.GameID)
			delete(m.chatLengths, e.GameID)
			return
		}
		if _, ok := m.seenGames[e.GameID]; !ok {
			m.seenGames[e.GameID] = struct{}{}
			m.gamesCreated[day]++
		}
	case core.EventChatUpdated:
		if n := len(e.Chat); n > m.chatLengths[e.GameID] {
			m.chatMessagesByDay[day] += int64(n - m.chatLengths[e.GameID])
			m.chatLengths[e.GameID] = n
		}
	case core.EventAchievementsUpdated:
		seen := m.seenUnlocks[e.PlayerID]
		if seen == nil {
			seen = map[core.AchievementID]struct{}{}
			m.seenUnlocks[e.PlayerID] = seen
		}
		for _, a := range e.Achievements {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			m.unlocksByDay[day]++
			m.unlocksByID[a.ID]++
		}
	}
}

// Snapshot is one day of counters plus all-time unlock totals.
type Snapshot struct {
	Day               string                       `json:"day"`
	ActivePlayers     int                          `json:"active_players,omitempty"`
	RatingUpdates     int64                        `json:"rating_updates"`
	Matches           int                          `json:"matches"`
	SessionsFinished  int64                        `json:"sessions_finished"`
	SessionsCancelled int64                        `json:"sessions_cancelled"`
	GamesCreated      int64                        `json:"games_created"`
	GamesDeleted      int64                        `json:"games_deleted"`
	ChatMessages      int64                        `json:"chat_messages"`
	Unlocks           int64                        `json:"unlocks"`
	UnlocksByID       map[core.AchievementID]int64 `json:"unlocks_by_achievement"`
}

func (m *Metrics) Snapshot(day string) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := make(map[core.AchievementID]int64, len(m.unlocksByID))
	for id, n := range m.unlocksByID {
		byID[id] = n
	}
	return Snapshot{
		Day:               day,
		RatingUpdates:     m.ratingUpdatesByDay[day],
		Matches:           len(m.matchesByDay[day]),
		SessionsFinished:  m.sessionsFinished[day],
		SessionsCancelled: m.sessionsCancelled[day],
		GamesCreated:      m.gamesCreated[day],
		GamesDeleted:      m.gamesDeleted[day],
		ChatMessages:      m.chatMessagesByDay[day],
		Unlocks:           m.unlocksByDay[day],
		UnlocksByID:       byID,
	}
}

// TopAchievements returns the most unlocked achievement ids, ties by id.
func (m *Metrics) TopAchievements(limit int) []core.AchievementID {
	m.mu.RLock()
	ids := make([]core.AchievementID, 0, len(m.unlocksByID))
	for id := range m.unlocksByID {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b core.AchievementID) int {
		if c := cmp.Compare(m.unlocksByID[b], m.unlocksByID[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	m.mu.RUnlock()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
