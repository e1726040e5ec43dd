package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"arenakit/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	mu           sync.RWMutex
	order        []core.PlayerID
	players      map[core.PlayerID]core.Player
	history      map[core.PlayerID][]core.RatingChange // newest first
	achievements map[core.PlayerID][]core.Achievement
	rewards      map[core.PlayerID][]core.Reward
}

func New() *Store {
	return &Store{
		players:      map[core.PlayerID]core.Player{},
		history:      map[core.PlayerID][]core.RatingChange{},
		achievements: map[core.PlayerID][]core.Achievement{},
		rewards:      map[core.PlayerID][]core.Reward{},
	}
}

func (s *Store) CreatePlayer(_ context.Context, p core.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("%w: player %s", core.ErrAlreadyExists, p.ID)
	}
	s.players[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *Store) GetPlayer(_ context.Context, id core.PlayerID) (core.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return core.Player{}, fmt.Errorf("%w: player %s", core.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) ListPlayers(_ context.Context) ([]core.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.players[id])
	}
	return out, nil
}

func (s *Store) SavePlayers(_ context.Context, players []core.Player, history []core.RatingChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		if _, ok := s.players[p.ID]; !ok {
			return fmt.Errorf("%w: player %s", core.ErrNotFound, p.ID)
		}
	}
	for _, p := range players {
		s.players[p.ID] = p
	}
	for _, h := range history {
		s.history[h.PlayerID] = slices.Insert(s.history[h.PlayerID], 0, h)
	}
	return nil
}

func (s *Store) RatingHistory(_ context.Context, id core.PlayerID) ([]core.RatingChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[id]), nil
}

func (s *Store) UnlockAchievements(_ context.Context, player core.PlayerID, unlocks []core.Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	have := s.achievements[player]
	ledger := s.rewards[player]
	for _, u := range unlocks {
		if slices.ContainsFunc(have, func(a core.Achievement) bool { return a.ID == u.Achievement.ID }) {
			return fmt.Errorf("%w: achievement %s for %s", core.ErrAlreadyExists, u.Achievement.ID, player)
		}
		if slices.ContainsFunc(ledger, func(r core.Reward) bool { return r.ID == u.Reward.ID }) {
			return fmt.Errorf("%w: reward %s for %s", core.ErrAlreadyExists, u.Reward.ID, player)
		}
	}
	for _, u := range unlocks {
		have = append(have, u.Achievement.Clone())
		ledger = append(ledger, u.Reward.Clone())
	}
	s.achievements[player] = have
	s.rewards[player] = ledger
	return nil
}

func (s *Store) PlayerAchievements(_ context.Context, player core.PlayerID) ([]core.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.achievements[player], core.Achievement.Clone), nil
}

func (s *Store) AddReward(_ context.Context, player core.PlayerID, r core.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.rewards[player], func(x core.Reward) bool { return x.ID == r.ID }) {
		return fmt.Errorf("%w: reward %s for %s", core.ErrAlreadyExists, r.ID, player)
	}
	s.rewards[player] = append(s.rewards[player], r.Clone())
	return nil
}

func (s *Store) PlayerRewards(_ context.Context, player core.PlayerID) ([]core.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.rewards[player], core.Reward.Clone), nil
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, clone(v))
	}
	return out
}

