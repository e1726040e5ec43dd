package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"arenakit/core"
)

// Store persists the roster, rating history and achievement ledgers to a
// single JSON file. Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory copy of the file
	data snapshot
}

type snapshot struct {
	Order        []core.PlayerID                       `json:"order"`
	Players      map[core.PlayerID]core.Player         `json:"players"`
	History      map[core.PlayerID][]core.RatingChange `json:"history"`
	Achievements map[core.PlayerID][]core.Achievement  `json:"achievements"`
	Rewards      map[core.PlayerID][]core.Reward       `json:"rewards"`
}

func emptySnapshot() snapshot {
	return snapshot{
		Players:      map[core.PlayerID]core.Player{},
		History:      map[core.PlayerID][]core.RatingChange{},
		Achievements: map[core.PlayerID][]core.Achievement{},
		Rewards:      map[core.PlayerID][]core.Reward{},
	}
}

// next returns a copy whose maps and order can be modified freely. Slice
// values are shared, so writers must replace them rather than append in place.
func (s snapshot) next() snapshot {
	return snapshot{
		Order:        slices.Clone(s.Order),
		Players:      maps.Clone(s.Players),
		History:      maps.Clone(s.History),
		Achievements: maps.Clone(s.Achievements),
		Rewards:      maps.Clone(s.Rewards),
	}
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: emptySnapshot()}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	snap := emptySnapshot()
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decoding %s: %w", s.path, err)
	}
	snap.Players = nonNil(snap.Players)
	snap.History = nonNil(snap.History)
	snap.Achievements = nonNil(snap.Achievements)
	snap.Rewards = nonNil(snap.Rewards)
	s.data = snap
	return nil
}

func nonNil[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func (s *Store) persist(snap snapshot) error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// update applies fn to a copy of the state and swaps it in only after the
// file was written, so a failed write leaves both file and cache unchanged.
func (s *Store) update(fn func(*snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.data.next()
	if err := fn(&snap); err != nil {
		return err
	}
	if err := s.persist(snap); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.data = snap
	return nil
}

func (s *Store) CreatePlayer(_ context.Context, p core.Player) error {
	return s.update(func(snap *snapshot) error {
		if _, ok := snap.Players[p.ID]; ok {
			return fmt.Errorf("%w: player %s", core.ErrAlreadyExists, p.ID)
		}
		snap.Players[p.ID] = p
		snap.Order = append(snap.Order, p.ID)
		return nil
	})
}

func (s *Store) GetPlayer(_ context.Context, id core.PlayerID) (core.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Players[id]
	if !ok {
		return core.Player{}, fmt.Errorf("%w: player %s", core.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) ListPlayers(_ context.Context) ([]core.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Player, 0, len(s.data.Order))
	for _, id := range s.data.Order {
		out = append(out, s.data.Players[id])
	}
	return out, nil
}

func (s *Store) SavePlayers(_ context.Context, players []core.Player, history []core.RatingChange) error {
	return s.update(func(snap *snapshot) error {
		for _, p := range players {
			if _, ok := snap.Players[p.ID]; !ok {
				return fmt.Errorf("%w: player %s", core.ErrNotFound, p.ID)
			}
		}
		for _, p := range players {
			snap.Players[p.ID] = p
		}
		for _, h := range history {
			snap.History[h.PlayerID] = append([]core.RatingChange{h}, snap.History[h.PlayerID]...)
		}
		return nil
	})
}

func (s *Store) RatingHistory(_ context.Context, id core.PlayerID) ([]core.RatingChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.History[id]), nil
}

func (s *Store) UnlockAchievements(_ context.Context, player core.PlayerID, unlocks []core.Unlock) error {
	return s.update(func(snap *snapshot) error {
		have := slices.Clone(snap.Achievements[player])
		ledger := slices.Clone(snap.Rewards[player])
		for _, u := range unlocks {
			if slices.ContainsFunc(have, func(a core.Achievement) bool { return a.ID == u.Achievement.ID }) {
				return fmt.Errorf("%w: achievement %s for %s", core.ErrAlreadyExists, u.Achievement.ID, player)
			}
			if slices.ContainsFunc(ledger, func(r core.Reward) bool { return r.ID == u.Reward.ID }) {
				return fmt.Errorf("%w: reward %s for %s", core.ErrAlreadyExists, u.Reward.ID, player)
			}
			have = append(have, u.Achievement.Clone())
			ledger = append(ledger, u.Reward.Clone())
		}
		snap.Achievements[player] = have
		snap.Rewards[player] = ledger
		return nil
	})
}

func (s *Store) PlayerAchievements(_ context.Context, player core.PlayerID) ([]core.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Achievement, 0, len(s.data.Achievements[player]))
	for _, a := range s.data.Achievements[player] {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *Store) AddReward(_ context.Context, player core.PlayerID, r core.Reward) error {
	return s.update(func(snap *snapshot) error {
		ledger := snap.Rewards[player]
		if slices.ContainsFunc(ledger, func(x core.Reward) bool { return x.ID == r.ID }) {
			return fmt.Errorf("%w: reward %s for %s", core.ErrAlreadyExists, r.ID, player)
		}
		snap.Rewards[player] = append(slices.Clone(ledger), r.Clone())
		return nil
	})
}

func (s *Store) PlayerRewards(_ context.Context, player core.PlayerID) ([]core.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Reward, 0, len(s.data.Rewards[player]))
	for _, r := range s.data.Rewards[player] {
		out = append(out, r.Clone())
	}
	return out, nil
}
