package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"arenakit/core"
)

// Sessions keeps session lifecycle objects, newest first.
type Sessions struct {
	mu    sync.RWMutex
	order []core.SessionID
	byID  map[core.SessionID]core.Session
}

func NewSessions() *Sessions { return &Sessions{byID: map[core.SessionID]core.Session{}} }

func (s *Sessions) InsertSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; ok {
		return fmt.Errorf("%w: session %s", core.ErrAlreadyExists, sess.ID)
	}
	s.byID[sess.ID] = sess.Clone()
	s.order = slices.Insert(s.order, 0, sess.ID)
	return nil
}

func (s *Sessions) GetSession(_ context.Context, id core.SessionID) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return core.Session{}, fmt.Errorf("%w: session %s", core.ErrNotFound, id)
	}
	return sess.Clone(), nil
}

func (s *Sessions) PutSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; !ok {
		return fmt.Errorf("%w: session %s", core.ErrNotFound, sess.ID)
	}
	s.byID[sess.ID] = sess.Clone()
	return nil
}

func (s *Sessions) ListSessions(_ context.Context) ([]core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

// Games keeps multiplayer games and their chat logs, newest game first.
type Games struct {
	mu    sync.RWMutex
	order []core.GameID
	byID  map[core.GameID]core.Game
	chat  map[core.GameID][]core.ChatMessage
}

func NewGames() *Games {
	return &Games{byID: map[core.GameID]core.Game{}, chat: map[core.GameID][]core.ChatMessage{}}
}

func (g *Games) InsertGame(_ context.Context, game core.Game) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byID[game.ID]; ok {
		return fmt.Errorf("%w: game %s", core.ErrAlreadyExists, game.ID)
	}
	g.byID[game.ID] = game.Clone()
	g.order = slices.Insert(g.order, 0, game.ID)
	return nil
}

func (g *Games) GetGame(_ context.Context, id core.GameID) (core.Game, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	game, ok := g.byID[id]
	if !ok {
		return core.Game{}, fmt.Errorf("%w: game %s", core.ErrNotFound, id)
	}
	return game.Clone(), nil
}

func (g *Games) PutGame(_ context.Context, game core.Game, notes ...core.ChatMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byID[game.ID]; !ok {
		return fmt.Errorf("%w: game %s", core.ErrNotFound, game.ID)
	}
	g.byID[game.ID] = game.Clone()
	if len(notes) > 0 {
		g.chat[game.ID] = append(g.chat[game.ID], notes...)
	}
	return nil
}

func (g *Games) DeleteGame(_ context.Context, id core.GameID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byID[id]; !ok {
		return fmt.Errorf("%w: game %s", core.ErrNotFound, id)
	}
	delete(g.byID, id)
	delete(g.chat, id)
	g.order = slices.DeleteFunc(g.order, func(x core.GameID) bool { return x == id })
	return nil
}

func (g *Games) ListGames(_ context.Context) ([]core.Game, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]core.Game, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.byID[id].Clone())
	}
	return out, nil
}

func (g *Games) AppendChat(_ context.Context, id core.GameID, msgs ...core.ChatMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byID[id]; !ok {
		return fmt.Errorf("%w: game %s", core.ErrNotFound, id)
	}
	g.chat[id] = append(g.chat[id], msgs...)
	return nil
}

func (g *Games) Chat(_ context.Context, id core.GameID) ([]core.ChatMessage, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.byID[id]; !ok {
		return nil, fmt.Errorf("%w: game %s", core.ErrNotFound, id)
	}
	return slices.Clone(g.chat[id]), nil
}
