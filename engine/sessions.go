package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"arenakit/core"
)

// SessionService drives the session lifecycle:
// waiting -> active -> finished, and waiting -> cancelled.
type SessionService struct {
	store SessionStore
	bus   *EventBus
	locks *KeyLock
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// NewSessionService returns a service over store that publishes on bus.
func NewSessionService(store SessionStore, bus *EventBus, opts ...ServiceOption) *SessionService {
	if store == nil || bus == nil {
		panic("NewSessionService requires non-nil store and bus")
	}
	cfg := newServiceConfig(opts)
	return &SessionService{
		store: store,
		bus:   bus,
		locks: cfg.locks,
		log:   cfg.logger.With("component", "sessions"),
		now:   cfg.now,
		newID: cfg.newID,
	}
}

// CreateSession opens an empty session in the waiting state.
func (s *SessionService) CreateSession(ctx context.Context, name string, maxPlayers int) (core.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Session{}, fmt.Errorf("%w: session name cannot be empty", core.ErrInvalidArgument)
	}
	if maxPlayers < 2 {
		return core.Session{}, fmt.Errorf("%w: max players must be >= 2, got %d", core.ErrInvalidArgument, maxPlayers)
	}
	if err := checkCtx(ctx); err != nil {
		return core.Session{}, err
	}
	sess := core.Session{
		ID:         core.SessionID(s.newID()),
		GameID:     s.newID(),
		Name:       name,
		StartTime:  s.now(),
		Players:    []core.Participant{},
		Status:     core.SessionWaiting,
		MaxPlayers: maxPlayers,
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return core.Session{}, err
	}
	s.log.Info("session created", "session_id", sess.ID, "max_players", maxPlayers)
	s.publish(ctx, sess)
	return sess, nil
}

// JoinSession appends p to a waiting session that has room.
func (s *SessionService) JoinSession(ctx context.Context, id core.SessionID, p core.Participant) (core.Session, error) {
	p.ID = core.CanonicalPlayerID(p.ID)
	return s.mutate(ctx, id, "join", func(sess *core.Session) error {
		if sess.Status != core.SessionWaiting {
			return fmt.Errorf("%w: session %s is %s", core.ErrInvalidState, id, sess.Status)
		}
		if sess.CurrentPlayers >= sess.MaxPlayers {
			return fmt.Errorf("%w: session %s has %d/%d players", core.ErrCapacity, id, sess.CurrentPlayers, sess.MaxPlayers)
		}
		if sess.HasPlayer(p.ID) {
			return fmt.Errorf("%w: player %s already in session %s", core.ErrAlreadyExists, p.ID, id)
		}
		sess.Players = append(sess.Players, p)
		sess.CurrentPlayers = len(sess.Players)
		return nil
	})
}

// StartSession moves a waiting session with at least two players to active.
func (s *SessionService) StartSession(ctx context.Context, id core.SessionID) (core.Session, error) {
	return s.mutate(ctx, id, "start", func(sess *core.Session) error {
		if sess.Status != core.SessionWaiting {
			return fmt.Errorf("%w: cannot start session %s from %s", core.ErrInvalidState, id, sess.Status)
		}
		if sess.CurrentPlayers < 2 {
			return fmt.Errorf("%w: session %s has %d players", core.ErrInsufficientPlayers, id, sess.CurrentPlayers)
		}
		sess.Status = core.SessionActive
		sess.StartTime = s.now()
		return nil
	})
}

// EndSession finishes an active session; the winner must be a participant.
func (s *SessionService) EndSession(ctx context.Context, id core.SessionID, winner core.PlayerID) (core.Session, error) {
	winner = core.CanonicalPlayerID(winner)
	return s.mutate(ctx, id, "end", func(sess *core.Session) error {
		if sess.Status != core.SessionActive {
			return fmt.Errorf("%w: cannot end session %s from %s", core.ErrInvalidState, id, sess.Status)
		}
		if !sess.HasPlayer(winner) {
			return fmt.Errorf("%w: winner %s is not in session %s", core.ErrInvalidArgument, winner, id)
		}
		end := s.now()
		sess.Status = core.SessionFinished
		sess.EndTime = &end
		sess.WinnerID = &winner
		return nil
	})
}

// LeaveSession removes a participant. The last one out cancels the session.
func (s *SessionService) LeaveSession(ctx context.Context, id core.SessionID, player core.PlayerID) (core.Session, error) {
	player = core.CanonicalPlayerID(player)
	return s.mutate(ctx, id, "leave", func(sess *core.Session) error {
		if sess.Status.Terminal() {
			return fmt.Errorf("%w: session %s is %s", core.ErrInvalidState, id, sess.Status)
		}
		rest, ok := core.RemoveParticipant(sess.Players, player)
		if !ok {
			return fmt.Errorf("%w: player %s not in session %s", core.ErrNotFound, player, id)
		}
		sess.Players = rest
		sess.CurrentPlayers = len(rest)
		if sess.CurrentPlayers == 0 {
			end := s.now()
			sess.Status = core.SessionCancelled
			sess.EndTime = &end
		}
		return nil
	})
}

// mutate applies fn to a copy of the session under its key lock and saves
// the result only if fn and the context both allow it.
func (s *SessionService) mutate(ctx context.Context, id core.SessionID, op string, fn func(*core.Session) error) (core.Session, error) {
	var out core.Session
	err := s.locks.Do(ctx, func() error {
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&sess); err != nil {
			return err
		}
		if err := checkCtx(ctx); err != nil {
			return err
		}
		if err := s.store.PutSession(ctx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	}, sessionKey(id))
	if err != nil {
		s.log.Debug("session mutation rejected", "op", op, "session_id", id, "error", err)
		return core.Session{}, err
	}
	s.log.Info("session updated", "op", op, "session_id", id, "status", out.Status, "players", out.CurrentPlayers)
	s.publish(ctx, out)
	return out, nil
}

// GetSession returns a copy of one session.
func (s *SessionService) GetSession(ctx context.Context, id core.SessionID) (core.Session, error) {
	return s.store.GetSession(ctx, id)
}

// ListSessions returns every session, newest first.
func (s *SessionService) ListSessions(ctx context.Context) ([]core.Session, error) {
	return s.store.ListSessions(ctx)
}

// ListActiveSessions returns waiting and active sessions.
func (s *SessionService) ListActiveSessions(ctx context.Context) ([]core.Session, error) {
	return s.filter(ctx, func(sess core.Session) bool { return !sess.Status.Terminal() })
}

// PlayerSessions returns finished sessions the player took part in.
func (s *SessionService) PlayerSessions(ctx context.Context, player core.PlayerID) ([]core.Session, error) {
	player = core.CanonicalPlayerID(player)
	return s.filter(ctx, func(sess core.Session) bool {
		return sess.Status == core.SessionFinished && sess.HasPlayer(player)
	})
}

func (s *SessionService) filter(ctx context.Context, keep func(core.Session) bool) ([]core.Session, error) {
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Session, 0, len(all))
	for _, sess := range all {
		if keep(sess) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// WaitForStatus blocks until the session reaches want or ctx ends. A
// session that settles in a different terminal state fails with ErrInvalidState.
func (s *SessionService) WaitForStatus(ctx context.Context, id core.SessionID, want core.SessionStatus) (core.Session, error) {
	settled := make(chan core.Session, 1)
	unsubscribe := s.bus.Subscribe(core.EventSessionsUpdated, func(_ context.Context, ev core.Event) {
		if ev.SessionID != id || ev.Session == nil {
			return
		}
		if ev.Session.Status != want && !ev.Session.Status.Terminal() {
			return
		}
		select {
		case settled <- ev.Session.Clone():
		default:
		}
	})
	defer unsubscribe()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return core.Session{}, err
	}
	if sess.Status != want && !sess.Status.Terminal() {
		select {
		case sess = <-settled:
		case <-ctx.Done():
			return core.Session{}, fmt.Errorf("%w: waiting for session %s to be %s: %v", core.ErrTimeout, id, want, ctx.Err())
		}
	}
	if sess.Status != want {
		return sess, fmt.Errorf("%w: session %s ended as %s", core.ErrInvalidState, id, sess.Status)
	}
	return sess, nil
}

func (s *SessionService) publish(ctx context.Context, sess core.Session) {
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		s.log.Warn("session snapshot failed", "error", err)
		return
	}
	s.bus.Publish(ctx, core.NewSessionsUpdated(sess, all))
}
