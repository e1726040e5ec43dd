package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "arenakit/adapters/memory"
	"arenakit/core"
)

func newSessionService() *SessionService {
	return NewSessionService(mem.NewSessions(), NewEventBus(DispatchSync), testOpts()...)
}

func part(id string) core.Participant {
	return core.Participant{ID: core.PlayerID(id), Username: id}
}

func TestSessionCapacity(t *testing.T) {
	svc := newSessionService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "duel", 2)
	require.NoError(t, err)
	assert.Equal(t, core.SessionWaiting, sess.Status)
	assert.Zero(t, sess.CurrentPlayers)

	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("b"))
	require.NoError(t, err)

	_, err = svc.JoinSession(ctx, sess.ID, part("c"))
	require.ErrorIs(t, err, core.ErrCapacity)

	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPlayers)
	assert.Len(t, got.Players, 2)
	assert.Equal(t, core.PlayerID("a"), got.Players[0].ID)
}

func TestSessionCreateValidation(t *testing.T) {
	svc := newSessionService()
	_, err := svc.CreateSession(context.Background(), "solo", 1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = svc.CreateSession(context.Background(), " ", 4)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSessionLifecycle(t *testing.T) {
	svc := newSessionService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "match", 4)
	require.NoError(t, err)

	_, err = svc.JoinSession(ctx, "missing", part("a"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)

	_, err = svc.StartSession(ctx, sess.ID)
	assert.ErrorIs(t, err, core.ErrInsufficientPlayers)

	_, err = svc.EndSession(ctx, sess.ID, "a")
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = svc.JoinSession(ctx, sess.ID, part("b"))
	require.NoError(t, err)
	started, err := svc.StartSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, started.Status)

	_, err = svc.JoinSession(ctx, sess.ID, part("c"))
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = svc.EndSession(ctx, sess.ID, "c")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	ended, err := svc.EndSession(ctx, sess.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, core.SessionFinished, ended.Status)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, core.PlayerID("b"), *ended.WinnerID)
	require.NotNil(t, ended.EndTime)

	for _, op := range []func() error{
		func() error { _, err := svc.StartSession(ctx, sess.ID); return err },
		func() error { _, err := svc.EndSession(ctx, sess.ID, "a"); return err },
		func() error { _, err := svc.LeaveSession(ctx, sess.ID, "a"); return err },
		func() error { _, err := svc.JoinSession(ctx, sess.ID, part("d")); return err },
	} {
		assert.ErrorIs(t, op(), core.ErrInvalidState)
	}

	mine, err := svc.PlayerSessions(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	active, err := svc.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSessionLeaveToZeroCancels(t *testing.T) {
	svc := newSessionService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "lobby", 3)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("b"))
	require.NoError(t, err)

	_, err = svc.LeaveSession(ctx, sess.ID, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := svc.LeaveSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, core.SessionWaiting, got.Status)
	assert.Equal(t, 1, got.CurrentPlayers)

	got, err = svc.LeaveSession(ctx, sess.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCancelled, got.Status)
	assert.Zero(t, got.CurrentPlayers)
	assert.NotNil(t, got.EndTime)
}

func TestSessionEventsCarryFullList(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	svc := NewSessionService(mem.NewSessions(), bus, testOpts()...)
	ctx := context.Background()

	var events []core.Event
	bus.Subscribe(core.EventSessionsUpdated, func(_ context.Context, ev core.Event) { events = append(events, ev) })

	first, err := svc.CreateSession(ctx, "one", 2)
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, "two", 2)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, first.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, first.ID, part("a"))
	require.Error(t, err)

	require.Len(t, events, 3)
	last := events[2]
	assert.Equal(t, first.ID, last.SessionID)
	require.NotNil(t, last.Session)
	assert.Equal(t, 1, last.Session.CurrentPlayers)
	require.Len(t, last.Sessions, 2)
	assert.Equal(t, second.ID, last.Sessions[0].ID)
}

func TestSessionConcurrentJoinsRespectCapacity(t *testing.T) {
	svc := NewSessionService(mem.NewSessions(), NewEventBus(DispatchSync))
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "rush", 3)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.JoinSession(ctx, sess.ID, part(fmt.Sprintf("p%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, core.ErrCapacity):
				full++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, full)
	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, len(got.Players), got.CurrentPlayers)
	assert.Equal(t, 3, got.CurrentPlayers)
}

func TestWaitForStatus(t *testing.T) {
	svc := newSessionService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "wait", 2)
	require.NoError(t, err)

	done := make(chan core.Session, 1)
	go func() {
		got, err := svc.WaitForStatus(ctx, sess.ID, core.SessionActive)
		if assert.NoError(t, err) {
			done <- got
		}
	}()

	// give the waiter time to subscribe; it also re-reads the store
	time.Sleep(10 * time.Millisecond)
	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("b"))
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, core.SessionActive, got.Status)
	case <-time.After(time.Second):
		t.Fatal("waiter did not observe the active session")
	}
}

func TestWaitForStatusTimeout(t *testing.T) {
	svc := newSessionService()
	sess, err := svc.CreateSession(context.Background(), "idle", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.WaitForStatus(ctx, sess.ID, core.SessionActive)
	require.ErrorIs(t, err, core.ErrTimeout)

	got, err := svc.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionWaiting, got.Status)
}

func TestWaitForStatusOnCancelledSession(t *testing.T) {
	svc := newSessionService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "gone", 2)
	require.NoError(t, err)
	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.NoError(t, err)
	_, err = svc.LeaveSession(ctx, sess.ID, "a")
	require.NoError(t, err)

	_, err = svc.WaitForStatus(ctx, sess.ID, core.SessionActive)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestCancelledContextLeavesSessionUntouched(t *testing.T) {
	svc := newSessionService()
	sess, err := svc.CreateSession(context.Background(), "ctx", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.JoinSession(ctx, sess.ID, part("a"))
	require.ErrorIs(t, err, core.ErrTimeout)

	got, err := svc.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentPlayers)
}
