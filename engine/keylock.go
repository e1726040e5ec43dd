package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"arenakit/core"
)

// KeyLock serializes mutations per entity id. Acquisition honors context
// cancellation so a waiting caller gives up without touching state.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyLock() *KeyLock { return &KeyLock{locks: map[string]*keyEntry{}} }

// Lock acquires every key in sorted order and returns the release func.
func (l *KeyLock) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}
	for _, k := range keys {
		if err := l.lock(ctx, k); err != nil {
			release()
			return nil, err
		}
		held = append(held, k)
	}
	return release, nil
}

// Do runs fn while holding keys. Events are published by callers after Do
// returns so synchronous handlers may re-enter the engine.
func (l *KeyLock) Do(ctx context.Context, fn func() error, keys ...string) error {
	unlock, err := l.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (l *KeyLock) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	e := l.locks[key]
	if e == nil {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(key, e)
		l.mu.Unlock()
		return fmt.Errorf("%w: waiting for %s: %v", core.ErrTimeout, key, ctx.Err())
	}
}

func (l *KeyLock) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.locks[key]
	if e == nil {
		return
	}
	<-e.ch
	l.drop(key, e)
}

func (l *KeyLock) drop(key string, e *keyEntry) {
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func playerKey(id core.PlayerID) string      { return "player:" + string(id) }
func sessionKey(id core.SessionID) string    { return "session:" + string(id) }
func gameKey(id core.GameID) string          { return "game:" + string(id) }
func achievementKey(id core.PlayerID) string { return "achievements:" + string(id) }

// checkCtx reports a cancelled context as core.ErrTimeout.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTimeout, err)
	}
	return nil
}
