package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenakit/core"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	l := NewKeyLock()
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "a")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inFlight++
			maxInFlight = max(maxInFlight, inFlight)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInFlight)
	assert.Empty(t, l.locks, "entries must be reclaimed")
}

func TestKeyLockHonorsContext(t *testing.T) {
	l := NewKeyLock()
	unlock, err := l.Lock(context.Background(), "a", "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "b", "c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTimeout))

	// c must have been released by the failed attempt
	unlockC, err := l.Lock(context.Background(), "c")
	require.NoError(t, err)
	unlockC()
	unlock()
	assert.Empty(t, l.locks)
}

func TestKeyLockDuplicateKeys(t *testing.T) {
	l := NewKeyLock()
	unlock, err := l.Lock(context.Background(), "x", "x")
	require.NoError(t, err)
	unlock()
}
