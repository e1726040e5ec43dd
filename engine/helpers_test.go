package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mem "arenakit/adapters/memory"
	"arenakit/core"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time { return func() time.Time { return testEpoch } }

func seqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func testOpts() []ServiceOption {
	return []ServiceOption{WithClock(fixedClock()), WithIDGenerator(seqIDs("id"))}
}

func newTestArena(t *testing.T, players ...core.Player) (*Arena, *mem.Store) {
	t.Helper()
	store := mem.New()
	a, err := NewArena(context.Background(), store, mem.NewSessions(), mem.NewGames(), nil, NewEventBus(DispatchSync), testOpts()...)
	require.NoError(t, err)
	for _, p := range players {
		_, err := a.Ratings.AddPlayer(context.Background(), p)
		require.NoError(t, err)
	}
	t.Cleanup(a.Close)
	return a, store
}

func newPlayer(id string, rating int64) core.Player {
	return core.Player{ID: core.PlayerID(id), Username: id, Level: 1, Rating: rating}
}
