package arena

import (
	"context"
	"sync"
	"testing"
	"time"

	mem "arenakit/adapters/memory"
	"arenakit/core"
	"arenakit/engine"
	"arenakit/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	_, ch := hub.Subscribe(8, core.EventPlayersUpdated)

	a, err := New(context.Background(),
		WithRealtime(hub),
		WithStorage(mem.New()),
		WithDispatchMode(engine.DispatchSync),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if _, err := a.Ratings.AddPlayer(context.Background(), core.Player{ID: "alice", Username: "Alice"}); err != nil {
		t.Fatalf("add player: %v", err)
	}

	// realtime bridge should receive event
	select {
	case ev := <-ch:
		if ev.PlayerID != "alice" || ev.Type != core.EventPlayersUpdated {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event bridged to hub")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := mem.New()
	for i := 0; i < 2; i++ {
		a, err := New(context.Background(), WithStorage(store), WithSeed(core.SamplePlayers()...))
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		players, err := a.Ratings.ListPlayers(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(players) != len(core.SamplePlayers()) {
			t.Fatalf("run %d: expected %d players, got %d", i, len(core.SamplePlayers()), len(players))
		}
		a.Close()
	}
}

func TestSeedRejectsInvalidPlayer(t *testing.T) {
	_, err := New(context.Background(), WithSeed(core.Player{ID: "x", GamesPlayed: 1, GamesWon: 2}))
	if err == nil {
		t.Fatal("expected seed validation error")
	}
}

func TestWithHandlerReceivesEveryTopic(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[core.EventType]int{}
	)
	a, err := New(context.Background(),
		WithDispatchMode(engine.DispatchSync),
		WithHandler(func(_ context.Context, e core.Event) {
			mu.Lock()
			seen[e.Type]++
			mu.Unlock()
		}),
		WithSeed(core.SamplePlayers()...),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.CreateGame(ctx, "Lobby", "", 4, "player1"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ratings.UpdateRating(ctx, "player1", "player2", "g"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, typ := range []core.EventType{core.EventPlayersUpdated, core.EventLeaderboardUpdated, core.EventRatingChanged, core.EventGamesUpdated} {
		if seen[typ] == 0 {
			t.Errorf("handler never saw %s", typ)
		}
	}
}
