package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arenakit/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	alice := core.Player{ID: "alice", Username: "Alice", Level: 1, Rating: 1500}
	bob := core.Player{ID: "bob", Username: "Bob", Level: 1, Rating: 1500}
	for _, p := range []core.Player{alice, bob} {
		if err := store.CreatePlayer(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	alice.Rating, alice.GamesPlayed, alice.GamesWon = 1516, 1, 1
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hist := []core.RatingChange{{PlayerID: "alice", Time: now, Rating: 1516, Delta: 16, GameID: "g1"}}
	if err := store.SavePlayers(ctx, []core.Player{alice}, hist); err != nil {
		t.Fatalf("save players: %v", err)
	}

	ach := core.Achievement{ID: "first_win", Name: "First Win", Points: 25, Unlocked: true, UnlockedAt: &now}
	if err := store.UnlockAchievements(ctx, "alice", []core.Unlock{{Achievement: ach, Reward: core.RewardFor(ach)}}); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	players, err := reloaded.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(players) != 2 || players[0].ID != "alice" || players[1].ID != "bob" {
		t.Fatalf("unexpected roster order: %+v", players)
	}
	if players[0].Rating != 1516 {
		t.Fatalf("expected rating 1516, got %d", players[0].Rating)
	}
	h, _ := reloaded.RatingHistory(ctx, "alice")
	if len(h) != 1 || h[0].Delta != 16 {
		t.Fatalf("unexpected history: %+v", h)
	}
	rewards, _ := reloaded.PlayerRewards(ctx, "alice")
	if len(rewards) != 1 || rewards[0].ID != "reward_first_win" {
		t.Fatalf("unexpected rewards: %+v", rewards)
	}
}

func TestStoreRejectsDuplicatesWithoutWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreatePlayer(ctx, core.Player{ID: "alice", Level: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreatePlayer(ctx, core.Player{ID: "alice", Level: 1}); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	err = store.SavePlayers(ctx, []core.Player{{ID: "alice", Level: 1, Rating: 9}, {ID: "ghost", Level: 1}}, nil)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	p, _ := store.GetPlayer(ctx, "alice")
	if p.Rating != 0 {
		t.Fatalf("failed save must not apply, rating=%d", p.Rating)
	}
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected decode error")
	}
}
