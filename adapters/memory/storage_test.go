package memory

import (
	"context"
	"errors"
	"testing"

	"arenakit/core"
)

func TestMemoryStoreRoster(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []core.PlayerID{"b", "a", "c"} {
		if err := s.CreatePlayer(ctx, core.Player{ID: id, Level: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreatePlayer(ctx, core.Player{ID: "a", Level: 1}); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	list, _ := s.ListPlayers(ctx)
	if len(list) != 3 || list[0].ID != "b" || list[1].ID != "a" || list[2].ID != "c" {
		t.Fatalf("roster order not preserved: %v", list)
	}
	if _, err := s.GetPlayer(ctx, "zz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreSavePlayersIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreatePlayer(ctx, core.Player{ID: "a", Level: 1, Rating: 1000})
	err := s.SavePlayers(ctx, []core.Player{{ID: "a", Level: 1, Rating: 1200}, {ID: "ghost", Level: 1}}, nil)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	p, _ := s.GetPlayer(ctx, "a")
	if p.Rating != 1000 {
		t.Fatalf("partial write applied: %d", p.Rating)
	}
}

func TestMemoryStoreHistoryNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreatePlayer(ctx, core.Player{ID: "a", Level: 1})
	_ = s.SavePlayers(ctx, nil, []core.RatingChange{{PlayerID: "a", GameID: "g1"}})
	_ = s.SavePlayers(ctx, nil, []core.RatingChange{{PlayerID: "a", GameID: "g2"}})
	h, _ := s.RatingHistory(ctx, "a")
	if len(h) != 2 || h[0].GameID != "g2" {
		t.Fatalf("unexpected history %v", h)
	}
}

func TestMemoryStoreUnlocks(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := core.Achievement{ID: "first_game", Points: 10}
	u := core.Unlock{Achievement: a, Reward: core.RewardFor(a)}
	if err := s.UnlockAchievements(ctx, "p", []core.Unlock{u}); err != nil {
		t.Fatal(err)
	}
	b := core.Achievement{ID: "first_win", Points: 25}
	err := s.UnlockAchievements(ctx, "p", []core.Unlock{{Achievement: b, Reward: core.RewardFor(b)}, u})
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	got, _ := s.PlayerAchievements(ctx, "p")
	rewards, _ := s.PlayerRewards(ctx, "p")
	if len(got) != 1 || len(rewards) != 1 {
		t.Fatalf("batch was not rejected as a whole: %v %v", got, rewards)
	}
	if err := s.AddReward(ctx, "p", core.Reward{ID: "reward_first_game"}); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected duplicate reward rejection, got %v", err)
	}
}

func TestGamesDeleteDropsChat(t *testing.T) {
	g := NewGames()
	ctx := context.Background()
	_ = g.InsertGame(ctx, core.Game{ID: "g1"})
	_ = g.InsertGame(ctx, core.Game{ID: "g2"})
	_ = g.AppendChat(ctx, "g1", core.ChatMessage{ID: "m"})
	list, _ := g.ListGames(ctx)
	if list[0].ID != "g2" {
		t.Fatalf("newest game should be first: %v", list)
	}
	if err := g.DeleteGame(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Chat(ctx, "g1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("chat should be gone, got %v", err)
	}
}

func TestGamesPutAppendsNotes(t *testing.T) {
	g := NewGames()
	ctx := context.Background()
	_ = g.InsertGame(ctx, core.Game{ID: "g1"})
	if err := g.PutGame(ctx, core.Game{ID: "g1", ActivePlayers: 2}, core.ChatMessage{ID: "m1"}); err != nil {
		t.Fatal(err)
	}
	chat, _ := g.Chat(ctx, "g1")
	if len(chat) != 1 || chat[0].ID != "m1" {
		t.Fatalf("note not recorded with the game: %v", chat)
	}
	if err := g.PutGame(ctx, core.Game{ID: "missing"}, core.ChatMessage{ID: "m2"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
