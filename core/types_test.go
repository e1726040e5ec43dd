package core

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizePlayerID(t *testing.T) {
	id, err := NormalizePlayerID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizePlayerID("   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestValidateAchievementID(t *testing.T) {
	if err := ValidateAchievementID("first_win"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateAchievementID("bad id"); err == nil {
		t.Fatalf("expected invalid id err")
	}
}

func TestPlayerValidate(t *testing.T) {
	ok := Player{ID: "p", Level: 1, Rating: 1000}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	bad := Player{ID: "p", Level: 1, GamesPlayed: 1, GamesWon: 2}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := (Player{ID: "p", Level: 0}).Validate(); err == nil {
		t.Fatal("level 0 should be rejected")
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	end := time.Now()
	winner := PlayerID("a")
	s := Session{ID: "s", Players: []Participant{{ID: "a"}}, EndTime: &end, WinnerID: &winner}
	cp := s.Clone()
	cp.Players[0].ID = "z"
	*cp.WinnerID = "z"
	if s.Players[0].ID != "a" || *s.WinnerID != "a" {
		t.Fatal("clone shares memory with original")
	}
}

func TestRemoveParticipant(t *testing.T) {
	ps := []Participant{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, ok := RemoveParticipant(ps, "b")
	if !ok || len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Fatalf("unexpected result %v %v", out, ok)
	}
	if _, ok := RemoveParticipant(ps, "x"); ok {
		t.Fatal("missing id reported as removed")
	}
	if len(ps) != 3 {
		t.Fatal("input mutated")
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[error]string{
		fmt.Errorf("%w: session x", ErrNotFound): "not_found",
		fmt.Errorf("%w: full", ErrCapacity):      "capacity",
		ErrInsufficientPlayers:                   "insufficient_players",
		errors.New("boom"):                       "internal",
	}
	for err, want := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %s, want %s", err, got, want)
		}
	}
}
