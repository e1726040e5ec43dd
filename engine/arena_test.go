package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenakit/core"
)

func TestFinishSessionFlow(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1500))
	ctx := context.Background()

	var unlockEvents []core.PlayerID
	a.Subscribe(core.EventAchievementsUpdated, func(_ context.Context, ev core.Event) {
		unlockEvents = append(unlockEvents, ev.PlayerID)
	})

	sess, err := a.Sessions.CreateSession(ctx, "final", 2)
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "b")
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = a.Sessions.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	res, err := a.FinishSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, core.SessionFinished, res.Session.Status)
	require.Len(t, res.Ratings, 1)
	assert.Equal(t, int64(1516), res.Ratings[0].Winner.Rating)
	assert.Equal(t, int64(1484), res.Ratings[0].Loser.Rating)

	assert.Equal(t, []core.AchievementID{"first_game", "first_win"}, achievementIDs(res.Unlocked["a"]))
	assert.Equal(t, []core.AchievementID{"first_game"}, achievementIDs(res.Unlocked["b"]))
	assert.Equal(t, []core.PlayerID{"a", "b"}, unlockEvents)

	hist, err := a.Ratings.GetRatingHistory(ctx, "a")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, res.Session.GameID, hist[0].GameID)

	// achievement side effects never touch the roster record
	p, err := a.Ratings.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Experience)
}

func TestFinishSessionRatesEveryLoser(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1500), newPlayer("c", 1500))
	ctx := context.Background()

	sess, err := a.Sessions.CreateSession(ctx, "ffa", 3)
	require.NoError(t, err)
	for _, id := range []core.PlayerID{"b", "a", "c"} {
		_, err = a.JoinSession(ctx, sess.ID, id)
		require.NoError(t, err)
	}
	_, err = a.Sessions.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	res, err := a.FinishSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	require.Len(t, res.Ratings, 2)
	assert.Equal(t, core.PlayerID("b"), res.Ratings[0].Loser.ID)
	assert.Equal(t, core.PlayerID("c"), res.Ratings[1].Loser.ID)

	winner, err := a.Ratings.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), winner.GamesPlayed)
	assert.Equal(t, int64(2), winner.GamesWon)
}

func TestFinishSessionSkipsUnknownParticipants(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500))
	ctx := context.Background()

	sess, err := a.Sessions.CreateSession(ctx, "bots", 2)
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	_, err = a.Sessions.JoinSession(ctx, sess.ID, core.Participant{ID: "bot-1", Username: "Bot"})
	require.NoError(t, err)
	_, err = a.Sessions.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	res, err := a.FinishSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	assert.Empty(t, res.Ratings)
	assert.NotContains(t, res.Unlocked, core.PlayerID("bot-1"))
}

func TestFinishSessionInvalidWinnerChangesNothing(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1500), newPlayer("c", 1500))
	ctx := context.Background()

	sess, err := a.Sessions.CreateSession(ctx, "duel", 2)
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	_, err = a.JoinSession(ctx, sess.ID, "b")
	require.NoError(t, err)
	_, err = a.Sessions.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	_, err = a.FinishSession(ctx, sess.ID, "c")
	require.ErrorIs(t, err, core.ErrInvalidArgument)

	got, err := a.Sessions.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, got.Status)
	p, err := a.Ratings.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, p.GamesPlayed)
}

func TestArenaGames(t *testing.T) {
	a, _ := newTestArena(t, core.SamplePlayers()...)
	ctx := context.Background()

	g, err := a.CreateGame(ctx, "Cup", "weekly", 4, "player1")
	require.NoError(t, err)
	assert.Equal(t, "Alexei", g.Players[0].Username)

	g, err = a.JoinGame(ctx, g.ID, "player2")
	require.NoError(t, err)
	assert.Equal(t, 2, g.ActivePlayers)

	_, err = a.JoinGame(ctx, g.ID, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = a.CreateGame(ctx, "Cup", "", 4, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFinishSessionCompletesAfterContextCancel(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1500))
	bg := context.Background()

	sess, err := a.Sessions.CreateSession(bg, "final", 2)
	require.NoError(t, err)
	for _, id := range []core.PlayerID{"a", "b"} {
		_, err = a.JoinSession(bg, sess.ID, id)
		require.NoError(t, err)
	}
	_, err = a.Sessions.StartSession(bg, sess.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	a.Subscribe(core.EventSessionsUpdated, func(_ context.Context, ev core.Event) {
		if ev.Session != nil && ev.Session.Status == core.SessionFinished {
			cancel()
		}
	})

	res, err := a.FinishSession(ctx, sess.ID, "a")
	require.NoError(t, err)
	require.Len(t, res.Ratings, 1)
	assert.Equal(t, []core.AchievementID{"first_game", "first_win"}, achievementIDs(res.Unlocked["a"]))

	winner, err := a.Ratings.GetPlayer(bg, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1516), winner.Rating)
	assert.Equal(t, int64(1), winner.GamesPlayed)
}

func TestFinishSessionMixedCaseWinner(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("Alice", 1500), newPlayer("Bob", 1500))
	ctx := context.Background()

	sess, err := a.Sessions.CreateSession(ctx, "final", 2)
	require.NoError(t, err)
	for _, id := range []core.PlayerID{"Alice", "BOB"} {
		_, err = a.JoinSession(ctx, sess.ID, id)
		require.NoError(t, err)
	}
	_, err = a.Sessions.StartSession(ctx, sess.ID)
	require.NoError(t, err)

	res, err := a.FinishSession(ctx, sess.ID, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, res.Session.WinnerID)
	assert.Equal(t, core.PlayerID("alice"), *res.Session.WinnerID)
	require.Len(t, res.Ratings, 1)
	assert.Equal(t, core.PlayerID("bob"), res.Ratings[0].Loser.ID)
}
