package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenakit/core"
)

func TestUpdateRatingEqualRatings(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1500))
	ctx := context.Background()

	var changes []core.RatingChange
	a.Subscribe(core.EventRatingChanged, func(_ context.Context, ev core.Event) { changes = ev.Changes })

	res, err := a.Ratings.UpdateRating(ctx, "a", "b", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(16), res.Delta)
	assert.Equal(t, int64(1516), res.Winner.Rating)
	assert.Equal(t, int64(1484), res.Loser.Rating)
	assert.Equal(t, int64(1), res.Winner.GamesWon)
	assert.Equal(t, int64(1), res.Winner.GamesPlayed)
	assert.Equal(t, int64(1), res.Loser.GamesPlayed)
	assert.Equal(t, int64(0), res.Loser.GamesWon)

	require.Len(t, changes, 2)
	assert.Equal(t, int64(16), changes[0].Delta)
	assert.Equal(t, int64(-16), changes[1].Delta)

	hist, err := a.Ratings.GetRatingHistory(ctx, "b")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, int64(1484), hist[0].Rating)
	assert.Equal(t, "g1", hist[0].GameID)
}

func TestUpdateRatingUnknownPlayerIsNoop(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500))
	ctx := context.Background()

	_, err := a.Ratings.UpdateRating(ctx, "a", "ghost", "g1")
	require.ErrorIs(t, err, core.ErrNotFound)

	p, err := a.Ratings.GetPlayer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), p.Rating)
	assert.Zero(t, p.GamesPlayed)
	hist, err := a.Ratings.GetRatingHistory(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestUpdateRatingRejectsSelfMatch(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500))
	_, err := a.Ratings.UpdateRating(context.Background(), "a", "a", "g1")
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLoserRatingFloorsAtZero(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 0), newPlayer("b", 5))
	res, err := a.Ratings.UpdateRating(context.Background(), "a", "b", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Loser.Rating)
}

func TestLeaderboardOrderAndTies(t *testing.T) {
	a, _ := newTestArena(t,
		newPlayer("low", 1000),
		newPlayer("tie1", 1200),
		newPlayer("top", 1400),
		newPlayer("tie2", 1200),
	)
	ctx := context.Background()

	board, err := a.Ratings.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 4)
	var ids []core.PlayerID
	for i, e := range board {
		assert.Equal(t, i+1, e.Rank)
		ids = append(ids, e.PlayerID)
	}
	assert.Equal(t, []core.PlayerID{"top", "tie1", "tie2", "low"}, ids)

	top2, err := a.Ratings.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top2, 2)

	rank, err := a.Ratings.GetPlayerRank(ctx, "tie2")
	require.NoError(t, err)
	assert.Equal(t, 3, rank)

	_, err = a.Ratings.GetPlayerRank(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLeaderboardFollowsRatingUpdates(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500), newPlayer("b", 1510))
	ctx := context.Background()

	var last []core.LeaderboardEntry
	a.Subscribe(core.EventLeaderboardUpdated, func(_ context.Context, ev core.Event) { last = ev.Leaderboard })

	_, err := a.Ratings.UpdateRating(ctx, "a", "b", "g1")
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, core.PlayerID("a"), last[0].PlayerID)
	assert.Equal(t, 100.0, last[0].WinRate)
}

func TestAddPlayerValidation(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500))
	ctx := context.Background()

	_, err := a.Ratings.AddPlayer(ctx, newPlayer("A ", 1200))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)

	bad := newPlayer("c", 1200)
	bad.GamesWon, bad.GamesPlayed = 3, 2
	_, err = a.Ratings.AddPlayer(ctx, bad)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = a.Ratings.AddPlayer(ctx, newPlayer("  ", 1200))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	players, err := a.Ratings.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Len(t, players, 1)
}

func TestAddExperienceRaisesLevel(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("a", 1500))
	ctx := context.Background()

	p, err := a.Ratings.AddExperience(ctx, "a", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Level)

	_, err = a.Ratings.AddExperience(ctx, "a", 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = a.Ratings.AddExperience(ctx, "ghost", 10)
	assert.ErrorIs(t, err, core.ErrNotFound)

	prog, err := a.Ratings.GetPlayerProgress(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), prog.Level)
	assert.Equal(t, int64(900), prog.ExperienceToNextLevel)
}

func TestAddExperienceNeverLowersLevel(t *testing.T) {
	p := newPlayer("a", 1500)
	p.Level = 10
	a, _ := newTestArena(t, p)

	got, err := a.Ratings.AddExperience(context.Background(), "a", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Level)
}

func TestPlayerStats(t *testing.T) {
	a, _ := newTestArena(t, core.SamplePlayers()...)
	stats, err := a.Ratings.GetPlayerStats(context.Background(), "player1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), stats.TotalGames)
	assert.Equal(t, int64(35), stats.Losses)
	assert.Equal(t, int64(120*core.PlayTimePerGame), stats.TotalPlayTime)

	_, err = a.Ratings.GetPlayerStats(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPlayerIDsAreCaseInsensitive(t *testing.T) {
	a, _ := newTestArena(t, newPlayer("Alice", 1500), newPlayer("Bob", 1500))
	ctx := context.Background()

	res, err := a.Ratings.UpdateRating(ctx, "Alice", "BOB", "g")
	require.NoError(t, err)
	assert.Equal(t, core.PlayerID("alice"), res.Winner.ID)

	_, err = a.Ratings.UpdateRating(ctx, "alice", "ALICE", "g")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	p, err := a.Ratings.AddExperience(ctx, " Bob ", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Experience)

	rank, err := a.Ratings.GetPlayerRank(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	hist, err := a.Ratings.GetRatingHistory(ctx, "Bob")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}
