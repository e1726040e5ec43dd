package sqlx_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "arenakit/adapters/sqlx"
	"arenakit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

var playerCols = []string{"id", "username", "avatar", "level", "experience", "rating", "games_played", "games_won", "last_active"}

func TestSQLMock_CreatePlayer_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	p := core.Player{ID: "p1", Username: "Alice", Level: 1, Rating: 1500, LastActive: now}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(p.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO players`).
		WithArgs(p.ID, "Alice", "", int64(1), int64(0), int64(1500), int64(0), int64(0), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CreatePlayer(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreatePlayer_Duplicate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("p1")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := store.CreatePlayer(context.Background(), core.Player{ID: "p1", Level: 1})
	require.ErrorIs(t, err, core.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetPlayer(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM players WHERE id = \$1`).
		WithArgs(core.PlayerID("p1")).
		WillReturnRows(sqlmock.NewRows(playerCols).AddRow("p1", "Alice", "👑", 3, 400, 1516, 1, 1, now))

	p, err := store.GetPlayer(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, int64(1516), p.Rating)
	require.Equal(t, int64(3), p.Level)
	require.Equal(t, "👑", p.Avatar)

	mock.ExpectQuery(`FROM players WHERE id`).
		WithArgs(core.PlayerID("ghost")).
		WillReturnError(sql.ErrNoRows)
	_, err = store.GetPlayer(context.Background(), "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ListPlayers_Ordered(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM players ORDER BY seq`).
		WillReturnRows(sqlmock.NewRows(playerCols).
			AddRow("p2", "Bob", "", 1, 0, 1400, 0, 0, now).
			AddRow("p1", "Alice", "", 1, 0, 1500, 0, 0, now))

	players, err := store.ListPlayers(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, core.PlayerID("p2"), players[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SavePlayers(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	winner := core.Player{ID: "a", Username: "a", Level: 1, Rating: 1516, GamesPlayed: 1, GamesWon: 1, LastActive: now}
	loser := core.Player{ID: "b", Username: "b", Level: 1, Rating: 1484, GamesPlayed: 1, LastActive: now}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE players SET`).
		WithArgs("a", "", int64(1), int64(0), int64(1516), int64(1), int64(1), now, winner.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE players SET`).
		WithArgs("b", "", int64(1), int64(0), int64(1484), int64(1), int64(0), now, loser.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rating_history`).
		WithArgs(winner.ID, now, int64(1516), int64(16), "g1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO rating_history`).
		WithArgs(loser.ID, now, int64(1484), int64(-16), "g1").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.SavePlayers(context.Background(), []core.Player{winner, loser}, []core.RatingChange{
		{PlayerID: "a", Time: now, Rating: 1516, Delta: 16, GameID: "g1"},
		{PlayerID: "b", Time: now, Rating: 1484, Delta: -16, GameID: "g1"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SavePlayers_UnknownRollsBack(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE players SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SavePlayers(context.Background(), []core.Player{{ID: "ghost", Level: 1}}, nil)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RatingHistory(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM rating_history WHERE player_id = \$1 ORDER BY seq DESC`).
		WithArgs(core.PlayerID("a")).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "at", "rating", "delta", "game_id"}).
			AddRow("a", now, 1530, 14, "g2").
			AddRow("a", now, 1516, 16, "g1"))

	hist, err := store.RatingHistory(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "g2", hist[0].GameID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UnlockAchievements(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	a := core.Achievement{ID: "first_win", Name: "First Win", Description: "Win", Points: 25, Category: core.CategoryGame, Unlocked: true, UnlockedAt: &now}
	r := core.RewardFor(a)
	r.Awarded, r.AwardedAt = true, &now

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("p1"), a.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO player_achievements`).
		WithArgs(core.PlayerID("p1"), a.ID, a.Name, a.Description, "", int64(25), a.Category, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("p1"), r.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO player_rewards`).
		WithArgs(core.PlayerID("p1"), r.ID, r.Name, r.Description, r.Type, int64(250), r.Icon, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.UnlockAchievements(context.Background(), "p1", []core.Unlock{{Achievement: a, Reward: r}}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UnlockAchievements_DuplicateRollsBack(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	a := core.Achievement{ID: "first_game"}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("p1"), a.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := store.UnlockAchievements(context.Background(), "p1", []core.Unlock{{Achievement: a, Reward: core.RewardFor(a)}})
	require.ErrorIs(t, err, core.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_PlayerRewards(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM player_rewards WHERE player_id`).
		WithArgs(core.PlayerID("p1")).
		WillReturnRows(sqlmock.NewRows([]string{"reward_id", "name", "description", "type", "value", "icon", "awarded_at"}).
			AddRow("welcome", "Welcome", "", "coins", 100, "", now))

	rewards, err := store.PlayerRewards(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	require.Equal(t, core.RewardCoins, rewards[0].Type)
	require.True(t, rewards[0].Awarded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultConfig(t *testing.T) {
	cfg := storage.DefaultConfig(storage.DriverMySQL)
	require.Equal(t, storage.DriverMySQL, cfg.Driver)
	require.Contains(t, cfg.DSN, "parseTime=true")
	require.Equal(t, 10, cfg.MaxOpenConns)

	_, err := storage.New(storage.Config{Driver: "oracle"})
	require.Error(t, err)
}
