package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"arenakit/core"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"ARENAKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"ARENAKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"ARENAKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"ARENAKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"ARENAKIT_SQL_CONN_MAX_LIFETIME"`
	// AutoMigrate creates missing tables on New.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" env:"ARENAKIT_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns pool defaults for the driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverMySQL:
		cfg.DSN = "root:@tcp(localhost:3306)/arenakit?parseTime=true"
	default:
		cfg.DSN = "postgres://localhost:5432/arenakit?sslmode=disable"
	}
	return cfg
}

// Store implements the engine.Storage interface on PostgreSQL or MySQL.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and, if configured, migrates the schema.
func New(cfg Config) (*Store, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.driver == DriverMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		seq BIGSERIAL UNIQUE,
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		level BIGINT NOT NULL,
		experience BIGINT NOT NULL,
		rating BIGINT NOT NULL,
		games_played BIGINT NOT NULL,
		games_won BIGINT NOT NULL,
		last_active TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
		seq BIGSERIAL PRIMARY KEY,
		player_id TEXT NOT NULL,
		at TIMESTAMPTZ NOT NULL,
		rating BIGINT NOT NULL,
		delta BIGINT NOT NULL,
		game_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS player_achievements (
		seq BIGSERIAL UNIQUE,
		player_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		points BIGINT NOT NULL,
		category TEXT NOT NULL,
		unlocked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (player_id, achievement_id)
	)`,
	`CREATE TABLE IF NOT EXISTS player_rewards (
		seq BIGSERIAL UNIQUE,
		player_id TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		value BIGINT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		awarded_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (player_id, reward_id)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		seq BIGINT AUTO_INCREMENT UNIQUE,
		id VARCHAR(191) PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		avatar VARCHAR(64) NOT NULL DEFAULT '',
		level BIGINT NOT NULL,
		experience BIGINT NOT NULL,
		rating BIGINT NOT NULL,
		games_played BIGINT NOT NULL,
		games_won BIGINT NOT NULL,
		last_active DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		player_id VARCHAR(191) NOT NULL,
		at DATETIME(6) NOT NULL,
		rating BIGINT NOT NULL,
		delta BIGINT NOT NULL,
		game_id VARCHAR(191) NOT NULL,
		INDEX idx_history_player (player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS player_achievements (
		seq BIGINT AUTO_INCREMENT UNIQUE,
		player_id VARCHAR(191) NOT NULL,
		achievement_id VARCHAR(191) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		icon VARCHAR(64) NOT NULL DEFAULT '',
		points BIGINT NOT NULL,
		category VARCHAR(32) NOT NULL,
		unlocked_at DATETIME(6) NOT NULL,
		PRIMARY KEY (player_id, achievement_id)
	)`,
	`CREATE TABLE IF NOT EXISTS player_rewards (
		seq BIGINT AUTO_INCREMENT UNIQUE,
		player_id VARCHAR(191) NOT NULL,
		reward_id VARCHAR(191) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		type VARCHAR(16) NOT NULL,
		value BIGINT NOT NULL,
		icon VARCHAR(64) NOT NULL DEFAULT '',
		awarded_at DATETIME(6) NOT NULL,
		PRIMARY KEY (player_id, reward_id)
	)`,
}

type playerRow struct {
	ID          string    `db:"id"`
	Username    string    `db:"username"`
	Avatar      string    `db:"avatar"`
	Level       int64     `db:"level"`
	Experience  int64     `db:"experience"`
	Rating      int64     `db:"rating"`
	GamesPlayed int64     `db:"games_played"`
	GamesWon    int64     `db:"games_won"`
	LastActive  time.Time `db:"last_active"`
}

func (r playerRow) player() core.Player {
	return core.Player{
		ID:          core.PlayerID(r.ID),
		Username:    r.Username,
		Avatar:      r.Avatar,
		Level:       r.Level,
		Experience:  r.Experience,
		Rating:      r.Rating,
		GamesPlayed: r.GamesPlayed,
		GamesWon:    r.GamesWon,
		LastActive:  r.LastActive,
	}
}

type historyRow struct {
	PlayerID string    `db:"player_id"`
	At       time.Time `db:"at"`
	Rating   int64     `db:"rating"`
	Delta    int64     `db:"delta"`
	GameID   string    `db:"game_id"`
}

type achievementRow struct {
	ID          string    `db:"achievement_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Icon        string    `db:"icon"`
	Points      int64     `db:"points"`
	Category    string    `db:"category"`
	UnlockedAt  time.Time `db:"unlocked_at"`
}

type rewardRow struct {
	ID          string    `db:"reward_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Type        string    `db:"type"`
	Value       int64     `db:"value"`
	Icon        string    `db:"icon"`
	AwardedAt   time.Time `db:"awarded_at"`
}

const playerColumns = "id, username, avatar, level, experience, rating, games_played, games_won, last_active"

func (s *Store) q(query string) string { return s.db.Rebind(query) }

// withTx runs fn in a transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) exists(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (bool, error) {
	var ok bool
	if err := tx.GetContext(ctx, &ok, s.q(query), args...); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p core.Player) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		taken, err := s.exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM players WHERE id = ?)`, p.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: player %s", core.ErrAlreadyExists, p.ID)
		}
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO players (`+playerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.Username, p.Avatar, p.Level, p.Experience, p.Rating, p.GamesPlayed, p.GamesWon, p.LastActive)
		return err
	})
}

func (s *Store) GetPlayer(ctx context.Context, id core.PlayerID) (core.Player, error) {
	var row playerRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT `+playerColumns+` FROM players WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Player{}, fmt.Errorf("%w: player %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Player{}, err
	}
	return row.player(), nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]core.Player, error) {
	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+playerColumns+` FROM players ORDER BY seq`); err != nil {
		return nil, err
	}
	out := make([]core.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.player())
	}
	return out, nil
}

func (s *Store) SavePlayers(ctx context.Context, players []core.Player, history []core.RatingChange) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range players {
			res, err := tx.ExecContext(ctx, s.q(`UPDATE players SET username = ?, avatar = ?, level = ?, experience = ?, rating = ?, games_played = ?, games_won = ?, last_active = ? WHERE id = ?`),
				p.Username, p.Avatar, p.Level, p.Experience, p.Rating, p.GamesPlayed, p.GamesWon, p.LastActive, p.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: player %s", core.ErrNotFound, p.ID)
			}
		}
		for _, h := range history {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO rating_history (player_id, at, rating, delta, game_id) VALUES (?, ?, ?, ?, ?)`),
				h.PlayerID, h.Time, h.Rating, h.Delta, h.GameID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RatingHistory(ctx context.Context, id core.PlayerID) ([]core.RatingChange, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT player_id, at, rating, delta, game_id FROM rating_history WHERE player_id = ? ORDER BY seq DESC`), id)
	if err != nil {
		return nil, err
	}
	out := make([]core.RatingChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.RatingChange{PlayerID: core.PlayerID(r.PlayerID), Time: r.At, Rating: r.Rating, Delta: r.Delta, GameID: r.GameID})
	}
	return out, nil
}

func (s *Store) UnlockAchievements(ctx context.Context, player core.PlayerID, unlocks []core.Unlock) error {
	if len(unlocks) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range unlocks {
			taken, err := s.exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM player_achievements WHERE player_id = ? AND achievement_id = ?)`, player, u.Achievement.ID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: achievement %s for %s", core.ErrAlreadyExists, u.Achievement.ID, player)
			}
		}
		for _, u := range unlocks {
			a := u.Achievement
			at := time.Now().UTC()
			if a.UnlockedAt != nil {
				at = *a.UnlockedAt
			}
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO player_achievements (player_id, achievement_id, name, description, icon, points, category, unlocked_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
				player, a.ID, a.Name, a.Description, a.Icon, a.Points, a.Category, at); err != nil {
				return err
			}
			if err := s.insertReward(ctx, tx, player, u.Reward); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertReward(ctx context.Context, tx *sqlx.Tx, player core.PlayerID, r core.Reward) error {
	taken, err := s.exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM player_rewards WHERE player_id = ? AND reward_id = ?)`, player, r.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: reward %s for %s", core.ErrAlreadyExists, r.ID, player)
	}
	at := time.Now().UTC()
	if r.AwardedAt != nil {
		at = *r.AwardedAt
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO player_rewards (player_id, reward_id, name, description, type, value, icon, awarded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		player, r.ID, r.Name, r.Description, r.Type, r.Value, r.Icon, at)
	return err
}

func (s *Store) PlayerAchievements(ctx context.Context, player core.PlayerID) ([]core.Achievement, error) {
	var rows []achievementRow
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT achievement_id, name, description, icon, points, category, unlocked_at FROM player_achievements WHERE player_id = ? ORDER BY seq`), player)
	if err != nil {
		return nil, err
	}
	out := make([]core.Achievement, 0, len(rows))
	for _, r := range rows {
		at := r.UnlockedAt
		out = append(out, core.Achievement{
			ID:          core.AchievementID(r.ID),
			Name:        r.Name,
			Description: r.Description,
			Icon:        r.Icon,
			Points:      r.Points,
			Unlocked:    true,
			UnlockedAt:  &at,
			Category:    core.AchievementCategory(r.Category),
		})
	}
	return out, nil
}

func (s *Store) AddReward(ctx context.Context, player core.PlayerID, r core.Reward) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.insertReward(ctx, tx, player, r)
	})
}

func (s *Store) PlayerRewards(ctx context.Context, player core.PlayerID) ([]core.Reward, error) {
	var rows []rewardRow
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT reward_id, name, description, type, value, icon, awarded_at FROM player_rewards WHERE player_id = ? ORDER BY seq`), player)
	if err != nil {
		return nil, err
	}
	out := make([]core.Reward, 0, len(rows))
	for _, r := range rows {
		at := r.AwardedAt
		out = append(out, core.Reward{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Type:        core.RewardType(r.Type),
			Value:       r.Value,
			Icon:        r.Icon,
			Awarded:     true,
			AwardedAt:   &at,
		})
	}
	return out, nil
}
