package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arenakit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"ARENAKIT_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" env:"ARENAKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"ARENAKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"ARENAKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"ARENAKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"ARENAKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"ARENAKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"ARENAKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// maxTxRetries bounds optimistic transaction retries on WATCH conflicts.
const maxTxRetries = 5

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - arena:roster -> list of player ids in insertion order
// - arena:player:{id} -> JSON Player
// - arena:history:{id} -> list of JSON RatingChange, newest first
// - arena:achievements:{id} -> list of JSON Achievement in unlock order
// - arena:achievement_ids:{id} -> set of unlocked achievement ids
// - arena:rewards:{id} -> list of JSON Reward in award order
// - arena:reward_ids:{id} -> set of reward ids
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const rosterKey = "arena:roster"

func playerKey(id core.PlayerID) string         { return fmt.Sprintf("arena:player:%s", id) }
func historyKey(id core.PlayerID) string        { return fmt.Sprintf("arena:history:%s", id) }
func achievementsKey(id core.PlayerID) string   { return fmt.Sprintf("arena:achievements:%s", id) }
func achievementIDsKey(id core.PlayerID) string { return fmt.Sprintf("arena:achievement_ids:%s", id) }
func rewardsKey(id core.PlayerID) string        { return fmt.Sprintf("arena:rewards:%s", id) }
func rewardIDsKey(id core.PlayerID) string      { return fmt.Sprintf("arena:reward_ids:%s", id) }

// Lua script for atomic insert-if-absent plus roster append
var createPlayerScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('RPUSH', KEYS[2], ARGV[2])
	return 1
`)

func (s *Store) CreatePlayer(ctx context.Context, p core.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	created, err := createPlayerScript.Run(ctx, s.client, []string{playerKey(p.ID), rosterKey}, data, string(p.ID)).Int()
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: player %s", core.ErrAlreadyExists, p.ID)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id core.PlayerID) (core.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Player{}, fmt.Errorf("%w: player %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	var p core.Player
	if err := json.Unmarshal(data, &p); err != nil {
		return core.Player{}, fmt.Errorf("decoding player %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]core.Player, error) {
	ids, err := s.client.LRange(ctx, rosterKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	if len(ids) == 0 {
		return []core.Player{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, playerKey(core.PlayerID(id)))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}
	out := make([]core.Player, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// roster entry without a record; skip rather than fail the listing
			continue
		}
		var p core.Player
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, fmt.Errorf("decoding player %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SavePlayers replaces existing records and prepends history in one MULTI,
// guarded by WATCH on the player keys.
func (s *Store) SavePlayers(ctx context.Context, players []core.Player, history []core.RatingChange) error {
	keys := make([]string, 0, len(players))
	blobs := make([][]byte, 0, len(players))
	for _, p := range players {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		keys = append(keys, playerKey(p.ID))
		blobs = append(blobs, data)
	}
	entries := make([][]byte, 0, len(history))
	for _, h := range history {
		data, err := json.Marshal(h)
		if err != nil {
			return err
		}
		entries = append(entries, data)
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		if len(keys) > 0 {
			n, err := tx.Exists(ctx, keys...).Result()
			if err != nil {
				return err
			}
			if int(n) != len(keys) {
				return fmt.Errorf("%w: one of %d players", core.ErrNotFound, len(keys))
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, k := range keys {
				pipe.Set(ctx, k, blobs[i], 0)
			}
			for i, h := range history {
				pipe.LPush(ctx, historyKey(h.PlayerID), entries[i])
			}
			return nil
		})
		return err
	}, keys...)
}

func (s *Store) RatingHistory(ctx context.Context, id core.PlayerID) ([]core.RatingChange, error) {
	return readList[core.RatingChange](ctx, s.client, historyKey(id))
}

func (s *Store) UnlockAchievements(ctx context.Context, player core.PlayerID, unlocks []core.Unlock) error {
	if len(unlocks) == 0 {
		return nil
	}
	achBlobs := make([]any, 0, len(unlocks))
	rewBlobs := make([]any, 0, len(unlocks))
	achIDs := make([]any, 0, len(unlocks))
	rewIDs := make([]any, 0, len(unlocks))
	for _, u := range unlocks {
		a, err := json.Marshal(u.Achievement)
		if err != nil {
			return err
		}
		r, err := json.Marshal(u.Reward)
		if err != nil {
			return err
		}
		achBlobs = append(achBlobs, a)
		rewBlobs = append(rewBlobs, r)
		achIDs = append(achIDs, string(u.Achievement.ID))
		rewIDs = append(rewIDs, u.Reward.ID)
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		for _, u := range unlocks {
			if err := ensureAbsent(ctx, tx, achievementIDsKey(player), string(u.Achievement.ID), "achievement", player); err != nil {
				return err
			}
			if err := ensureAbsent(ctx, tx, rewardIDsKey(player), u.Reward.ID, "reward", player); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, achievementIDsKey(player), achIDs...)
			pipe.RPush(ctx, achievementsKey(player), achBlobs...)
			pipe.SAdd(ctx, rewardIDsKey(player), rewIDs...)
			pipe.RPush(ctx, rewardsKey(player), rewBlobs...)
			return nil
		})
		return err
	}, achievementIDsKey(player), rewardIDsKey(player))
}

func (s *Store) PlayerAchievements(ctx context.Context, player core.PlayerID) ([]core.Achievement, error) {
	return readList[core.Achievement](ctx, s.client, achievementsKey(player))
}

func (s *Store) AddReward(ctx context.Context, player core.PlayerID, r core.Reward) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.watch(ctx, func(tx *redis.Tx) error {
		if err := ensureAbsent(ctx, tx, rewardIDsKey(player), r.ID, "reward", player); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, rewardIDsKey(player), r.ID)
			pipe.RPush(ctx, rewardsKey(player), data)
			return nil
		})
		return err
	}, rewardIDsKey(player))
}

func (s *Store) PlayerRewards(ctx context.Context, player core.PlayerID) ([]core.Reward, error) {
	return readList[core.Reward](ctx, s.client, rewardsKey(player))
}

// watch runs fn as an optimistic transaction, retrying when a watched key
// changed before EXEC.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: redis transaction kept conflicting", core.ErrTimeout)
}

func ensureAbsent(ctx context.Context, tx *redis.Tx, key, member, kind string, player core.PlayerID) error {
	taken, err := tx.SIsMember(ctx, key, member).Result()
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s %s for %s", core.ErrAlreadyExists, kind, member, player)
	}
	return nil
}

func readList[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	raw, err := client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
