package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"arenakit/core"
)

// AchievementService grants one-time unlocks and keeps the reward ledger.
// It reads player stats but never mutates player records.
type AchievementService struct {
	store AchievementStore
	rules RuleEngine
	bus   *EventBus
	locks *KeyLock
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// NewAchievementService returns a service over store. A nil rules engine
// selects the default catalog.
func NewAchievementService(store AchievementStore, rules RuleEngine, bus *EventBus, opts ...ServiceOption) *AchievementService {
	if store == nil || bus == nil {
		panic("NewAchievementService requires non-nil store and bus")
	}
	if rules == nil {
		rules = DefaultRuleEngine()
	}
	cfg := newServiceConfig(opts)
	return &AchievementService{
		store: store,
		rules: rules,
		bus:   bus,
		locks: cfg.locks,
		log:   cfg.logger.With("component", "achievements"),
		now:   cfg.now,
		newID: cfg.newID,
	}
}

// CheckAndUnlock evaluates every catalog entry the player has not unlocked
// yet and grants the ones stats satisfy, one reward each.
func (a *AchievementService) CheckAndUnlock(ctx context.Context, player core.PlayerID, stats core.Stats) ([]core.Achievement, error) {
	player = core.CanonicalPlayerID(player)
	var granted []core.Achievement
	err := a.locks.Do(ctx, func() error {
		unlocked, err := a.unlockedSet(ctx, player)
		if err != nil {
			return err
		}
		due := a.rules.Evaluate(ctx, stats, unlocked)
		if len(due) == 0 {
			return nil
		}
		if err := checkCtx(ctx); err != nil {
			return err
		}
		now := a.now()
		batch := make([]core.Unlock, 0, len(due))
		for _, ach := range due {
			batch = append(batch, a.grant(ach, now))
		}
		if err := a.store.UnlockAchievements(ctx, player, batch); err != nil {
			return fmt.Errorf("unlocking achievements: %w", err)
		}
		for _, u := range batch {
			granted = append(granted, u.Achievement)
		}
		return nil
	}, achievementKey(player))
	if err != nil {
		return nil, err
	}
	if len(granted) > 0 {
		ids := make([]core.AchievementID, 0, len(granted))
		for _, ach := range granted {
			ids = append(ids, ach.ID)
		}
		a.log.Info("achievements unlocked", "player_id", player, "achievements", ids)
		a.publish(ctx, player)
	}
	return granted, nil
}

// Unlock grants one achievement without checking its predicate. An already
// unlocked achievement is returned as recorded, with no new reward.
func (a *AchievementService) Unlock(ctx context.Context, player core.PlayerID, id core.AchievementID) (core.Achievement, error) {
	player = core.CanonicalPlayerID(player)
	if err := core.ValidateAchievementID(id); err != nil {
		return core.Achievement{}, err
	}
	def, ok := a.rules.Lookup(id)
	if !ok {
		return core.Achievement{}, fmt.Errorf("%w: achievement %s", core.ErrNotFound, id)
	}
	var (
		out   core.Achievement
		fresh bool
	)
	err := a.locks.Do(ctx, func() error {
		have, err := a.store.PlayerAchievements(ctx, player)
		if err != nil {
			return err
		}
		for _, ach := range have {
			if ach.ID == id {
				out = ach
				return nil
			}
		}
		if err := checkCtx(ctx); err != nil {
			return err
		}
		u := a.grant(def, a.now())
		if err := a.store.UnlockAchievements(ctx, player, []core.Unlock{u}); err != nil {
			return fmt.Errorf("unlocking %s: %w", id, err)
		}
		out, fresh = u.Achievement, true
		return nil
	}, achievementKey(player))
	if err != nil {
		return core.Achievement{}, err
	}
	if fresh {
		a.log.Info("achievement unlocked", "player_id", player, "achievement", id, "manual", true)
		a.publish(ctx, player)
	}
	return out, nil
}

// AwardReward adds a grant that is not tied to an achievement. An empty id
// gets a generated one.
func (a *AchievementService) AwardReward(ctx context.Context, player core.PlayerID, r core.Reward) (core.Reward, error) {
	player = core.CanonicalPlayerID(player)
	if err := core.ValidateRewardType(r.Type); err != nil {
		return core.Reward{}, err
	}
	if strings.TrimSpace(r.Name) == "" {
		return core.Reward{}, fmt.Errorf("%w: reward name cannot be empty", core.ErrInvalidArgument)
	}
	if r.Value < 0 {
		return core.Reward{}, fmt.Errorf("%w: reward value must be >= 0", core.ErrInvalidArgument)
	}
	if strings.HasPrefix(r.ID, core.AchievementRewardPrefix) {
		return core.Reward{}, fmt.Errorf("%w: reward id %q is reserved for achievement rewards", core.ErrInvalidArgument, r.ID)
	}
	if r.ID == "" {
		r.ID = a.newID()
	}
	now := a.now()
	r.Awarded, r.AwardedAt = true, &now
	err := a.locks.Do(ctx, func() error {
		if err := checkCtx(ctx); err != nil {
			return err
		}
		return a.store.AddReward(ctx, player, r)
	}, achievementKey(player))
	if err != nil {
		return core.Reward{}, err
	}
	a.log.Info("reward awarded", "player_id", player, "reward_id", r.ID, "type", r.Type, "value", r.Value)
	a.publishRewards(ctx, player)
	return r, nil
}

// Catalog lists every achievement definition in display order.
func (a *AchievementService) Catalog() []core.Achievement {
	return a.rules.Catalog()
}

// PlayerAchievements lists what the player unlocked, in unlock order.
func (a *AchievementService) PlayerAchievements(ctx context.Context, player core.PlayerID) ([]core.Achievement, error) {
	return a.store.PlayerAchievements(ctx, core.CanonicalPlayerID(player))
}

// PlayerRewards lists the player's reward ledger.
func (a *AchievementService) PlayerRewards(ctx context.Context, player core.PlayerID) ([]core.Reward, error) {
	return a.store.PlayerRewards(ctx, core.CanonicalPlayerID(player))
}

// Progress summarizes unlocks against the catalog.
func (a *AchievementService) Progress(ctx context.Context, player core.PlayerID) (core.AchievementProgress, error) {
	have, err := a.store.PlayerAchievements(ctx, core.CanonicalPlayerID(player))
	if err != nil {
		return core.AchievementProgress{}, err
	}
	p := core.AchievementProgress{Total: len(a.rules.Catalog()), Unlocked: len(have)}
	for _, ach := range have {
		p.TotalPoints += ach.Points
	}
	if p.Total > 0 {
		p.Progress = float64(p.Unlocked) / float64(p.Total) * 100
	}
	return p, nil
}

func (a *AchievementService) grant(def core.Achievement, at time.Time) core.Unlock {
	ach := def.Clone()
	ach.Unlocked = true
	ach.UnlockedAt = &at
	r := core.RewardFor(ach)
	r.Awarded = true
	r.AwardedAt = &at
	return core.Unlock{Achievement: ach, Reward: r}
}

func (a *AchievementService) unlockedSet(ctx context.Context, player core.PlayerID) (map[core.AchievementID]bool, error) {
	have, err := a.store.PlayerAchievements(ctx, player)
	if err != nil {
		return nil, err
	}
	set := make(map[core.AchievementID]bool, len(have))
	for _, ach := range have {
		set[ach.ID] = true
	}
	return set, nil
}

func (a *AchievementService) publish(ctx context.Context, player core.PlayerID) {
	have, err := a.store.PlayerAchievements(ctx, player)
	if err != nil {
		a.log.Warn("achievement snapshot failed", "player_id", player, "error", err)
		return
	}
	a.bus.Publish(ctx, core.NewAchievementsUpdated(player, have))
	a.publishRewards(ctx, player)
}

func (a *AchievementService) publishRewards(ctx context.Context, player core.PlayerID) {
	rewards, err := a.store.PlayerRewards(ctx, player)
	if err != nil {
		a.log.Warn("reward snapshot failed", "player_id", player, "error", err)
		return
	}
	a.bus.Publish(ctx, core.NewRewardsUpdated(player, rewards))
}
