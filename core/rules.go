package core

import "fmt"

// Predicate decides whether stats satisfy an unlock condition.
type Predicate func(Stats) bool

// Rule pairs a catalog achievement with its unlock predicate.
// A nil When means the achievement is only granted through a manual unlock.
type Rule struct {
	Achievement Achievement
	When        Predicate
}

// Satisfied reports whether the rule fires for stats.
func (r Rule) Satisfied(s Stats) bool {
	return r.When != nil && r.When(s)
}

func GamesPlayedAtLeast(n int64) Predicate { return func(s Stats) bool { return s.GamesPlayed >= n } }
func GamesWonAtLeast(n int64) Predicate    { return func(s Stats) bool { return s.GamesWon >= n } }
func RatingAtLeast(n int64) Predicate      { return func(s Stats) bool { return s.Rating >= n } }

// RewardMultiplier converts achievement points into the xp reward value.
const RewardMultiplier = 10

// AchievementRewardPrefix starts every reward id issued for an unlock.
const AchievementRewardPrefix = "reward_"

// RewardFor builds the one-time reward issued when a is unlocked.
func RewardFor(a Achievement) Reward {
	return Reward{
		ID:          AchievementRewardPrefix + string(a.ID),
		Name:        "Reward for: " + a.Name,
		Description: fmt.Sprintf("Earned by unlocking %q", a.Name),
		Type:        RewardXP,
		Value:       a.Points * RewardMultiplier,
		Icon:        "🏆",
	}
}

// DefaultCatalog returns the built-in achievement rules in display order.
func DefaultCatalog() []Rule {
	return []Rule{
		{Achievement{ID: "first_game", Name: "First Game", Description: "Play your first game", Icon: "🎮", Points: 10, Category: CategoryGame}, GamesPlayedAtLeast(1)},
		{Achievement{ID: "first_win", Name: "First Win", Description: "Win your first game", Icon: "🏆", Points: 25, Category: CategoryGame}, GamesWonAtLeast(1)},
		{Achievement{ID: "veteran", Name: "Veteran", Description: "Play 50 games", Icon: "🎖️", Points: 50, Category: CategoryGame}, GamesPlayedAtLeast(50)},
		{Achievement{ID: "champion", Name: "Champion", Description: "Win 25 games", Icon: "👑", Points: 100, Category: CategoryGame}, GamesWonAtLeast(25)},
		{Achievement{ID: "master", Name: "Master", Description: "Reach a rating of 1600", Icon: "⭐", Points: 150, Category: CategorySkill}, RatingAtLeast(1600)},
		{Achievement{ID: "socializer", Name: "Socializer", Description: "Play with 10 different players", Icon: "👥", Points: 30, Category: CategorySocial}, nil},
	}
}
