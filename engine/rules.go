package engine

import (
	"context"

	"arenakit/core"
)

// DefaultRuleEngine evaluates the built-in achievement catalog.
func DefaultRuleEngine() RuleEngine {
	return NewRuleEngine(core.DefaultCatalog())
}

// NewRuleEngine builds a catalog-backed engine; rule order is display order.
func NewRuleEngine(rules []core.Rule) RuleEngine {
	return &catalogRuleEngine{rules: rules}
}

type catalogRuleEngine struct{ rules []core.Rule }

func (c *catalogRuleEngine) Evaluate(_ context.Context, stats core.Stats, unlocked map[core.AchievementID]bool) []core.Achievement {
	var out []core.Achievement
	for _, r := range c.rules {
		if unlocked[r.Achievement.ID] {
			continue
		}
		if r.Satisfied(stats) {
			out = append(out, r.Achievement.Clone())
		}
	}
	return out
}

func (c *catalogRuleEngine) Catalog() []core.Achievement {
	out := make([]core.Achievement, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Achievement.Clone())
	}
	return out
}

func (c *catalogRuleEngine) Lookup(id core.AchievementID) (core.Achievement, bool) {
	for _, r := range c.rules {
		if r.Achievement.ID == id {
			return r.Achievement.Clone(), true
		}
	}
	return core.Achievement{}, false
}
