package analytics

import "arenakit/core"

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Collector pairs the active player tracker with the counters.
type Collector struct {
	DAU     *DAU
	Metrics *Metrics
	*BridgeHook
}

func NewCollector() *Collector {
	c := &Collector{DAU: NewDAU(), Metrics: NewMetrics()}
	c.BridgeHook = NewBridge(c.DAU, c.Metrics)
	return c
}

// Snapshot reports one day, including the active player count.
func (c *Collector) Snapshot(day string) Snapshot {
	s := c.Metrics.Snapshot(day)
	s.ActivePlayers = c.DAU.Count(day)
	return s
}
