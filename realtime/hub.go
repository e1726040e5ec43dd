package realtime

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"arenakit/core"
)

// Hub fans events out to buffered subscriber channels. Slow subscribers
// lose events rather than stall the publisher; every event carries the full
// aggregate, so the next one they receive resynchronizes them.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch     chan core.Event
	topics []core.EventType
}

func (s subscriber) wants(t core.EventType) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, t)
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a channel for the given topics, or all topics when none are given.
func (h *Hub) Subscribe(buffer int, topics ...core.EventType) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, topics: slices.Clone(topics)}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast matches the event bus handler signature so it can be passed
// straight to SubscribeAll.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.wants(ev.Type) {
			continue
		}
		select {
		case s.ch <- ev:
		default: /* drop if full */
		}
	}
}

// ParseTopics validates topic names received from clients.
func ParseTopics(names []string) ([]core.EventType, error) {
	out := make([]core.EventType, 0, len(names))
	for _, n := range names {
		t := core.EventType(n)
		if !slices.Contains(core.AllEventTypes, t) {
			return nil, &UnknownTopicError{Topic: n}
		}
		out = append(out, t)
	}
	return out, nil
}

// UnknownTopicError reports a topic name no event uses.
type UnknownTopicError struct{ Topic string }

func (e *UnknownTopicError) Error() string { return "unknown topic: " + e.Topic }

func (e *UnknownTopicError) Unwrap() error { return core.ErrInvalidArgument }

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
