package engine

import (
	"context"
	"slices"
	"sync"

	"arenakit/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id int64
	fn func(context.Context, core.Event)
}

// EventBus is the observer registry. In sync mode handlers run on the
// publishing goroutine, in subscription order, after the mutation completed.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.EventType][]subscription
	nextID       int64
	asyncQueue   chan core.Event
	asyncWorkers int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.EventType][]subscription),
		asyncQueue:   make(chan core.Event, 2048),
		asyncWorkers: 4,
		ctx:          ctx,
		cancel:       cancel,
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case ev := <-e.asyncQueue:
					e.dispatchSync(context.Background(), ev)
				case <-e.ctx.Done():
					return
				}
			}
		}()
	}
}

// Close stops async workers and waits for in-flight handlers.
func (e *EventBus) Close() {
	e.cancel()
	e.wg.Wait()
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs[typ] = append(e.subs[typ], subscription{id: id, fn: handler})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs[typ] = slices.DeleteFunc(e.subs[typ], func(s subscription) bool { return s.id == id })
	}
}

// SubscribeAll registers handler on every topic.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Event)) func() {
	unsubs := make([]func(), 0, len(core.AllEventTypes))
	for _, typ := range core.AllEventTypes {
		unsubs = append(unsubs, e.Subscribe(typ, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- ev:
		default:
			// Drop if queue full to preserve latency; alternative is blocking
		}
		return
	}
	e.dispatchSync(ctx, ev)
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(e.subs[ev.Type]))
	for _, s := range e.subs[ev.Type] {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
