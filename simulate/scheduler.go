package simulate

import (
	"slices"
	"sync"
	"time"
)

// Scheduler runs fn every interval until the returned stop func is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// TickerScheduler drives jobs from time.Ticker goroutines.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// ManualScheduler only runs jobs when Tick is called.
type ManualScheduler struct {
	mu   sync.Mutex
	next int
	jobs map[int]func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{jobs: map[int]func(){}}
}

func (m *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.jobs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.jobs, id)
		m.mu.Unlock()
	}
}

// Tick runs every registered job once, in registration order.
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	jobs := m.jobs
	m.mu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		m.mu.Lock()
		fn, ok := jobs[id]
		m.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Jobs reports how many jobs are registered.
func (m *ManualScheduler) Jobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
