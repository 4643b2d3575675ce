package clock

import (
	"sort"
	"sync"
	"time"
)

type fakeTimer struct {
	id       uint64
	deadline time.Time
	fn       func()
	stopped  bool
}

// Fake is a virtual clock. Time moves only when Advance is called; due
// callbacks run synchronously on the caller's goroutine in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers []*fakeTimer
}

// NewFake returns a virtual clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(fn func(), d time.Duration) CancelFunc {
	if d < 0 {
		d = 0
	}
	f.mu.Lock()
	f.nextID++
	t := &fakeTimer{id: f.nextID, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		t.stopped = true
		f.removeLocked(t.id)
	}
}

// Advance moves the clock forward by d, firing every callback whose deadline
// falls inside the window. Callbacks scheduled by fired callbacks are honoured
// if they are also due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		t := f.nextDueLocked(target)
		if t == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = t.deadline
		f.removeLocked(t.id)
		f.mu.Unlock()

		t.fn()
	}
}

// Set jumps the clock to an absolute time without firing anything. Useful to
// simulate wall time passing while timers were not armed.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Pending reports how many callbacks are armed.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].deadline.Equal(f.timers[j].deadline) {
			return f.timers[i].id < f.timers[j].id
		}
		return f.timers[i].deadline.Before(f.timers[j].deadline)
	})
	t := f.timers[0]
	if t.deadline.After(target) {
		return nil
	}
	return t
}

func (f *Fake) removeLocked(id uint64) {
	for i, t := range f.timers {
		if t.id == id {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}
