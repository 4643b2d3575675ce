// Package notify implements the in-memory notification center: a bounded
// list of toasts, each optionally removed by its own timer.
package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

const (
	DefaultCap      = 5
	DefaultDuration = 5 * time.Second
)

type Severity string

const (
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
	Info    Severity = "info"
)

// Action is a button attached to a notification.
type Action struct {
	Label   string
	Primary bool
	Handler func()
}

// Spec describes a notification to show. Duration is optional: the zero
// value means "unset" and resolves to the center default, so a sticky
// notification is requested with Persistent rather than Duration 0.
type Spec struct {
	Severity   Severity
	Title      string
	Message    string
	Duration   time.Duration
	Persistent bool
	Actions    []Action
}

// Notification is a live entry. Duration 0 means sticky.
type Notification struct {
	ID        string
	Severity  Severity
	Title     string
	Message   string
	Duration  time.Duration
	Actions   []Action
	CreatedAt time.Time
}

type entry struct {
	Notification
	cancel clock.CancelFunc
	// armed is bumped on every arm and stop; a callback from an older arm
	// is ignored.
	armed uint64
}

type Options struct {
	Cap             int
	DefaultDuration time.Duration
	Logger          logging.Logger
	// NewID overrides id generation, mostly for tests.
	NewID func() string
}

type Center struct {
	sched clock.Scheduler
	log   logging.Logger
	newID func() string
	cap   int

	mu              sync.Mutex
	defaultDuration time.Duration
	items           []*entry
	paused          bool
	disposed        bool
	subs            map[int]func([]Notification)
	nextSub         int
}

func NewCenter(sched clock.Scheduler, opts Options) *Center {
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Center{
		sched:           sched,
		log:             logging.OrNop(opts.Logger).With("component", "notify"),
		newID:           opts.NewID,
		cap:             opts.Cap,
		defaultDuration: opts.DefaultDuration,
		subs:            make(map[int]func([]Notification)),
	}
}

// Show appends a notification and returns its id. Entries beyond the cap are
// evicted oldest first.
func (c *Center) Show(spec Spec) string {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ""
	}

	d := spec.Duration
	switch {
	case spec.Persistent:
		d = 0
	case d <= 0:
		d = c.defaultDuration
	}
	if spec.Severity == "" {
		spec.Severity = Info
	}

	e := &entry{Notification: Notification{
		ID:        c.newID(),
		Severity:  spec.Severity,
		Title:     spec.Title,
		Message:   spec.Message,
		Duration:  d,
		Actions:   slices.Clone(spec.Actions),
		CreatedAt: c.sched.Now(),
	}}
	c.items = append(c.items, e)

	if excess := len(c.items) - c.cap; excess > 0 {
		for _, old := range c.items[:excess] {
			old.stop()
			c.log.Debug(context.Background(), "notification evicted", "id", old.ID)
		}
		c.items = slices.Clone(c.items[excess:])
	}

	if d > 0 && !c.paused {
		c.armLocked(e, d)
	}
	id := e.ID
	c.mu.Unlock()

	c.publish()
	return id
}

// Hide removes one notification. Unknown ids are ignored.
func (c *Center) Hide(id string) {
	c.mu.Lock()
	removed := c.removeLocked(id)
	c.mu.Unlock()
	if removed {
		c.publish()
	}
}

// ClearAll drops every notification and its timer.
func (c *Center) ClearAll() {
	c.mu.Lock()
	for _, e := range c.items {
		e.stop()
	}
	had := len(c.items) > 0
	c.items = nil
	c.mu.Unlock()
	if had {
		c.publish()
	}
}

// Pause stops all expiry timers and keeps every entry.
func (c *Center) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	for _, e := range c.items {
		e.stop()
	}
}

// Resume re-arms timers with each entry's remaining lifetime; entries whose
// lifetime elapsed while paused are removed at once.
func (c *Center) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false

	now := c.sched.Now()
	kept := c.items[:0]
	changed := false
	for _, e := range c.items {
		if e.Duration == 0 {
			kept = append(kept, e)
			continue
		}
		remaining := e.CreatedAt.Add(e.Duration).Sub(now)
		if remaining <= 0 {
			changed = true
			continue
		}
		c.armLocked(e, remaining)
		kept = append(kept, e)
	}
	c.items = kept
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

func (c *Center) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetDefaultDuration changes the duration used by specs that leave it unset.
func (c *Center) SetDefaultDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.defaultDuration = d
	c.mu.Unlock()
}

// List returns the live notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Center) HasActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) > 0
}

// Subscribe registers fn to receive the list after every change. The
// returned func unregisters it.
func (c *Center) Subscribe(fn func([]Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Dispose cancels every timer. The center accepts nothing afterwards.
func (c *Center) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.items {
		e.stop()
	}
	c.items = nil
	c.subs = map[int]func([]Notification){}
	c.disposed = true
}

func (c *Center) armLocked(e *entry, d time.Duration) {
	e.armed++
	id, armed := e.ID, e.armed
	e.cancel = c.sched.Schedule(func() {
		c.mu.Lock()
		if c.paused || e.armed != armed {
			c.mu.Unlock()
			return
		}
		e.cancel = nil
		removed := c.removeLocked(id)
		c.mu.Unlock()
		if removed {
			c.publish()
		}
	}, d)
}

func (c *Center) removeLocked(id string) bool {
	for i, e := range c.items {
		if e.ID == id {
			e.stop()
			c.items = slices.Delete(c.items, i, i+1)
			return true
		}
	}
	return false
}

func (c *Center) snapshotLocked() []Notification {
	out := make([]Notification, len(c.items))
	for i, e := range c.items {
		out[i] = e.Notification
	}
	return out
}

func (c *Center) publish() {
	c.mu.Lock()
	list := c.snapshotLocked()
	subs := make([]func([]Notification), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(list)
	}
}

func (e *entry) stop() {
	e.armed++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
