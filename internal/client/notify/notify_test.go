package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/partsdesk/internal/clock"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func newCenter(t *testing.T) (*Center, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewCenter(clk, Options{NewID: seqIDs()}), clk
}

func ids(list []Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func TestCenter_ExpiresAfterDuration(t *testing.T) {
	c, clk := newCenter(t)

	c.Show(Spec{Severity: Success, Title: "T", Message: "M", Duration: 100 * time.Millisecond})
	require.Len(t, c.List(), 1)

	clk.Advance(150 * time.Millisecond)
	assert.Empty(t, c.List())
	assert.False(t, c.HasActive())
}

func TestCenter_CapEvictsOldestAndItsTimer(t *testing.T) {
	c, clk := newCenter(t)

	removals := 0
	c.Subscribe(func([]Notification) { removals++ })

	for i := range 6 {
		c.Show(Spec{Title: fmt.Sprintf("t%d", i), Duration: time.Second})
	}
	assert.Equal(t, []string{"n2", "n3", "n4", "n5", "n6"}, ids(c.List()))
	assert.Equal(t, 5, clk.Pending(), "evicted entry's timer must be cancelled")

	removals = 0
	clk.Advance(time.Second)
	assert.Empty(t, c.List())
	assert.Equal(t, 5, removals)
}

func TestCenter_DefaultAndStickyDurations(t *testing.T) {
	c, clk := newCenter(t)

	c.Show(Spec{Title: "default"})
	c.Show(Spec{Title: "sticky", Duration: time.Second, Persistent: true})

	list := c.List()
	assert.Equal(t, DefaultDuration, list[0].Duration)
	assert.Zero(t, list[1].Duration)
	assert.Equal(t, Info, list[0].Severity)

	clk.Advance(time.Hour)
	assert.Equal(t, []string{"n2"}, ids(c.List()))
}

func TestCenter_SetDefaultDuration(t *testing.T) {
	c, clk := newCenter(t)
	c.SetDefaultDuration(time.Second)
	c.Show(Spec{Title: "x"})

	clk.Advance(time.Second)
	assert.Empty(t, c.List())
}

func TestCenter_HideIsIdempotent(t *testing.T) {
	c, clk := newCenter(t)
	id := c.Show(Spec{Title: "x"})

	c.Hide(id)
	c.Hide(id)
	c.Hide("unknown")
	assert.Empty(t, c.List())
	assert.Zero(t, clk.Pending())
}

func TestCenter_ClearAll(t *testing.T) {
	c, clk := newCenter(t)
	c.Show(Spec{Title: "a"})
	c.Show(TokenExpired(nil))

	c.ClearAll()
	assert.Empty(t, c.List())
	assert.Zero(t, clk.Pending())
}

func TestCenter_PauseResume(t *testing.T) {
	c, clk := newCenter(t)

	c.Show(Spec{Title: "short", Duration: time.Second})
	c.Show(Spec{Title: "long", Duration: 10 * time.Second})
	c.Show(Spec{Title: "sticky", Persistent: true})

	c.Pause()
	assert.True(t, c.IsPaused())
	assert.Zero(t, clk.Pending())

	clk.Advance(3 * time.Second)
	assert.Len(t, c.List(), 3, "paused entries survive")

	c.Show(Spec{Title: "while paused", Duration: time.Second})
	assert.Zero(t, clk.Pending())

	c.Resume()
	assert.Equal(t, []string{"n2", "n3", "n4"}, ids(c.List()))
	assert.Equal(t, 2, clk.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, []string{"n2", "n3"}, ids(c.List()))

	clk.Advance(6 * time.Second)
	assert.Equal(t, []string{"n3"}, ids(c.List()))
}

func TestCenter_SubscribeAndUnsubscribe(t *testing.T) {
	c, _ := newCenter(t)

	var last []Notification
	unsub := c.Subscribe(func(l []Notification) { last = l })
	c.Show(Spec{Title: "a"})
	require.Len(t, last, 1)

	unsub()
	c.Show(Spec{Title: "b"})
	assert.Len(t, last, 1)
}

func TestCenter_Dispose(t *testing.T) {
	c, clk := newCenter(t)
	c.Show(Spec{Title: "a"})
	c.Dispose()

	assert.Zero(t, clk.Pending())
	assert.Empty(t, c.Show(Spec{Title: "b"}))
	assert.Empty(t, c.List())
}

func TestTemplates(t *testing.T) {
	called := false
	s := NetworkError(func() { called = true })
	require.Len(t, s.Actions, 1)
	assert.Equal(t, "Retry", s.Actions[0].Label)
	s.Actions[0].Handler()
	assert.True(t, called)

	assert.True(t, TokenExpired(nil).Persistent)
	assert.True(t, ReauthRequired(nil).Persistent)
	assert.Equal(t, "Your session expires in 2m0s.", TokenRefreshWarning(2*time.Minute).Message)
	assert.Equal(t, "Attempt 2 of 3 failed.", RefreshAttemptFailed(2, 3).Message)
}

// firedScheduler keeps callbacks for the test to run; cancel is a no-op,
// like stopping a timer that has already fired.
type firedScheduler struct {
	now time.Time
	fns []func()
}

func (s *firedScheduler) Now() time.Time { return s.now }

func (s *firedScheduler) Schedule(fn func(), _ time.Duration) clock.CancelFunc {
	s.fns = append(s.fns, fn)
	return func() {}
}

func TestCenter_FiredTimerIgnoredWhilePaused(t *testing.T) {
	sched := &firedScheduler{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	c := NewCenter(sched, Options{NewID: seqIDs()})

	c.Show(Spec{Title: "T", Duration: 5 * time.Second})
	require.Len(t, sched.fns, 1)

	c.Pause()
	sched.fns[0]()
	assert.Equal(t, []string{"n1"}, ids(c.List()), "expiry must wait for resume")

	sched.now = sched.now.Add(2 * time.Second)
	c.Resume()
	require.Len(t, sched.fns, 2)

	sched.fns[0]()
	assert.Len(t, c.List(), 1, "callback from an earlier arm is stale")

	sched.fns[1]()
	assert.Empty(t, c.List())
}
