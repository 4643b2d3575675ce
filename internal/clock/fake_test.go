package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	f := NewFake(epoch)
	var order []string

	f.Schedule(func() { order = append(order, "late") }, 300*time.Millisecond)
	f.Schedule(func() { order = append(order, "early") }, 100*time.Millisecond)
	f.Schedule(func() { order = append(order, "never") }, time.Second)

	f.Advance(500 * time.Millisecond)

	assert.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, 1, f.Pending())
	assert.Equal(t, epoch.Add(500*time.Millisecond), f.Now())
}

func TestFake_CancelPreventsFire(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	cancel := f.Schedule(func() { fired = true }, time.Second)

	cancel()
	cancel()
	f.Advance(2 * time.Second)

	assert.False(t, fired)
	assert.Zero(t, f.Pending())
}

func TestFake_NestedScheduleWithinWindow(t *testing.T) {
	f := NewFake(epoch)
	var fires []time.Time

	f.Schedule(func() {
		fires = append(fires, f.Now())
		f.Schedule(func() { fires = append(fires, f.Now()) }, 100*time.Millisecond)
	}, 100*time.Millisecond)

	f.Advance(250 * time.Millisecond)

	require.Len(t, fires, 2)
	assert.Equal(t, epoch.Add(100*time.Millisecond), fires[0])
	assert.Equal(t, epoch.Add(200*time.Millisecond), fires[1])
}

func TestReal_ScheduleAndCancel(t *testing.T) {
	r := NewReal()
	done := make(chan struct{})
	r.Schedule(func() { close(done) }, time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real scheduler did not fire")
	}

	fired := make(chan struct{}, 1)
	cancel := r.Schedule(func() { fired <- struct{}{} }, 50*time.Millisecond)
	cancel()
	select {
	case <-fired:
		t.Fatal("cancelled callback fired")
	case <-time.After(100 * time.Millisecond):
	}
}
