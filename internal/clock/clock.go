// Package clock provides the single timer abstraction used by the session
// subsystem. Components never call time.AfterFunc directly; they receive a
// Scheduler so tests can drive them with a virtual clock.
package clock

import "time"

// CancelFunc stops a scheduled callback. Calling it more than once, or after
// the callback has fired, is a no-op.
type CancelFunc func()

// Scheduler runs fn once after delay d and reports the current time.
type Scheduler interface {
	Now() time.Time
	Schedule(fn func(), d time.Duration) CancelFunc
}

// Real is a Scheduler backed by the runtime timer wheel.
type Real struct{}

// NewReal returns the wall-clock scheduler.
func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) Schedule(fn func(), d time.Duration) CancelFunc {
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
