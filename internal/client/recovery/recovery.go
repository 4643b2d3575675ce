// Package recovery runs the silent re-authentication loop: a bounded number
// of token refresh attempts separated by a fixed delay, falling back to the
// interactive prompt once the budget is spent.
//
// Scheduled retries are delivered as events tagged with the epoch they were
// created in. Cancel and Reset bump the epoch, so a retry armed before a
// cancellation is discarded when it fires.
package recovery

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

type State int

const (
	Idle State = iota
	Recovering
	Succeeded
	RetryScheduled
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recovering:
		return "recovering"
	case Succeeded:
		return "succeeded"
	case RetryScheduled:
		return "retry-scheduled"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// ErrRefreshFailed is recorded as the last error of a failed attempt.
var ErrRefreshFailed = errors.New("token refresh failed")

// Refresher performs one silent refresh; *session.Manager satisfies it.
type Refresher interface {
	RefreshToken(ctx context.Context) bool
}

// Host is the error reporter side of recovery; *autherr.Reporter satisfies it.
type Host interface {
	HandleRecovery(ctx context.Context) error
	OpenReauth(ctx context.Context, preserveForm bool)
	Clear()
}

type Notifier interface {
	Show(spec notify.Spec) string
}

// retryEvent is posted by the retry timer.
type retryEvent struct {
	epoch uint64
	opts  Options
}

type Orchestrator struct {
	sched     clock.Scheduler
	refresher Refresher
	host      Host
	notifier  Notifier
	log       logging.Logger

	mu          sync.Mutex
	opts        Options
	active      Options
	state       State
	attempts    int
	lastErr     error
	epoch       uint64
	cancelRetry clock.CancelFunc
	disposed    bool
}

func New(sched clock.Scheduler, r Refresher, h Host, n Notifier, log logging.Logger, opts ...Option) *Orchestrator {
	base := DefaultOptions().with(opts)
	return &Orchestrator{
		sched:     sched,
		refresher: r,
		host:      h,
		notifier:  n,
		log:       logging.OrNop(log).With("component", "recovery"),
		opts:      base,
		active:    base,
	}
}

// Start runs one attempt of a recovery cycle. It returns false when a cycle
// is already running, when the attempt failed, or after disposal.
func (o *Orchestrator) Start(ctx context.Context, opts ...Option) bool {
	o.mu.Lock()
	if o.disposed || o.state == Recovering {
		o.mu.Unlock()
		o.log.Debug(ctx, "recovery already in progress")
		return false
	}
	cur := o.opts.with(opts)
	return o.runLocked(ctx, cur)
}

// runLocked is entered with o.mu held and releases it.
func (o *Orchestrator) runLocked(ctx context.Context, cur Options) bool {
	o.stopRetryLocked()
	o.epoch++
	epoch := o.epoch
	o.active = cur
	o.state = Recovering
	o.lastErr = nil
	attempt := o.attempts + 1
	o.mu.Unlock()

	o.log.Info(ctx, "starting auth recovery", "attempt", attempt, "max_retries", cur.MaxRetries)
	if cur.OnStart != nil {
		cur.OnStart()
	}

	ok := o.refresher.RefreshToken(ctx)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		o.log.Info(ctx, "recovery cancelled while refreshing")
		return false
	}

	if ok {
		o.state = Succeeded
		o.mu.Unlock()
		return o.succeed(ctx, cur, epoch)
	}

	o.attempts++
	o.lastErr = ErrRefreshFailed
	attempts := o.attempts

	switch {
	case attempts >= cur.MaxRetries:
		o.state = Exhausted
		o.mu.Unlock()
		o.log.Warn(ctx, "recovery attempts exhausted", "attempts", attempts)
		if cur.OnFailed != nil {
			cur.OnFailed(ErrRefreshFailed)
		}
		if cur.OnMaxRetriesReached != nil {
			cur.OnMaxRetriesReached()
		}
		o.host.OpenReauth(ctx, cur.PreserveFormData)
		return false

	case cur.AutoRetry:
		o.state = RetryScheduled
		ev := retryEvent{epoch: epoch, opts: cur}
		o.cancelRetry = o.sched.Schedule(func() { o.dispatch(ev) }, cur.RetryDelay)
		o.mu.Unlock()
		o.log.Info(ctx, "recovery retry scheduled", "delay", cur.RetryDelay, "attempt", attempts)

	default:
		o.state = Idle
		o.mu.Unlock()
	}

	if o.notifier != nil {
		o.notifier.Show(notify.RefreshAttemptFailed(attempts, cur.MaxRetries))
	}
	if cur.OnFailed != nil {
		cur.OnFailed(ErrRefreshFailed)
	}
	return false
}

func (o *Orchestrator) succeed(ctx context.Context, cur Options, epoch uint64) bool {
	if err := o.host.HandleRecovery(ctx); err != nil {
		o.mu.Lock()
		if o.epoch == epoch {
			o.attempts++
			o.lastErr = err
			o.state = Idle
		}
		o.mu.Unlock()
		o.log.Error(ctx, "recovery side effects failed", "error", err)
		if cur.OnFailed != nil {
			cur.OnFailed(err)
		}
		return false
	}

	o.mu.Lock()
	o.attempts = 0
	o.mu.Unlock()

	if o.notifier != nil {
		o.notifier.Show(notify.SessionRecovered())
	}
	if cur.OnSuccess != nil {
		cur.OnSuccess()
	}
	o.host.Clear()
	o.log.Info(ctx, "auth recovery succeeded")
	return true
}

// dispatch handles a retry event; stale epochs are dropped.
func (o *Orchestrator) dispatch(ev retryEvent) {
	o.mu.Lock()
	if o.disposed || ev.epoch != o.epoch || o.state != RetryScheduled {
		o.mu.Unlock()
		return
	}
	o.cancelRetry = nil
	o.runLocked(context.Background(), ev.opts)
}

// Retry starts another cycle if attempts remain.
func (o *Orchestrator) Retry(ctx context.Context) bool {
	if !o.CanRetry() {
		o.log.Info(ctx, "maximum recovery attempts reached")
		return false
	}
	return o.Start(ctx)
}

// Cancel returns to idle and discards any scheduled retry. An attempt that
// is mid-refresh finishes without further state changes.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRetryLocked()
	o.epoch++
	o.state = Idle
}

// Reset cancels and zeroes the attempt counter and last error.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRetryLocked()
	o.epoch++
	o.state = Idle
	o.attempts = 0
	o.lastErr = nil
}

func (o *Orchestrator) CanRetry() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts < o.active.MaxRetries
}

func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) IsRecovering() bool {
	return o.State() == Recovering
}

func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// SetOptions merges overrides into the base options.
func (o *Orchestrator) SetOptions(opts ...Option) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts = o.opts.with(opts)
	if o.state != Recovering && o.state != RetryScheduled {
		o.active = o.opts
	}
}

func (o *Orchestrator) RecoverFromTokenExpiry(ctx context.Context) bool {
	return o.Start(ctx, tokenExpiryPreset()...)
}

func (o *Orchestrator) RecoverFromNetworkError(ctx context.Context) bool {
	return o.Start(ctx, networkErrorPreset()...)
}

// RecoverWithReauth skips silent refresh and opens the prompt directly.
func (o *Orchestrator) RecoverWithReauth(ctx context.Context) bool {
	o.mu.Lock()
	preserve := o.opts.PreserveFormData
	o.mu.Unlock()
	o.host.OpenReauth(ctx, preserve)
	return false
}

// Dispose cancels any scheduled retry; Start is rejected afterwards.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRetryLocked()
	o.epoch++
	o.state = Idle
	o.disposed = true
}

func (o *Orchestrator) stopRetryLocked() {
	if o.cancelRetry != nil {
		o.cancelRetry()
		o.cancelRetry = nil
	}
}
