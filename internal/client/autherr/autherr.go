// Package autherr records authentication failures, collapses repeats of the
// same kind inside a short window and drives the user-facing side effects:
// notifications, the re-authentication prompt and restoring preserved form
// input once the session is back.
package autherr

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/form"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

type Kind string

const (
	TokenExpired  Kind = "token_expired"
	RefreshFailed Kind = "refresh_failed"
	NetworkError  Kind = "network_error"
	Unauthorized  Kind = "unauthorized"
)

// Critical reports whether k forces interactive re-authentication.
func (k Kind) Critical() bool {
	return k == TokenExpired || k == RefreshFailed
}

const (
	DefaultDedupWindow  = 5 * time.Second
	DefaultHistorySize  = 10
	DefaultRestoreDelay = 500 * time.Millisecond
)

// AuthError is an immutable record of one reported failure.
type AuthError struct {
	Kind       Kind
	Message    string
	Timestamp  time.Time
	RetryCount int
}

type Stats struct {
	TotalErrors int
	LastErrorAt time.Time
	ByKind      map[Kind]int
}

// Notifier shows a notification; *notify.Center satisfies it.
type Notifier interface {
	Show(spec notify.Spec) string
}

// Preserver holds the form snapshot; *preserve.Store satisfies it.
type Preserver interface {
	Preserve(ctx context.Context, data map[string]any, url string) error
	Restore(ctx context.Context) (map[string]any, string, error)
}

// ReauthOpener is told when the re-authentication prompt should appear,
// with the captured form data (nil when nothing was captured).
type ReauthOpener func(url string, data map[string]any)

type Options struct {
	DedupWindow  time.Duration
	HistorySize  int
	RestoreDelay time.Duration
	Logger       logging.Logger
	OnReauth     ReauthOpener
}

type Reporter struct {
	sched     clock.Scheduler
	notifier  Notifier
	preserver Preserver
	fields    form.Adapter
	nav       form.Navigator
	log       logging.Logger

	dedup        time.Duration
	historySize  int
	restoreDelay time.Duration
	onReauth     ReauthOpener

	mu          sync.Mutex
	current     *AuthError
	history     []AuthError
	reauthOpen  bool
	recovering  bool
	onRetry     func()
	cancelApply clock.CancelFunc
	disposed    bool
}

func New(sched clock.Scheduler, n Notifier, p Preserver, fields form.Adapter, nav form.Navigator, opts Options) *Reporter {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.RestoreDelay <= 0 {
		opts.RestoreDelay = DefaultRestoreDelay
	}
	return &Reporter{
		sched:        sched,
		notifier:     n,
		preserver:    p,
		fields:       fields,
		nav:          nav,
		log:          logging.OrNop(opts.Logger).With("component", "autherr"),
		dedup:        opts.DedupWindow,
		historySize:  opts.HistorySize,
		restoreDelay: opts.RestoreDelay,
		onReauth:     opts.OnReauth,
	}
}

// SetRetryHandler sets what the "Retry" action of a network error does.
func (r *Reporter) SetRetryHandler(fn func()) {
	r.mu.Lock()
	r.onRetry = fn
	r.mu.Unlock()
}

// SetReauthOpener replaces the prompt hook.
func (r *Reporter) SetReauthOpener(fn ReauthOpener) {
	r.mu.Lock()
	r.onReauth = fn
	r.mu.Unlock()
}

// Report records a failure unless one of the same kind was recorded within
// the dedup window. It returns whether the report was recorded.
func (r *Reporter) Report(ctx context.Context, kind Kind, message string) bool {
	r.mu.Lock()
	now := r.sched.Now()
	for i := len(r.history) - 1; i >= 0; i-- {
		if e := r.history[i]; e.Kind == kind && now.Sub(e.Timestamp) < r.dedup {
			r.mu.Unlock()
			r.log.Debug(ctx, "similar recent error ignored", "kind", kind)
			return false
		}
	}

	e := AuthError{Kind: kind, Message: message, Timestamp: now}
	r.current = &e
	r.history = append(r.history, e)
	if over := len(r.history) - r.historySize; over > 0 {
		r.history = append([]AuthError(nil), r.history[over:]...)
	}
	onRetry := r.onRetry
	r.mu.Unlock()

	r.log.Error(ctx, "authentication error reported", "kind", kind, "message", message)

	switch kind {
	case TokenExpired:
		r.notifier.Show(notify.TokenExpired(func() { r.OpenReauth(context.Background(), false) }))
	case NetworkError:
		r.notifier.Show(notify.NetworkError(onRetry))
	case RefreshFailed:
		r.notifier.Show(notify.Spec{
			Severity: notify.Error,
			Title:    "Session renewal failed",
			Message:  message,
		})
	case Unauthorized:
		spec := notify.AccessDenied()
		if message != "" {
			spec.Message = message
		}
		r.notifier.Show(spec)
	}

	if kind.Critical() {
		r.OpenReauth(ctx, true)
	}
	return true
}

// Clear drops the current error; history is kept.
func (r *Reporter) Clear() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
}

// Current returns a copy of the current error, or nil.
func (r *Reporter) Current() *AuthError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	e := *r.current
	return &e
}

// Stats summarises the bounded history.
func (r *Reporter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{TotalErrors: len(r.history), ByKind: make(map[Kind]int)}
	for _, e := range r.history {
		s.ByKind[e.Kind]++
	}
	if n := len(r.history); n > 0 {
		s.LastErrorAt = r.history[n-1].Timestamp
	}
	return s
}

// OpenReauth shows the re-authentication prompt. With preserveForm the
// visible fields are captured into the preservation store first.
func (r *Reporter) OpenReauth(ctx context.Context, preserveForm bool) {
	var (
		data map[string]any
		url  string
	)
	if r.nav != nil {
		url = r.nav.Location()
	}
	if preserveForm && r.fields != nil {
		data = r.fields.CaptureVisibleFields()
		if len(data) > 0 {
			if err := r.preserver.Preserve(ctx, data, url); err != nil {
				r.log.Warn(ctx, "could not preserve form before reauth", "error", err)
			} else {
				r.log.Info(ctx, "form data preserved before reauthentication", "fields", len(data))
			}
		} else {
			data = nil
		}
	}

	r.mu.Lock()
	r.reauthOpen = true
	opener := r.onReauth
	r.mu.Unlock()

	r.log.Info(ctx, "reauthentication prompt opened")
	if opener != nil {
		opener(url, maps.Clone(data))
	}
}

func (r *Reporter) CloseReauth() {
	r.mu.Lock()
	r.reauthOpen = false
	r.mu.Unlock()
}

func (r *Reporter) IsReauthOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reauthOpen
}

func (r *Reporter) IsRecovering() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recovering
}

// HandleRecovery consumes the preserved snapshot, applies its fields to the
// form after the restore delay and clears the current error. It does not
// refresh tokens itself.
func (r *Reporter) HandleRecovery(ctx context.Context) error {
	r.mu.Lock()
	r.recovering = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.recovering = false
		r.mu.Unlock()
	}()

	data, url, err := r.preserver.Restore(ctx)
	if err != nil {
		r.log.Error(ctx, "auth recovery failed", "error", err)
		return err
	}

	if data != nil && r.fields != nil {
		r.log.Info(ctx, "preserved data restored", "fields", len(data), "url", url)
		r.mu.Lock()
		if r.cancelApply != nil {
			r.cancelApply()
		}
		if !r.disposed {
			r.cancelApply = r.sched.Schedule(func() {
				r.mu.Lock()
				r.cancelApply = nil
				r.mu.Unlock()
				r.fields.ApplyFields(data)
			}, r.restoreDelay)
		}
		r.mu.Unlock()
	}

	r.Clear()
	r.log.Info(ctx, "auth recovery complete")
	return nil
}

// Dispose cancels a pending field apply.
func (r *Reporter) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelApply != nil {
		r.cancelApply()
		r.cancelApply = nil
	}
	r.disposed = true
}
