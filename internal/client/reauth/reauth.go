// Package reauth is the interactive re-authentication prompt shown when
// silent recovery gives up. It enforces a local lockout after repeated
// failed submissions, independent of the server.
package reauth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/client"
	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

const (
	DefaultMaxAttempts = 3
	DefaultCooldown    = 5 * time.Minute
)

var (
	ErrLocked             = errors.New("too many attempts, wait before trying again")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrRateLimited        = errors.New("too many attempts, try again in a few minutes")
	ErrConnection         = errors.New("connection error, check your network")
	ErrRefreshFailed      = errors.New("session renewal failed, please log in again")
)

// Authenticator is what the prompt drives; *session.Manager satisfies it.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.Session, error)
	RefreshToken(ctx context.Context) bool
}

type Options struct {
	MaxAttempts int
	Cooldown    time.Duration
	Logger      logging.Logger
	// OnSuccess runs after a successful login or renewal, before the prompt
	// closes.
	OnSuccess func(ctx context.Context)
	// OnClose runs whenever the prompt closes.
	OnClose func()
}

type Prompt struct {
	auth        Authenticator
	sched       clock.Scheduler
	log         logging.Logger
	maxAttempts int
	cooldown    time.Duration
	onSuccess   func(ctx context.Context)
	onClose     func()

	mu           sync.Mutex
	open         bool
	url          string
	data         map[string]any
	attempts     int
	lockedUntil  time.Time
	cancelUnlock clock.CancelFunc
	lastErr      error
}

func New(auth Authenticator, sched clock.Scheduler, opts Options) *Prompt {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Prompt{
		auth:        auth,
		sched:       sched,
		log:         logging.OrNop(opts.Logger).With("component", "reauth"),
		maxAttempts: opts.MaxAttempts,
		cooldown:    opts.Cooldown,
		onSuccess:   opts.OnSuccess,
		onClose:     opts.OnClose,
	}
}

// Open shows the prompt with the location and form data it will return to.
func (p *Prompt) Open(url string, data map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	p.url = url
	p.data = maps.Clone(data)
	p.lastErr = nil
}

func (p *Prompt) Close() {
	p.mu.Lock()
	was := p.open
	p.open = false
	p.mu.Unlock()
	if was && p.onClose != nil {
		p.onClose()
	}
}

func (p *Prompt) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Target returns the preserved location and field count shown to the user.
func (p *Prompt) Target() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, len(p.data)
}

func (p *Prompt) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Locked reports whether submission is disabled and until when.
func (p *Prompt) Locked() (bool, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lockedLocked(), p.lockedUntil
}

// LastError is the message currently displayed, if any.
func (p *Prompt) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Prompt) lockedLocked() bool {
	return !p.lockedUntil.IsZero() && p.sched.Now().Before(p.lockedUntil)
}

// Submit attempts an interactive login. While locked it fails with
// ErrLocked without contacting the server.
func (p *Prompt) Submit(ctx context.Context, creds models.Credentials) error {
	p.mu.Lock()
	if p.lockedLocked() {
		p.lastErr = ErrLocked
		p.mu.Unlock()
		return ErrLocked
	}
	p.lastErr = nil
	p.mu.Unlock()

	_, err := p.auth.Login(ctx, creds)
	if err == nil {
		p.mu.Lock()
		p.attempts = 0
		p.mu.Unlock()
		p.log.Info(ctx, "reauthentication succeeded", "email", creds.Email)
		p.succeed(ctx)
		return nil
	}
	if errors.Is(err, common.ErrEmptyCredentials) {
		p.setErr(err)
		return err
	}

	p.log.Warn(ctx, "reauthentication failed", "error", err)
	out := classify(err)

	p.mu.Lock()
	p.attempts++
	if errors.Is(out, ErrRateLimited) || p.attempts >= p.maxAttempts {
		p.lockLocked()
	}
	p.lastErr = out
	p.mu.Unlock()
	return out
}

// RetryRefresh tries a silent renewal from inside the prompt.
func (p *Prompt) RetryRefresh(ctx context.Context) error {
	if p.auth.RefreshToken(ctx) {
		p.log.Info(ctx, "manual renewal succeeded")
		p.succeed(ctx)
		return nil
	}
	p.setErr(ErrRefreshFailed)
	return ErrRefreshFailed
}

// Dispose cancels the lockout timer.
func (p *Prompt) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelUnlock != nil {
		p.cancelUnlock()
		p.cancelUnlock = nil
	}
}

func (p *Prompt) succeed(ctx context.Context) {
	if p.onSuccess != nil {
		p.onSuccess(ctx)
	}
	p.Close()
}

func (p *Prompt) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Prompt) lockLocked() {
	p.lockedUntil = p.sched.Now().Add(p.cooldown)
	if p.cancelUnlock != nil {
		p.cancelUnlock()
	}
	p.cancelUnlock = p.sched.Schedule(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.attempts = 0
		p.lockedUntil = time.Time{}
		p.cancelUnlock = nil
	}, p.cooldown)
}

func classify(err error) error {
	switch client.StatusCode(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case errors.Is(err, client.ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
