// Package session owns the authenticated identity of the dashboard user:
// login, logout, token refresh and the background renewal timer.
//
// Refresh calls are coalesced; concurrent callers share one round trip and
// its outcome. Every state change (login, applied refresh, logout) bumps a
// generation counter, and a refresh only acts on the state it started from:
// a failure that resolves after a newer login or refresh does not log the
// user out, and a success that resolves after a logout is discarded.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/partsdesk/internal/client/client"
	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

const (
	DefaultRefreshInterval = 105 * time.Minute
	DefaultRefreshMargin   = 5 * time.Minute
)

// CredentialStore is the persistent side of the session;
// *credentials.Store satisfies it.
type CredentialStore interface {
	SaveSession(ctx context.Context, pair models.TokenPair, session *models.Session) error
	SaveTokens(ctx context.Context, pair models.TokenPair) error
	Tokens(ctx context.Context) (models.TokenPair, error)
	CachedSession(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
}

type Notifier interface {
	Show(spec notify.Spec) string
}

type Options struct {
	RefreshInterval time.Duration
	RefreshMargin   time.Duration
	Logger          logging.Logger
	// Notifier, when set, receives renewal feedback.
	Notifier Notifier
}

type Manager struct {
	store    CredentialStore
	api      client.Client
	sched    clock.Scheduler
	log      logging.Logger
	notifier Notifier
	interval time.Duration
	margin   time.Duration

	initOnce sync.Once
	flight   singleflight.Group

	mu            sync.Mutex
	session       *models.Session
	loading       bool
	gen           uint64
	cancelRefresh clock.CancelFunc
	disposed      bool
	subs          map[int]func(*models.Session)
	nextSub       int
}

func New(store CredentialStore, api client.Client, sched clock.Scheduler, opts Options) *Manager {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.RefreshMargin < 0 {
		opts.RefreshMargin = 0
	}
	return &Manager{
		store:    store,
		api:      api,
		sched:    sched,
		log:      logging.OrNop(opts.Logger).With("component", "session"),
		notifier: opts.Notifier,
		interval: opts.RefreshInterval,
		margin:   opts.RefreshMargin,
		loading:  true,
		subs:     make(map[int]func(*models.Session)),
	}
}

// Init rehydrates the session from the credential store. Only the first call
// does any work; no network call is made.
func (m *Manager) Init(ctx context.Context) {
	m.initOnce.Do(func() { m.rehydrate(ctx) })
}

func (m *Manager) rehydrate(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		m.publish()
	}()

	pair, err := m.store.Tokens(ctx)
	if err != nil {
		m.log.Error(ctx, "read stored tokens", "error", err)
		return
	}
	cached, err := m.store.CachedSession(ctx)
	if errors.Is(err, common.ErrCorruptState) {
		m.log.Warn(ctx, "cached profile is corrupt, clearing credentials", "error", err)
		if err := m.store.Clear(ctx); err != nil {
			m.log.Error(ctx, "clear credentials", "error", err)
		}
		return
	}
	if err != nil {
		m.log.Error(ctx, "read cached profile", "error", err)
		return
	}
	if !pair.Complete() || cached == nil {
		m.log.Debug(ctx, "no stored session")
		return
	}

	m.mu.Lock()
	m.session = cached
	m.gen++
	delay := m.scheduleLocked(pair)
	m.mu.Unlock()

	m.log.Info(ctx, "session restored from cache", "email", cached.Email, "role", cached.Role, "next_refresh", delay)
	if left := m.timeLeft(pair); m.notifier != nil && left > 0 && left <= m.margin {
		m.notifier.Show(notify.TokenRefreshWarning(left))
	}
}

// Login authenticates, persists the pair and profile together and arms the
// background refresh. Backend errors are returned unchanged.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, common.ErrEmptyCredentials
	}

	res, err := m.api.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		m.log.Warn(ctx, "login failed", "email", creds.Email, "error", err)
		return nil, err
	}

	sess := res.Session
	m.mu.Lock()
	if err := m.store.SaveSession(ctx, res.Tokens, &sess); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.session = &sess
	m.gen++
	m.loading = false
	m.scheduleLocked(res.Tokens)
	m.mu.Unlock()

	m.log.Info(ctx, "logged in", "email", sess.Email, "role", sess.Role)
	m.publish()
	out := sess
	return &out, nil
}

// RefreshToken renews the token pair. On failure the user is logged out,
// unless the session changed while the refresh was in flight.
func (m *Manager) RefreshToken(ctx context.Context) bool {
	v, _, _ := m.flight.Do("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx)), nil
	})
	return v.(bool)
}

func (m *Manager) refresh(ctx context.Context) bool {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	pair, err := m.store.Tokens(ctx)
	if err != nil || pair.RefreshToken == "" {
		m.log.Warn(ctx, "no refresh token available")
		return m.failRefresh(ctx, gen)
	}

	renewed, err := m.api.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		m.log.Error(ctx, "token refresh failed", "error", err)
		return m.failRefresh(ctx, gen)
	}

	m.mu.Lock()
	if m.gen != gen {
		ok := m.session != nil
		m.mu.Unlock()
		m.log.Info(ctx, "discarding refresh result, session changed meanwhile")
		return ok
	}
	if err := m.store.SaveTokens(ctx, *renewed); err != nil {
		m.mu.Unlock()
		m.log.Error(ctx, "persist refreshed tokens", "error", err)
		return m.failRefresh(ctx, gen)
	}
	m.gen++
	delay := m.scheduleLocked(*renewed)
	m.mu.Unlock()

	m.log.Info(ctx, "token refreshed", "next_refresh", delay)
	return true
}

// failRefresh logs out unless the session moved past gen, in which case it
// reports whether a newer session is in place.
func (m *Manager) failRefresh(ctx context.Context, gen uint64) bool {
	m.mu.Lock()
	if m.gen != gen {
		ok := m.session != nil
		m.mu.Unlock()
		m.log.Info(ctx, "ignoring stale refresh failure")
		return ok
	}
	err := m.clearLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		m.log.Error(ctx, "clear credentials", "error", err)
	}
	m.publish()
	return false
}

// Logout clears local state and cancels the refresh timer. The server-side
// revoke is best effort.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	pair, _ := m.store.Tokens(ctx)
	err := m.clearLocked(ctx)
	m.mu.Unlock()
	m.publish()

	if pair.RefreshToken != "" && m.api != nil {
		if rerr := m.api.Logout(ctx, pair.RefreshToken); rerr != nil {
			m.log.Warn(ctx, "remote logout failed", "error", rerr)
		}
	}
	m.log.Info(ctx, "logged out")
	return err
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.stopTimerLocked()
	m.session = nil
	m.gen++
	return m.store.Clear(ctx)
}

// AccessToken returns the stored access token, "" when logged out.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	pair, err := m.store.Tokens(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// Session returns a copy of the current identity, or nil.
func (m *Manager) Session() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

func (m *Manager) IsAuthenticated() bool {
	return m.Session() != nil
}

func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// HasRole reports whether the user holds any of roles.
func (m *Manager) HasRole(roles ...models.Role) bool {
	s := m.Session()
	return s != nil && slices.Contains(roles, s.Role)
}

// CompanyID returns the tenant of the current user, or 0.
func (m *Manager) CompanyID() int64 {
	if s := m.Session(); s != nil {
		return s.CompanyID
	}
	return 0
}

// Subscribe registers fn for identity changes. The returned func
// unregisters it.
func (m *Manager) Subscribe(fn func(*models.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Dispose cancels the background refresh timer.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.disposed = true
}

func (m *Manager) publish() {
	s := m.Session()
	m.mu.Lock()
	subs := make([]func(*models.Session), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}
