package reauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/partsdesk/internal/client/client"
	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/common"
)

type fakeAuth struct {
	errs      []error
	logins    int
	refreshOK bool
}

func (f *fakeAuth) Login(_ context.Context, creds models.Credentials) (*models.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, common.ErrEmptyCredentials
	}
	f.logins++
	if len(f.errs) == 0 {
		return &models.Session{Email: creds.Email}, nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return nil, err
}

func (f *fakeAuth) RefreshToken(context.Context) bool { return f.refreshOK }

var creds = models.Credentials{Email: "ana@pecas.com.br", Password: "wrong"}

func badPassword() error { return &client.StatusError{Code: http.StatusUnauthorized} }

func newPrompt(auth *fakeAuth, opts Options) (*Prompt, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	return New(auth, clk, opts), clk
}

func TestSubmit_LockoutAfterThreeFailures(t *testing.T) {
	auth := &fakeAuth{errs: []error{badPassword(), badPassword(), badPassword(), badPassword()}}
	p, clk := newPrompt(auth, Options{})
	ctx := context.Background()

	for range 3 {
		assert.ErrorIs(t, p.Submit(ctx, creds), ErrInvalidCredentials)
	}
	locked, until := p.Locked()
	assert.True(t, locked)
	assert.Equal(t, clk.Now().Add(DefaultCooldown), until)

	assert.ErrorIs(t, p.Submit(ctx, creds), ErrLocked)
	assert.Equal(t, 3, auth.logins, "locked submission must not reach the server")

	clk.Advance(DefaultCooldown - time.Second)
	assert.ErrorIs(t, p.Submit(ctx, creds), ErrLocked)

	clk.Advance(time.Second)
	locked, _ = p.Locked()
	assert.False(t, locked)
	assert.Zero(t, p.Attempts())
	assert.ErrorIs(t, p.Submit(ctx, creds), ErrInvalidCredentials)
	assert.Equal(t, 4, auth.logins)
}

func TestSubmit_RateLimitLocksImmediately(t *testing.T) {
	auth := &fakeAuth{errs: []error{&client.StatusError{Code: http.StatusTooManyRequests}}}
	p, _ := newPrompt(auth, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, p.Submit(ctx, creds), ErrRateLimited)
	assert.Equal(t, 1, p.Attempts())
	locked, _ := p.Locked()
	assert.True(t, locked)
	assert.ErrorIs(t, p.Submit(ctx, creds), ErrLocked)
}

func TestSubmit_OtherErrorsAreConnectionErrors(t *testing.T) {
	down := errors.Join(client.ErrUnavailable, errors.New("dial tcp: connection refused"))
	auth := &fakeAuth{errs: []error{down, &client.StatusError{Code: http.StatusInternalServerError}}}
	p, _ := newPrompt(auth, Options{})

	err := p.Submit(context.Background(), creds)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.ErrorIs(t, p.Submit(context.Background(), creds), ErrConnection)
	assert.ErrorIs(t, p.LastError(), ErrConnection)
}

func TestSubmit_EmptyCredentialsDoNotCount(t *testing.T) {
	p, _ := newPrompt(&fakeAuth{}, Options{})
	err := p.Submit(context.Background(), models.Credentials{Email: "ana@pecas.com.br"})
	assert.ErrorIs(t, err, common.ErrEmptyCredentials)
	assert.Zero(t, p.Attempts())
}

func TestSubmit_SuccessRunsCallbackAndCloses(t *testing.T) {
	var order []string
	p, _ := newPrompt(&fakeAuth{}, Options{
		OnSuccess: func(context.Context) { order = append(order, "success") },
		OnClose:   func() { order = append(order, "close") },
	})
	p.Open("/orders/7", map[string]any{"qty": "2"})
	url, fields := p.Target()
	assert.Equal(t, "/orders/7", url)
	assert.Equal(t, 1, fields)

	require.NoError(t, p.Submit(context.Background(), models.Credentials{Email: "a", Password: "b"}))
	assert.False(t, p.IsOpen())
	assert.Equal(t, []string{"success", "close"}, order)
}

func TestRetryRefresh(t *testing.T) {
	auth := &fakeAuth{}
	succeeded := 0
	p, _ := newPrompt(auth, Options{OnSuccess: func(context.Context) { succeeded++ }})
	p.Open("", nil)

	assert.ErrorIs(t, p.RetryRefresh(context.Background()), ErrRefreshFailed)
	assert.True(t, p.IsOpen())

	auth.refreshOK = true
	require.NoError(t, p.RetryRefresh(context.Background()))
	assert.False(t, p.IsOpen())
	assert.Equal(t, 1, succeeded)
}

func TestCloseIsIdempotent(t *testing.T) {
	closes := 0
	p, _ := newPrompt(&fakeAuth{}, Options{OnClose: func() { closes++ }})
	p.Open("/", nil)
	p.Close()
	p.Close()
	assert.Equal(t, 1, closes)
}

func TestDispose_CancelsUnlockTimer(t *testing.T) {
	auth := &fakeAuth{errs: []error{&client.StatusError{Code: http.StatusTooManyRequests}}}
	p, clk := newPrompt(auth, Options{})
	_ = p.Submit(context.Background(), creds)
	require.Equal(t, 1, clk.Pending())

	p.Dispose()
	assert.Zero(t, clk.Pending())
}
