package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
)

// expiry reads the access token's exp claim without verifying the
// signature; the server is the one that validates it. ok is false for
// opaque tokens.
func expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (m *Manager) expiresAt(pair models.TokenPair) (time.Time, bool) {
	if exp, ok := expiry(pair.AccessToken); ok {
		return exp, true
	}
	if !pair.ExpiresAt.IsZero() {
		return pair.ExpiresAt, true
	}
	return time.Time{}, false
}

func (m *Manager) timeLeft(pair models.TokenPair) time.Duration {
	exp, ok := m.expiresAt(pair)
	if !ok {
		return 0
	}
	return exp.Sub(m.sched.Now())
}

// refreshDelay is the fixed interval, shortened so the renewal fires at
// least margin before the token expires.
func (m *Manager) refreshDelay(pair models.TokenPair) time.Duration {
	d := m.interval
	if exp, ok := m.expiresAt(pair); ok {
		if until := exp.Sub(m.sched.Now()) - m.margin; until < d {
			d = until
		}
	}
	return max(d, 0)
}

func (m *Manager) scheduleLocked(pair models.TokenPair) time.Duration {
	m.stopTimerLocked()
	if m.disposed {
		return 0
	}
	d := m.refreshDelay(pair)
	m.cancelRefresh = m.sched.Schedule(m.backgroundRefresh, d)
	return d
}

func (m *Manager) stopTimerLocked() {
	if m.cancelRefresh != nil {
		m.cancelRefresh()
		m.cancelRefresh = nil
	}
}

func (m *Manager) backgroundRefresh() {
	ctx := context.Background()
	m.log.Debug(ctx, "background refresh fired")
	if !m.RefreshToken(ctx) {
		m.log.Warn(ctx, "background refresh failed")
		return
	}
	if m.notifier != nil {
		m.notifier.Show(notify.TokenRefreshSuccess())
	}
}
