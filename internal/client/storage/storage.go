// Package storage provides the session-scoped key/value store used for the
// form preservation snapshot. Entries live at most as long as the process
// (memory backend) or their TTL (Redis backend).
package storage

import (
	"context"
	"time"
)

// SessionStore is a TTL-aware key/value store. Get returns (nil, nil) for a
// missing or expired key. A zero ttl means "no expiry of its own".
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
