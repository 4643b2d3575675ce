// Package preserve keeps one snapshot of in-progress form input, plus the
// location it came from, so the user can resume after a forced
// re-authentication. A snapshot is restorable exactly once and is treated as
// absent once it is older than the TTL.
package preserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/form"
	"github.com/dmitrijs2005/partsdesk/internal/client/storage"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultDebounce = time.Second

	// UnloadMessage is shown by the host when leaving with a held snapshot.
	UnloadMessage = "You have unsaved data. Are you sure you want to leave?"
)

// Snapshot is the stored record. FormData goes through JSON: integral
// numbers come back as int64, other numbers as float64.
type Snapshot struct {
	FormData  map[string]any `json:"formData"`
	URL       string         `json:"url"`
	Timestamp time.Time      `json:"timestamp"`
}

// Info describes the held snapshot without consuming it.
type Info struct {
	URL         string
	FieldsCount int
	Age         time.Duration
	Expired     bool
}

type Options struct {
	TTL      time.Duration
	Debounce time.Duration
	Logger   logging.Logger
}

type Store struct {
	store    storage.SessionStore
	nav      form.Navigator
	sched    clock.Scheduler
	ttl      time.Duration
	debounce time.Duration
	log      logging.Logger

	mu         sync.Mutex
	autoCancel clock.CancelFunc
	autoGen    uint64
}

func New(store storage.SessionStore, nav form.Navigator, sched clock.Scheduler, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Store{
		store:    store,
		nav:      nav,
		sched:    sched,
		ttl:      opts.TTL,
		debounce: opts.Debounce,
		log:      logging.OrNop(opts.Logger).With("component", "preserve"),
	}
}

// Preserve overwrites the stored snapshot. An empty url means the current
// location.
func (s *Store) Preserve(ctx context.Context, data map[string]any, url string) error {
	if url == "" {
		url = s.nav.Location()
	}
	snap := Snapshot{FormData: maps.Clone(data), URL: url, Timestamp: s.sched.Now()}

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.Set(ctx, common.PreservedDataKey, b, s.ttl); err != nil {
		return fmt.Errorf("preserve snapshot: %w", err)
	}

	s.log.Info(ctx, "form data preserved", "url", url, "fields", len(data))
	return nil
}

// read returns the raw snapshot regardless of age, or nil.
func (s *Store) read(ctx context.Context) (*Snapshot, error) {
	b, err := s.store.Get(ctx, common.PreservedDataKey)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	var snap Snapshot
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		s.log.Warn(ctx, "dropping undecodable snapshot", "error", err)
		_ = s.store.Delete(ctx, common.PreservedDataKey)
		return nil, nil
	}
	for k, v := range snap.FormData {
		snap.FormData[k] = fromNumbers(v)
	}
	return &snap, nil
}

// fromNumbers replaces json.Number values, at any depth, with int64 when
// integral and float64 otherwise.
func fromNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = fromNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = fromNumbers(e)
		}
		return t
	default:
		return v
	}
}

func (s *Store) expired(snap *Snapshot) bool {
	return s.sched.Now().Sub(snap.Timestamp) > s.ttl
}

// Load returns the live snapshot, purging a stale one. It never consumes.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := s.read(ctx)
	if err != nil || snap == nil {
		return nil, err
	}
	if s.expired(snap) {
		s.log.Info(ctx, "preserved data expired, removing", "age", s.sched.Now().Sub(snap.Timestamp))
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return snap, nil
}

// Restore consumes the snapshot: it is removed from the store, and the host
// navigates to its URL when that differs from the current location. It
// returns (nil, "", nil) when nothing live is held.
func (s *Store) Restore(ctx context.Context) (map[string]any, string, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, "", err
	}
	if snap == nil {
		s.log.Debug(ctx, "nothing to restore")
		return nil, "", nil
	}

	if err := s.Clear(ctx); err != nil {
		return nil, "", err
	}

	if snap.URL != "" && snap.URL != s.nav.Location() {
		s.log.Info(ctx, "navigating to preserved url", "url", snap.URL)
		s.nav.Navigate(snap.URL)
	}

	s.log.Info(ctx, "preserved data restored", "fields", len(snap.FormData), "url", snap.URL)
	return snap.FormData, snap.URL, nil
}

// HasPreserved reports whether a live snapshot is held.
func (s *Store) HasPreserved(ctx context.Context) bool {
	snap, err := s.Load(ctx)
	return err == nil && snap != nil
}

// Info describes the held snapshot, expired or not, without purging it.
// It returns nil when nothing is stored.
func (s *Store) Info(ctx context.Context) (*Info, error) {
	snap, err := s.read(ctx)
	if err != nil || snap == nil {
		return nil, err
	}
	age := s.sched.Now().Sub(snap.Timestamp)
	return &Info{
		URL:         snap.URL,
		FieldsCount: len(snap.FormData),
		Age:         age,
		Expired:     age > s.ttl,
	}, nil
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, common.PreservedDataKey); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// BeforeUnload tells the host whether leaving should be confirmed.
func (s *Store) BeforeUnload(ctx context.Context) (string, bool) {
	if s.HasPreserved(ctx) {
		return UnloadMessage, true
	}
	return "", false
}
