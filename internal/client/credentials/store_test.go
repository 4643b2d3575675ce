package credentials

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), db
}

func rawKeys(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT key, value FROM metadata`)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k string
		var v []byte
		require.NoError(t, rows.Scan(&k, &v))
		out[k] = string(v)
	}
	require.NoError(t, rows.Err())
	return out
}

var ana = &models.Session{ID: 1, Email: "ana@parts.example", FullName: "Ana", Role: models.RoleManager, CompanyID: 9}

func TestSaveSession_ThenRead(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	exp := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSession(ctx, models.TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp}, ana))

	pair, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: exp}, pair)

	got, err := s.CachedSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	rt, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", rt)
}

func TestSaveTokens_KeepsProfileAndDropsStaleExpiry(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, models.TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now()}, ana))
	require.NoError(t, s.SaveTokens(ctx, models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}))

	keys := rawKeys(t, db)
	assert.Equal(t, "a2", keys[common.AccessTokenKey])
	assert.Equal(t, "r2", keys[common.RefreshTokenKey])
	assert.NotContains(t, keys, common.TokenExpiresAtKey)
	assert.Contains(t, keys, common.UserDataKey)
}

func TestSave_RejectsIncompletePair(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.SaveTokens(ctx, models.TokenPair{AccessToken: "only-access"}), common.ErrIncompletePair)
	require.ErrorIs(t, s.SaveSession(ctx, models.TokenPair{RefreshToken: "only-refresh"}, ana), common.ErrIncompletePair)
	assert.Empty(t, rawKeys(t, db))
}

func TestSaveTokens_FailureMidWrite_LeavesNoOrphanAccessToken(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	_, err := db.Exec(`
CREATE TRIGGER fail_refresh_write BEFORE INSERT ON metadata
WHEN NEW.key = 'refresh_token'
BEGIN SELECT RAISE(ABORT, 'disk full'); END;`)
	require.NoError(t, err)

	err = s.SaveTokens(ctx, models.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	require.Error(t, err)

	keys := rawKeys(t, db)
	assert.NotContains(t, keys, common.AccessTokenKey, "access token must roll back with the failed refresh write")

	pair, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.False(t, pair.Complete())
}

func TestTokens_IgnoresForeignHalfPair(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO metadata(key, value) VALUES ('access_token', 'orphan')`)
	require.NoError(t, err)

	pair, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{}, pair)

	_, err = s.RefreshToken(ctx)
	require.ErrorIs(t, err, common.ErrNoRefreshToken)
}

func TestCachedSession_AbsentAndCorrupt(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	got, err := s.CachedSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = db.Exec(`INSERT INTO metadata(key, value) VALUES ('user_data', '{broken')`)
	require.NoError(t, err)

	_, err = s.CachedSession(ctx)
	require.ErrorIs(t, err, common.ErrCorruptState)
}

func TestClear_RemovesEverything(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, models.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}, ana))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, rawKeys(t, db))
}

func TestOpenDatabase_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := OpenDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='goose_db_version'`).Scan(&n))
	assert.Equal(t, 1, n)
}
