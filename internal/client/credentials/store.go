// Package credentials is the persistent credential store: the access and
// refresh tokens, their expiry and the cached user profile, kept in the
// local SQLite metadata table.
//
// The token pair is always written and cleared as a unit inside one
// transaction, so the store never holds an access token without the refresh
// token that can renew it.
package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/dmitrijs2005/partsdesk/internal/dbx"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

var allKeys = []string{
	common.AccessTokenKey,
	common.RefreshTokenKey,
	common.TokenExpiresAtKey,
	common.UserDataKey,
}

type Store struct {
	db  *sql.DB
	log logging.Logger
}

func New(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, log: logging.OrNop(log).With("component", "credentials")}
}

func (s *Store) repo(tx dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(tx)
}

// SaveSession persists the token pair together with the user profile.
func (s *Store) SaveSession(ctx context.Context, pair models.TokenPair, session *models.Session) error {
	if !pair.Complete() {
		return common.ErrIncompletePair
	}
	profile, err := session.Encode()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := writePair(ctx, s.repo(tx), pair); err != nil {
			return err
		}
		return s.repo(tx).Set(ctx, common.UserDataKey, profile)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveTokens replaces the token pair, leaving the cached profile alone.
func (s *Store) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	if !pair.Complete() {
		return common.ErrIncompletePair
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return writePair(ctx, s.repo(tx), pair)
	})
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func writePair(ctx context.Context, repo metadata.Repository, pair models.TokenPair) error {
	if err := repo.Set(ctx, common.AccessTokenKey, []byte(pair.AccessToken)); err != nil {
		return err
	}
	if err := repo.Set(ctx, common.RefreshTokenKey, []byte(pair.RefreshToken)); err != nil {
		return err
	}
	if pair.ExpiresAt.IsZero() {
		return repo.Delete(ctx, common.TokenExpiresAtKey)
	}
	return repo.Set(ctx, common.TokenExpiresAtKey, []byte(pair.ExpiresAt.UTC().Format(time.RFC3339)))
}

// Tokens returns the stored pair. An incomplete pair on disk (left by a
// foreign writer) is reported as empty so it never passes as authenticated.
func (s *Store) Tokens(ctx context.Context) (models.TokenPair, error) {
	all, err := s.repo(s.db).List(ctx)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("read tokens: %w", err)
	}

	pair := models.TokenPair{
		AccessToken:  string(all[common.AccessTokenKey]),
		RefreshToken: string(all[common.RefreshTokenKey]),
	}
	if raw := all[common.TokenExpiresAtKey]; len(raw) > 0 {
		if t, err := time.Parse(time.RFC3339, string(raw)); err == nil {
			pair.ExpiresAt = t
		}
	}

	if !pair.Complete() {
		if pair.AccessToken != "" || pair.RefreshToken != "" {
			s.log.Warn(ctx, "ignoring incomplete token pair in store")
		}
		return models.TokenPair{}, nil
	}
	return pair, nil
}

// RefreshToken returns the stored refresh token, or ErrNoRefreshToken.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	pair, err := s.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if pair.RefreshToken == "" {
		return "", common.ErrNoRefreshToken
	}
	return pair.RefreshToken, nil
}

// AccessToken returns the stored access token or "" when logged out.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	pair, err := s.Tokens(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// CachedSession returns the cached profile, (nil, nil) when none is stored,
// or common.ErrCorruptState when the blob cannot be decoded.
func (s *Store) CachedSession(ctx context.Context) (*models.Session, error) {
	raw, err := s.repo(s.db).Get(ctx, common.UserDataKey)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	session, err := models.DecodeSession(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptState, err)
	}
	return session, nil
}

// Clear removes the token pair and the cached profile in one statement.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo(s.db).Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
