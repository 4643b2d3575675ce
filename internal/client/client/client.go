package client

import (
	"context"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
)

// Client is the authentication backend as seen by the session manager.
type Client interface {
	Close() error
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}
