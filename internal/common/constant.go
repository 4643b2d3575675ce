// Package common contains shared constants and sentinel errors used across
// the partsdesk session components.
package common

// Storage keys of the persistent credential store. They match the keys the
// dashboard has always used so existing state survives an upgrade.
const (
	AccessTokenKey    = "access_token"
	RefreshTokenKey   = "refresh_token"
	UserDataKey       = "user_data"
	TokenExpiresAtKey = "token_expires_at"
)

// PreservedDataKey is the single session-store key holding the form snapshot.
const PreservedDataKey = "preserved_session_data"

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lowercased)
// carrying the bearer access token on outbound requests.
const AuthorizationHeaderName = "Authorization"
