// Package models defines the client-side data carried between the session
// components: the authenticated identity and the token pair behind it.
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Role is one of the closed set of dashboard operator roles.
type Role string

const (
	RoleManager    Role = "gestor"
	RoleSeller     Role = "vendedor"
	RoleAdOperator Role = "anuncios"
)

var knownRoles = []Role{RoleManager, RoleSeller, RoleAdOperator}

// Valid reports whether r belongs to the known operator roles.
func (r Role) Valid() bool {
	return slices.Contains(knownRoles, r)
}

// Session is the authenticated identity. It is serialised as the
// `user_data` entry of the credential store.
type Session struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      Role   `json:"role"`
	CompanyID int64  `json:"company_id"`
}

// DecodeSession parses a cached `user_data` blob.
func DecodeSession(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Email == "" {
		return nil, fmt.Errorf("decode session: missing email")
	}
	return &s, nil
}

// Encode serialises s for the credential store.
func (s *Session) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// TokenPair is the access/refresh credential pair. ExpiresAt is zero when
// the server did not report a lifetime.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Complete reports whether both halves of the pair are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Credentials are what the user types into the login form.
type Credentials struct {
	Email    string
	Password string
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Tokens  TokenPair
	Session Session
}
