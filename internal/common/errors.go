// Package common defines shared sentinel errors. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Session lifecycle errors.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("refresh token not found")
	ErrEmptyCredentials = errors.New("email and password are required")

	// Token lifecycle errors.
	ErrTokenExpired   = errors.New("token expired")
	ErrIncompletePair = errors.New("token pair is incomplete")

	// Stored state that cannot be decoded.
	ErrCorruptState = errors.New("corrupt stored state")
)
