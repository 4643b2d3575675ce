package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("too many requests")
	ErrBadResponse  = errors.New("malformed server response")
)

// StatusError is a non-2xx answer from the API. Detail carries the
// server-provided `detail` field when present.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("http %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("http %d: %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Code == http.StatusForbidden:
		return ErrForbidden
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= 500:
		return ErrUnavailable
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
