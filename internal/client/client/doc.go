// Package client contains the client side of the partsdesk authentication
// API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the
//     login, refresh and logout endpoints.
//  2. A concrete REST implementation (see HTTPClient): form-encoded login,
//     JSON refresh and logout, with HTTP statuses mapped to sentinel errors.
//  3. Outbound interceptors that attach the bearer token, renew it once on a
//     401 / Unauthenticated and report classified failures: Transport for
//     net/http and UnaryAuthInterceptor for gRPC callers.
//
// # Error Handling
//
// Non-2xx responses are returned as *StatusError, which unwraps to one of
// ErrUnauthorized, ErrForbidden, ErrRateLimited or ErrUnavailable so callers
// can match with errors.Is. Transport failures also match ErrUnavailable.
//
// Concurrency & Contexts
//
// HTTPClient and Transport are safe for concurrent use. All operations
// accept context.Context and honour cancellation/timeouts.
package client
