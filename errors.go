package fitsync

import "errors"

var (
	// ErrNotRegistered means there is no credential, or no token pair yet,
	// for the client id. Terminal for the current sync; the client has to
	// complete (re-)authorization.
	ErrNotRegistered = errors.New("client not registered")

	// ErrUnauthorized means the provider rejected the access token. Terminal
	// until the scheduled token refresh succeeds independently.
	ErrUnauthorized = errors.New("access token rejected by provider")

	// ErrTokenRefreshRejected means the refresh token itself was rejected.
	// The client requires full re-authorization.
	ErrTokenRefreshRejected = errors.New("refresh token rejected by provider")

	// ErrRateLimited and ErrUnavailable are transient provider failures,
	// safe to retry on the next scheduled tick.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	ErrUnavailable = errors.New("provider unavailable")
)
