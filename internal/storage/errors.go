package storage

import "errors"

var (
	// ErrNoSession is returned by habit operations when no identity is signed in
	ErrNoSession = errors.New("no active session")
	// ErrInvalidCredentials is returned when the gateway rejects an email/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when a row does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps failures to reach the gateway
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrInvalidToken is returned when a recovery token is unknown or expired
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrPasswordRejected is returned when the gateway refuses a new password, e.g. as too weak
	ErrPasswordRejected = errors.New("password rejected")
)
