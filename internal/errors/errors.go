package errors

import (
	"errors"
	"fmt"
)

// Common error types for the course portal session service
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Token errors
	ErrNoTokens            = errors.New("no session tokens")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNoIDToken           = errors.New("no id token in response")

	// Hosted login flow errors
	ErrInvalidState  = errors.New("invalid state parameter")
	ErrNonceMismatch = errors.New("nonce mismatch")

	// Snapshot errors
	ErrSnapshotCorrupt = errors.New("session snapshot corrupt")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
