package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrValidationConflict is the parent of every "already taken" outcome.
	ErrValidationConflict    = errors.New("auth: validation conflict")
	ErrUsernameTaken         = fmt.Errorf("%w: username already in use", ErrValidationConflict)
	ErrEmailTaken            = fmt.Errorf("%w: email already in use", ErrValidationConflict)
	ErrIdentityAlreadyLinked = fmt.Errorf("%w: external identity already linked", ErrValidationConflict)

	// ErrInvalidCredentials is returned for an unknown username and a wrong password alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrCorruptCredential means a stored hash could not be parsed. It is a data fault.
	ErrCorruptCredential = errors.New("auth: corrupt credential format")
	ErrSignupIncomplete  = errors.New("auth: signup incomplete")
	ErrUnauthenticated   = errors.New("auth: unauthenticated")

	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenInvalid   = errors.New("auth: token signature invalid")
	ErrTokenExpired   = errors.New("auth: token expired")
)

// IsTokenError reports whether err came from token verification.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired)
}
