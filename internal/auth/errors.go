package auth

import "errors"

var (
	// ErrInvalidToken indicates a token failed verification. Callers receive
	// the same sentinel for malformed input, bad signatures, wrong token kind
	// and expiry, so responses cannot be used as a validity oracle.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrBadCredentials covers both unknown usernames and wrong passwords;
	// the two are never distinguished outward.
	ErrBadCredentials = errors.New("auth: bad credentials")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
