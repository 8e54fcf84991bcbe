package auth

import "errors"

var (
	// ErrTokenInvalid indicates a JWT failed signature, expiry, or claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrAPIKeyMismatch indicates a presented API key does not match the stored hash.
	ErrAPIKeyMismatch = errors.New("auth: api key mismatch")
)
