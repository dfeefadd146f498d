package auth

import "errors"

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrNoAPIKeys     = errors.New("no api keys configured")
	ErrMissingUser   = errors.New("user_id is required")
)
