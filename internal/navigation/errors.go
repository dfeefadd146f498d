package navigation

import "errors"

var (
	// ErrSessionNotFound is returned when a navigation session ID does not exist.
	ErrSessionNotFound = errors.New("navigation session not found")

	// ErrSessionEnded is returned when updating or ending a closed session.
	ErrSessionEnded = errors.New("navigation session already ended")

	// ErrRouteNotFound is returned when a navigation route ID does not exist.
	ErrRouteNotFound = errors.New("navigation route not found")
)
