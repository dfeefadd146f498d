package arsession

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded is returned when ending or scanning in a closed session.
	ErrSessionEnded = errors.New("session already ended")

	// ErrScanNotFound is returned when a scan ID does not exist.
	ErrScanNotFound = errors.New("scan not found")
)
