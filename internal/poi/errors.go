package poi

import "errors"

var (
	// ErrPOINotFound is returned when a POI ID does not exist.
	ErrPOINotFound = errors.New("poi not found")
)
