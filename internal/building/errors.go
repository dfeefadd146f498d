package building

import "errors"

var (
	// ErrBuildingNotFound is returned when a building ID does not exist.
	ErrBuildingNotFound = errors.New("building not found")
)
