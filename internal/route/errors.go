package route

import "errors"

var (
	// ErrPlanNotFound is returned when a conversation has no saved route plan.
	ErrPlanNotFound = errors.New("route locations not found")

	// ErrSegmentOutOfRange is returned for a segment index outside the plan.
	ErrSegmentOutOfRange = errors.New("segment index out of range")

	// ErrTooFewStops is returned when a plan has fewer than two stops.
	ErrTooFewStops = errors.New("route needs at least two stops")

	// ErrPlannerFailed wraps errors from the directions provider.
	ErrPlannerFailed = errors.New("directions provider failed")
)
