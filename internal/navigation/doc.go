// Package navigation runs AR walking navigation sessions.
//
// Start plans a route through the configured directions provider, or a
// straight line when none is available, and opens a session. Update stores
// the device pose and answers with the next instruction, the distance to
// the next waypoint and an arrow direction relative to the device heading.
// End closes the session and writes a history entry marked completed when
// the user finished within the arrival radius of the destination.
package navigation
