// Package arsession records AR camera sessions and the POI scans made
// during them.
//
// A session starts when the client opens the AR or map view and ends when
// it closes it. Each geo-ray hit test made with a session ID is stored as a
// scan so that later user corrections can be compared with what the server
// predicted.
package arsession
