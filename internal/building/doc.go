// Package building holds campus building metadata, the AR landmarks
// anchored to buildings and the recognition features extracted for them.
//
// Nearby queries pre-filter with a bounding box in SQL and then compute
// exact haversine distances in Go.
package building
