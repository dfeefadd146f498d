// Package poi caches points of interest and answers "what is the user
// looking at" queries with a geo-ray hit test.
//
// Candidates come from the local cache first. When nothing in the cache is
// inside the device's view cone and a PlaceSource is configured, places
// around the user are fetched, upserted into the cache and tested again.
package poi
