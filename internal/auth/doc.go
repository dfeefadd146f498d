// Package auth issues and validates the credentials CityWalk devices use.
//
// Devices are not user accounts. A device presents a client API key once
// and receives a short-lived HS256 access token whose subject is the
// opaque user_id supplied by the app. WebSocket connections authenticate
// with a single-use ticket instead of putting the token in the URL.
//
// Configured API keys may be stored as Argon2id PHC hashes so that the
// config file never holds the raw key.
package auth
