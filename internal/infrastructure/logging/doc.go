// Package logging provides structured logging for CityWalk Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for local development, with service and version
// attached to each entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log JWTs, API keys, the AMap key or raw image payloads.
package logging
