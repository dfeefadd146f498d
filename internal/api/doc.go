// Package api implements the HTTP REST API and WebSocket server for CityWalk Core.
//
// This package provides:
//   - The legacy mobile client endpoints (conversations, route plans, AR
//     sessions and POI lookup) under their original paths
//   - The /api/ar endpoints for buildings, navigation, recognition,
//     preferences and model versions
//   - A WebSocket hub for live navigation updates and telemetry events
//   - Device tokens with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, Prometheus, CORS,
//     body limits, rate limiting)
//
// # Response Envelope
//
// Every JSON response uses CommonResp. Successful responses carry
// resultCode "SUCCESS"; failures carry a machine-readable code and a
// message with success=false. Lookups that legitimately find nothing
// (POI in view, recognition) answer 200 with resultCode "NO_MATCH".
//
// # Graceful Degradation
//
// Routing, place search and recognition collaborators are optional. Without
// them segments carry no route data, navigation falls back to a straight
// line and recognition falls back to the geo-ray hit test over buildings.
// MQTT and InfluxDB are optional telemetry sinks.
package api
