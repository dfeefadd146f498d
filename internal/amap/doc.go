// Package amap is a client for the AMap (Gaode) web service API.
//
// It implements route.Planner for walking, driving, riding and transit
// directions and poi.PlaceSource for nearby place search. Place names are
// geocoded within the configured city before routing.
//
// Every request goes through a token-bucket limiter sized to the account's
// QPS quota and a circuit breaker, and is recorded in the collaborator
// metrics under provider "amap".
package amap
