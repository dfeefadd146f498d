package route

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Route types accepted by the client.
const (
	TypeWalking = "walking"
	TypeDriving = "driving"
	TypeRiding  = "riding"
	TypeTransit = "transit"
)

// ValidType reports whether t is a supported route type.
func ValidType(t string) bool {
	switch t {
	case TypeWalking, TypeDriving, TypeRiding, TypeTransit:
		return true
	}
	return false
}

// Plan is a saved list of stops for one conversation (table route_locations).
type Plan struct {
	ID             int64          `json:"id"`
	ConversationID int64          `json:"conversationId"`
	Locations      string         `json:"locations"`
	RouteType      string         `json:"routeType"`
	Ext            map[string]any `json:"ext"`
	GmtCreate      time.Time      `json:"gmtCreate"`
	GmtModified    time.Time      `json:"gmtModified"`
}

// Segment is one leg of a plan with directions attached.
type Segment struct {
	SegmentIndex  int         `json:"segmentIndex"`
	FromLocation  string      `json:"fromLocation"`
	ToLocation    string      `json:"toLocation"`
	RouteData     *Directions `json:"routeData"`
	IsLastSegment bool        `json:"isLastSegment"`
}

// Directions is a provider-neutral route between two places.
type Directions struct {
	Provider string  `json:"provider"`
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
	Steps    []Step  `json:"steps"`

	// Raw is the provider's unmodified response body.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Step is one instruction along a route.
type Step struct {
	Instruction string  `json:"instruction"`
	Polyline    string  `json:"polyline"` // "lon,lat;lon,lat"
	Distance    float64 `json:"distance"`
}

// Planner computes directions between two places. Origin and destination
// are either place names or "lon,lat" coordinates.
type Planner interface {
	Directions(ctx context.Context, origin, destination, routeType string) (*Directions, error)
}
