package poi

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/geo"
)

// Cache sources.
const (
	SourceManual = "manual"
	SourceAMap   = "amap"
)

// Query defaults and limits.
const (
	DefaultRadius = 150
	DefaultFOV    = 60.0
	MaxRadius     = 2000
)

// POI is one cached point of interest.
type POI struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Address     string          `json:"address"`
	Source      string          `json:"source"`
	ExternalID  *string         `json:"externalId,omitempty"`
	RawJSON     json.RawMessage `json:"rawJson,omitempty"`
	GmtCreate   time.Time       `json:"gmtCreate"`
	GmtModified time.Time       `json:"gmtModified"`
}

// Point returns the POI position.
func (p POI) Point() geo.Point { return geo.Point{Lat: p.Lat, Lon: p.Lon} }

// Query is a device pose asking which POI is in view.
type Query struct {
	Lat     float64
	Lon     float64
	Heading float64
	Radius  int
	FOV     float64
}

// Cone converts q into a view cone, applying defaults.
func (q Query) Cone() geo.Cone {
	radius := q.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}
	fov := q.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	return geo.Cone{
		Origin:  geo.Point{Lat: q.Lat, Lon: q.Lon},
		Heading: geo.NormalizeHeading(q.Heading),
		FOV:     fov,
		Radius:  float64(radius),
	}
}

// Match is the POI selected by a hit test.
type Match struct {
	POI     POI
	Hit     geo.Hit
	Fetched bool // true when the POI came from the place source on this request
}

// VO is the wire shape returned to the client. Coordinates are strings.
type VO struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Address    string  `json:"address"`
	DistanceM  float64 `json:"distanceM"`
	AngleDeg   float64 `json:"angleDeg"`
	Confidence float64 `json:"confidence"`
}

// VO converts m to its wire shape.
func (m *Match) VO() VO {
	return VO{
		ID:         m.POI.ID,
		Name:       m.POI.Name,
		Lat:        strconv.FormatFloat(m.POI.Lat, 'f', -1, 64),
		Lon:        strconv.FormatFloat(m.POI.Lon, 'f', -1, 64),
		Address:    m.POI.Address,
		DistanceM:  round2(m.Hit.DistanceM),
		AngleDeg:   round2(m.Hit.AngleDeg),
		Confidence: round2(m.Hit.Confidence),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Place is a POI reported by an external place search.
type Place struct {
	ExternalID string
	Name       string
	Address    string
	Location   geo.Point
	Raw        json.RawMessage
}

// PlaceSource searches an external provider for places around a point.
type PlaceSource interface {
	Source() string
	PlacesAround(ctx context.Context, center geo.Point, radiusM int) ([]Place, error)
}
