package building

import (
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
)

// Defaults applied on create.
const (
	DefaultType         = "unknown"
	DefaultLandmarkType = "building"
)

// Building is a campus building.
type Building struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Description     *string        `json:"description"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
	Address         string         `json:"address"`
	BuildingType    string         `json:"building_type"`
	FloorCount      int            `json:"floor_count"`
	YearBuilt       *int64         `json:"year_built"`
	Architect       *string        `json:"architect"`
	Style           *string        `json:"style"`
	Features        map[string]any `json:"features"`
	Images          map[string]any `json:"images"`
	IsLandmark      bool           `json:"is_landmark"`
	PopularityScore float64        `json:"popularity_score"`
	GmtCreate       time.Time      `json:"gmt_create"`
	GmtModified     time.Time      `json:"gmt_modified"`
}

// Point returns the building position.
func (b Building) Point() geo.Point { return geo.Point{Lat: b.Latitude, Lon: b.Longitude} }

// Nearby is a building with its distance from the query point.
type Nearby struct {
	Building
	Distance float64 `json:"distance"` // meters
}

// Vector3 is an x/y/z triple in AR anchor space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmark is an AR anchor attached to a building.
type Landmark struct {
	ID           int64     `json:"id"`
	BuildingID   int64     `json:"building_id"`
	LandmarkName string    `json:"landmark_name"`
	LandmarkType string    `json:"landmark_type"`
	ARAnchorID   *string   `json:"ar_anchor_id"`
	Position     *Vector3  `json:"position"`
	Rotation     Vector3   `json:"rotation"`
	Scale        Vector3   `json:"scale"`
	IsActive     bool      `json:"is_active"`
	GmtCreate    time.Time `json:"gmt_create"`
	GmtModified  time.Time `json:"gmt_modified"`
}

// Feature is a recognition feature extracted for a building.
type Feature struct {
	ID              int64          `json:"id"`
	BuildingID      int64          `json:"building_id"`
	FeatureType     string         `json:"feature_type"`
	FeatureData     map[string]any `json:"feature_data"`
	ModelVersion    *string        `json:"model_version"`
	ConfidenceScore *float64       `json:"confidence_score"`
	GmtCreate       time.Time      `json:"gmt_create"`
}
