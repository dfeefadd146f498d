package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// Nearby building query defaults and limits.
const (
	defaultNearbyRadius = 500
	maxNearbyRadius     = 5000
	defaultNearbyLimit  = 20
	maxNearbyLimit      = 100
)

type createBuildingRequest struct {
	Name            string         `json:"name" validate:"required,max=255"`
	Description     *string        `json:"description"`
	Latitude        float64        `json:"latitude" validate:"latitude"`
	Longitude       float64        `json:"longitude" validate:"longitude"`
	Address         string         `json:"address" validate:"max=512"`
	BuildingType    string         `json:"building_type" validate:"max=64"`
	FloorCount      int            `json:"floor_count" validate:"gte=0"`
	YearBuilt       *int64         `json:"year_built" validate:"omitempty,gte=0,lte=3000"`
	Architect       *string        `json:"architect" validate:"omitempty,max=255"`
	Style           *string        `json:"style" validate:"omitempty,max=128"`
	Features        map[string]any `json:"features"`
	Images          map[string]any `json:"images"`
	IsLandmark      bool           `json:"is_landmark"`
	PopularityScore float64        `json:"popularity_score" validate:"gte=0"`
}

// updateBuildingRequest changes only the fields present in the body.
type updateBuildingRequest struct {
	Name            *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string        `json:"description"`
	Latitude        *float64       `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64       `json:"longitude" validate:"omitempty,longitude"`
	Address         *string        `json:"address" validate:"omitempty,max=512"`
	BuildingType    *string        `json:"building_type" validate:"omitempty,max=64"`
	FloorCount      *int           `json:"floor_count" validate:"omitempty,gte=0"`
	YearBuilt       *int64         `json:"year_built" validate:"omitempty,gte=0,lte=3000"`
	Architect       *string        `json:"architect" validate:"omitempty,max=255"`
	Style           *string        `json:"style" validate:"omitempty,max=128"`
	Features        map[string]any `json:"features"`
	Images          map[string]any `json:"images"`
	IsLandmark      *bool          `json:"is_landmark"`
	PopularityScore *float64       `json:"popularity_score" validate:"omitempty,gte=0"`
}

func (u *updateBuildingRequest) apply(b *building.Building) {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Description != nil {
		b.Description = u.Description
	}
	if u.Latitude != nil {
		b.Latitude = *u.Latitude
	}
	if u.Longitude != nil {
		b.Longitude = *u.Longitude
	}
	if u.Address != nil {
		b.Address = *u.Address
	}
	if u.BuildingType != nil && *u.BuildingType != "" {
		b.BuildingType = *u.BuildingType
	}
	if u.FloorCount != nil {
		b.FloorCount = *u.FloorCount
	}
	if u.YearBuilt != nil {
		b.YearBuilt = u.YearBuilt
	}
	if u.Architect != nil {
		b.Architect = u.Architect
	}
	if u.Style != nil {
		b.Style = u.Style
	}
	if u.Features != nil {
		b.Features = u.Features
	}
	if u.Images != nil {
		b.Images = u.Images
	}
	if u.IsLandmark != nil {
		b.IsLandmark = *u.IsLandmark
	}
	if u.PopularityScore != nil {
		b.PopularityScore = *u.PopularityScore
	}
}

// nearbyBuildingsQuery is the parsed query of GET /api/ar/buildings/nearby.
type nearbyBuildingsQuery struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Radius    int     `json:"radius" validate:"gte=1,lte=5000"`
	Limit     int     `json:"limit" validate:"gte=1,lte=100"`
}

type createLandmarkRequest struct {
	LandmarkName string            `json:"landmark_name" validate:"required,max=255"`
	LandmarkType string            `json:"landmark_type" validate:"max=64"`
	ARAnchorID   *string           `json:"ar_anchor_id" validate:"omitempty,max=128"`
	Position     *building.Vector3 `json:"position"`
	Rotation     building.Vector3  `json:"rotation"`
	Scale        building.Vector3  `json:"scale"`
	IsActive     *bool             `json:"is_active"`
}

type createFeatureRequest struct {
	FeatureType     string         `json:"feature_type" validate:"required,max=64"`
	FeatureData     map[string]any `json:"feature_data"`
	ModelVersion    *string        `json:"model_version" validate:"omitempty,max=64"`
	ConfidenceScore *float64       `json:"confidence_score" validate:"omitempty,gte=0,lte=1"`
}

// handleCreateBuilding handles POST /api/ar/buildings.
func (s *Server) handleCreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req createBuildingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b := &building.Building{
		Name:            req.Name,
		Description:     req.Description,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Address:         req.Address,
		BuildingType:    req.BuildingType,
		FloorCount:      req.FloorCount,
		YearBuilt:       req.YearBuilt,
		Architect:       req.Architect,
		Style:           req.Style,
		Features:        req.Features,
		Images:          req.Images,
		IsLandmark:      req.IsLandmark,
		PopularityScore: req.PopularityScore,
	}
	if err := s.buildings.Create(r.Context(), b); err != nil {
		s.writeServiceError(w, r, err, "create building")
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityBuilding, strconv.FormatInt(b.ID, 10), userIDFor(r, ""),
		map[string]any{"name": b.Name})
	writeData(w, b)
}

// handleNearbyBuildings handles GET /api/ar/buildings/nearby. Results are
// within radius meters, nearest first.
func (s *Server) handleNearbyBuildings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("latitude") == "" || q.Get("longitude") == "" {
		writeBadRequest(w, "latitude and longitude are required")
		return
	}

	var (
		nq nearbyBuildingsQuery
		ok bool
	)
	if nq.Latitude, ok = queryFloat(w, r, "latitude", 0); !ok {
		return
	}
	if nq.Longitude, ok = queryFloat(w, r, "longitude", 0); !ok {
		return
	}
	if nq.Radius, ok = queryInt(w, r, "radius", defaultNearbyRadius); !ok {
		return
	}
	if nq.Limit, ok = queryInt(w, r, "limit", defaultNearbyLimit); !ok {
		return
	}
	if verr := validation.ValidateStruct(&nq); verr != nil {
		writeValidation(w, verr)
		return
	}

	center := geo.Point{Lat: nq.Latitude, Lon: nq.Longitude}
	list, err := s.buildings.Nearby(r.Context(), center, float64(nq.Radius), nq.Limit)
	if err != nil {
		s.writeServiceError(w, r, err, "nearby buildings")
		return
	}
	writeData(w, map[string]any{
		"buildings": list,
		"total":     len(list),
		"center":    center,
		"radius":    nq.Radius,
	})
}

// handleGetBuilding handles GET /api/ar/building/{id}/info. Landmarks and
// features are included.
func (s *Server) handleGetBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := s.buildings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get building")
		return
	}
	landmarks, err := s.buildings.ListLandmarks(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get building")
		return
	}
	features, err := s.buildings.ListFeatures(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get building")
		return
	}

	writeData(w, struct {
		*building.Building
		Landmarks []building.Landmark `json:"landmarks"`
		Features  []building.Feature  `json:"features"`
	}{b, landmarks, features})
}

// handleUpdateBuilding handles PUT /api/ar/building/{id}.
func (s *Server) handleUpdateBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateBuildingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b, err := s.buildings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "update building")
		return
	}
	req.apply(b)
	if err := s.buildings.Update(r.Context(), b); err != nil {
		s.writeServiceError(w, r, err, "update building")
		return
	}

	s.auditLog(audit.ActionUpdate, audit.EntityBuilding, strconv.FormatInt(id, 10), userIDFor(r, ""), nil)
	writeData(w, b)
}

// handleDeleteBuilding handles DELETE /api/ar/building/{id}.
func (s *Server) handleDeleteBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.buildings.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "delete building")
		return
	}
	s.auditLog(audit.ActionDelete, audit.EntityBuilding, strconv.FormatInt(id, 10), userIDFor(r, ""), nil)
	writeData(w, map[string]any{"id": id})
}

// handleListLandmarks handles GET /api/ar/building/{id}/landmarks.
func (s *Server) handleListLandmarks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingBuilding(w, r)
	if !ok {
		return
	}
	list, err := s.buildings.ListLandmarks(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "list landmarks")
		return
	}
	writeData(w, list)
}

// handleCreateLandmark handles POST /api/ar/building/{id}/landmarks.
func (s *Server) handleCreateLandmark(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingBuilding(w, r)
	if !ok {
		return
	}
	var req createLandmarkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	l := &building.Landmark{
		BuildingID:   id,
		LandmarkName: req.LandmarkName,
		LandmarkType: req.LandmarkType,
		ARAnchorID:   req.ARAnchorID,
		Position:     req.Position,
		Rotation:     req.Rotation,
		Scale:        req.Scale,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if err := s.buildings.CreateLandmark(r.Context(), l); err != nil {
		s.writeServiceError(w, r, err, "create landmark")
		return
	}
	writeData(w, l)
}

// handleListFeatures handles GET /api/ar/building/{id}/features.
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingBuilding(w, r)
	if !ok {
		return
	}
	list, err := s.buildings.ListFeatures(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "list features")
		return
	}
	writeData(w, list)
}

// handleCreateFeature handles POST /api/ar/building/{id}/features.
func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := s.existingBuilding(w, r)
	if !ok {
		return
	}
	var req createFeatureRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f := &building.Feature{
		BuildingID:      id,
		FeatureType:     req.FeatureType,
		FeatureData:     req.FeatureData,
		ModelVersion:    req.ModelVersion,
		ConfidenceScore: req.ConfidenceScore,
	}
	if err := s.buildings.CreateFeature(r.Context(), f); err != nil {
		s.writeServiceError(w, r, err, "create feature")
		return
	}
	writeData(w, f)
}

// existingBuilding parses {id} and checks the building exists.
func (s *Server) existingBuilding(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return 0, false
	}
	if _, err := s.buildings.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "get building")
		return 0, false
	}
	return id, true
}
