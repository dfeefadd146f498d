package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/navigation"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
)

type startNavigationRequest struct {
	StartLatitude  *float64       `json:"start_latitude" validate:"required,latitude"`
	StartLongitude *float64       `json:"start_longitude" validate:"required,longitude"`
	EndLatitude    *float64       `json:"end_latitude" validate:"required,latitude"`
	EndLongitude   *float64       `json:"end_longitude" validate:"required,longitude"`
	UserID         string         `json:"user_id" validate:"max=64"`
	RouteType      string         `json:"route_type" validate:"omitempty,oneof=walking driving riding transit"`
	DeviceInfo     map[string]any `json:"device_info"`
}

type updateNavigationRequest struct {
	SessionID        int64    `json:"session_id" validate:"required,gt=0"`
	CurrentLatitude  *float64 `json:"current_latitude" validate:"required,latitude"`
	CurrentLongitude *float64 `json:"current_longitude" validate:"required,longitude"`
	Heading          float64  `json:"heading" validate:"heading"`
	Pitch            float64  `json:"pitch" validate:"gte=-180,lte=180"`
	Roll             float64  `json:"roll" validate:"gte=-180,lte=180"`
}

type endNavigationRequest struct {
	SessionID    int64   `json:"session_id" validate:"required,gt=0"`
	UserRating   *int64  `json:"user_rating" validate:"omitempty,gte=1,lte=5"`
	UserFeedback *string `json:"user_feedback" validate:"omitempty,max=2000"`
}

// handleStartNavigation handles POST /api/ar/navigation/start.
func (s *Server) handleStartNavigation(w http.ResponseWriter, r *http.Request) {
	var req startNavigationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := userIDFor(r, req.UserID)
	res, err := s.navigation.Start(r.Context(), navigation.StartRequest{
		UserID:     userID,
		Start:      geo.Point{Lat: *req.StartLatitude, Lon: *req.StartLongitude},
		End:        geo.Point{Lat: *req.EndLatitude, Lon: *req.EndLongitude},
		RouteType:  req.RouteType,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "start navigation")
		return
	}

	s.auditLog(audit.ActionStart, audit.EntityNavigation, strconv.FormatInt(res.SessionID, 10), userID,
		map[string]any{"route_type": res.RouteType, "provider": res.Provider})
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventNavigationStart,
		SessionID: res.SessionID,
		UserID:    userID,
		Fields: map[string]any{
			"total_distance": res.TotalDistance,
			"estimated_time": res.EstimatedTime,
			"route_type":     res.RouteType,
		},
	})
	writeData(w, res)
}

// handleNavigationRoute handles GET /api/ar/navigation/route/{session_id}.
func (s *Server) handleNavigationRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "session_id")
	if !ok {
		return
	}
	if err := s.navigation.CheckOwner(r.Context(), id, tokenSubject(r)); err != nil {
		s.writeServiceError(w, r, err, "navigation route")
		return
	}
	status, err := s.navigation.Route(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "navigation route")
		return
	}
	writeData(w, status)
}

// handleUpdateNavigation handles POST /api/ar/navigation/update. The
// instruction is also pushed to WebSocket subscribers of the session.
func (s *Server) handleUpdateNavigation(w http.ResponseWriter, r *http.Request) {
	var req updateNavigationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ins, err := s.navigation.Update(r.Context(), navigation.UpdateRequest{
		SessionID: req.SessionID,
		UserID:    tokenSubject(r),
		Position:  geo.Point{Lat: *req.CurrentLatitude, Lon: *req.CurrentLongitude},
		Pose:      navigation.Pose{Heading: req.Heading, Pitch: req.Pitch, Roll: req.Roll},
	})
	if err != nil {
		s.writeServiceError(w, r, err, "update navigation")
		return
	}

	s.hub.Broadcast(ChannelNavigationPrefix+strconv.FormatInt(ins.SessionID, 10), ins)
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventNavigationUpdate,
		SessionID: ins.SessionID,
		Fields: map[string]any{
			"lat":                     ins.CurrentPosition.Lat,
			"lon":                     ins.CurrentPosition.Lon,
			"heading":                 ins.Heading,
			"distance_to_destination": ins.DistanceToDestination,
			"arrived":                 ins.Arrived,
		},
	})
	writeData(w, ins)
}

// handleEndNavigation handles POST /api/ar/navigation/end.
func (s *Server) handleEndNavigation(w http.ResponseWriter, r *http.Request) {
	var req endNavigationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h, err := s.navigation.End(r.Context(), navigation.EndRequest{
		SessionID: req.SessionID,
		UserID:    tokenSubject(r),
		Rating:    req.UserRating,
		Feedback:  req.UserFeedback,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "end navigation")
		return
	}

	fields := map[string]any{"completed": h.CompletionStatus == navigation.StatusCompleted}
	if h.ActualDurationSeconds != nil {
		fields["duration_s"] = *h.ActualDurationSeconds
	}
	if h.UserRating != nil {
		fields["rating"] = *h.UserRating
	}
	s.auditLog(audit.ActionEnd, audit.EntityNavigation, strconv.FormatInt(h.SessionID, 10), h.UserID,
		map[string]any{"status": h.CompletionStatus})
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventNavigationEnd,
		SessionID: h.SessionID,
		UserID:    h.UserID,
		Fields:    fields,
	})
	writeData(w, h)
}

// authorizeChannel lets a socket follow a navigation session only when its
// ticket user started it. Without auth there is no verified user to check.
func (s *Server) authorizeChannel(ctx context.Context, userID, channel string) error {
	if !s.secCfg.Auth.Enabled {
		return nil
	}
	id, ok := navigationSessionID(channel)
	if !ok {
		return nil
	}
	return s.navigation.CheckOwner(ctx, id, userID)
}

// handleNavigationHistory handles GET /api/ar/navigation/history?user_id=.
func (s *Server) handleNavigationHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	userID := userIDFor(r, r.URL.Query().Get("user_id"))
	list, err := s.navigation.History(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err, "navigation history")
		return
	}
	writeData(w, list)
}
