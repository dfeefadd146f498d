package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/conversation"
	"github.com/nerrad567/citywalk-core/internal/route"
)

type saveRoutePlanRequest struct {
	ConversationID int64          `json:"conversationId" validate:"required,gt=0"`
	Locations      string         `json:"locations" validate:"required,stops"`
	RouteType      string         `json:"routeType" validate:"omitempty,oneof=walking driving riding transit"`
	Ext            map[string]any `json:"ext"`
}

type routeSegmentRequest struct {
	ConversationID int64 `json:"conversationId" validate:"required,gt=0"`
	SegmentIndex   *int  `json:"segmentIndex" validate:"required"`
}

// handleSaveRoutePlan handles POST /route-locations/save.json.
func (s *Server) handleSaveRoutePlan(w http.ResponseWriter, r *http.Request) {
	var req saveRoutePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exists, err := s.conversations.Exists(r.Context(), req.ConversationID)
	if err != nil {
		s.writeServiceError(w, r, err, "save route locations")
		return
	}
	if !exists {
		writeNotFound(w, conversation.ErrConversationNotFound.Error())
		return
	}

	p := &route.Plan{
		ConversationID: req.ConversationID,
		Locations:      req.Locations,
		RouteType:      req.RouteType,
		Ext:            req.Ext,
	}
	if err := s.routePlans.Save(r.Context(), p); err != nil {
		s.writeServiceError(w, r, err, "save route locations")
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityRoutePlan, strconv.FormatInt(p.ID, 10), userIDFor(r, ""),
		map[string]any{"conversation_id": p.ConversationID, "route_type": p.RouteType})
	writeData(w, p)
}

// handleGetRoutePlan handles GET /route-locations/get.json?conversationId=.
func (s *Server) handleGetRoutePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "conversationId")
	if !ok {
		return
	}
	p, err := s.routePlans.Latest(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get route locations")
		return
	}
	writeData(w, p)
}

// handleGetRouteSegment handles POST /route-segments/get.json. Directions
// come from the routing provider when one is configured.
func (s *Server) handleGetRouteSegment(w http.ResponseWriter, r *http.Request) {
	var req routeSegmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seg, err := s.segments.Segment(r.Context(), req.ConversationID, *req.SegmentIndex)
	if err != nil {
		s.writeServiceError(w, r, err, "get route segment")
		return
	}
	writeData(w, seg)
}
