package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/citywalk-core/internal/arsession"
	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/conversation"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
	"github.com/nerrad567/citywalk-core/internal/poi"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

type startARSessionRequest struct {
	UserID         string `json:"userId" validate:"max=64"`
	Mode           string `json:"mode" validate:"omitempty,oneof=gaode ar"`
	ConversationID int64  `json:"conversationId" validate:"gte=0"`
	Device         string `json:"device" validate:"max=128"`
	OS             string `json:"os" validate:"max=64"`
	UsedGeoAnchor  bool   `json:"usedGeoAnchor"`
}

type endARSessionRequest struct {
	SessionID int64 `json:"sessionId" validate:"required,gt=0"`
}

type scanFeedbackRequest struct {
	ScanID int64 `json:"scanId" validate:"required,gt=0"`
	POIID  int64 `json:"poiId" validate:"required,gt=0"`
}

// nearbyQuery is the parsed query string of GET /poi/nearby.
type nearbyQuery struct {
	Lat       float64 `json:"lat" validate:"latitude"`
	Lon       float64 `json:"lon" validate:"longitude"`
	Heading   float64 `json:"heading" validate:"heading"`
	Radius    int     `json:"radius" validate:"gte=1,lte=2000"`
	FOV       float64 `json:"fov" validate:"gt=0,lte=180"`
	Pitch     float64 `json:"pitch"`
	Roll      float64 `json:"roll"`
	SessionID int64   `json:"sessionId" validate:"gte=0"`
}

type createPOIRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Lat        float64 `json:"lat" validate:"latitude"`
	Lon        float64 `json:"lon" validate:"longitude"`
	Address    string  `json:"address" validate:"max=512"`
	Source     string  `json:"source" validate:"max=32"`
	ExternalID *string `json:"externalId" validate:"omitempty,max=128"`
}

// scanVO is the hit-test answer when the request named a session.
type scanVO struct {
	poi.VO
	ScanID int64 `json:"scanId"`
}

// handleStartARSession handles POST /ar/session/start.
func (s *Server) handleStartARSession(w http.ResponseWriter, r *http.Request) {
	var req startARSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess := &arsession.Session{
		UserID:        userIDFor(r, req.UserID),
		Mode:          req.Mode,
		UsedGeoAnchor: req.UsedGeoAnchor,
		Device:        req.Device,
		OS:            req.OS,
	}
	if req.ConversationID > 0 {
		exists, err := s.conversations.Exists(r.Context(), req.ConversationID)
		if err != nil {
			s.writeServiceError(w, r, err, "start ar session")
			return
		}
		if !exists {
			writeNotFound(w, conversation.ErrConversationNotFound.Error())
			return
		}
		sess.ConversationID = &req.ConversationID
	}

	if err := s.arSessions.Start(r.Context(), sess); err != nil {
		s.writeServiceError(w, r, err, "start ar session")
		return
	}

	s.auditLog(audit.ActionStart, audit.EntityARSession, strconv.FormatInt(sess.ID, 10), sess.UserID,
		map[string]any{"mode": sess.Mode, "device": sess.Device})
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventARSessionStart,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Fields:    map[string]any{"mode": sess.Mode, "used_geo_anchor": sess.UsedGeoAnchor},
	})
	writeData(w, sess)
}

// handleEndARSession handles POST /ar/session/end.
func (s *Server) handleEndARSession(w http.ResponseWriter, r *http.Request) {
	var req endARSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := s.arSessions.End(r.Context(), req.SessionID)
	if err != nil {
		s.writeServiceError(w, r, err, "end ar session")
		return
	}

	duration := sess.EndTime.Sub(sess.StartTime).Seconds()
	s.auditLog(audit.ActionEnd, audit.EntityARSession, strconv.FormatInt(sess.ID, 10), sess.UserID, nil)
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventARSessionEnd,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Fields:    map[string]any{"duration_s": duration},
	})
	writeData(w, sess)
}

// handleNearbyPOI handles GET /poi/nearby. It answers the POI in front of
// the device, or NO_MATCH. With sessionId the hit test is recorded as a scan.
func (s *Server) handleNearbyPOI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		writeBadRequest(w, "lat and lon are required")
		return
	}

	var (
		nq nearbyQuery
		ok bool
	)
	if nq.Lat, ok = queryFloat(w, r, "lat", 0); !ok {
		return
	}
	if nq.Lon, ok = queryFloat(w, r, "lon", 0); !ok {
		return
	}
	if nq.Heading, ok = queryFloat(w, r, "heading", 0); !ok {
		return
	}
	if nq.Radius, ok = queryInt(w, r, "radius", poi.DefaultRadius); !ok {
		return
	}
	if nq.FOV, ok = queryFloat(w, r, "fov", poi.DefaultFOV); !ok {
		return
	}
	if nq.Pitch, ok = queryFloat(w, r, "pitch", 0); !ok {
		return
	}
	if nq.Roll, ok = queryFloat(w, r, "roll", 0); !ok {
		return
	}
	if v := q.Get("sessionId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "sessionId must be an integer")
			return
		}
		nq.SessionID = id
	}
	if verr := validation.ValidateStruct(&nq); verr != nil {
		writeValidation(w, verr)
		return
	}

	match, err := s.pois.Nearby(r.Context(), poi.Query{
		Lat:     nq.Lat,
		Lon:     nq.Lon,
		Heading: nq.Heading,
		Radius:  nq.Radius,
		FOV:     nq.FOV,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "poi hit test")
		return
	}

	if nq.SessionID == 0 {
		if match == nil {
			writeNoMatch(w, nil, "no poi in view")
			return
		}
		writeData(w, match.VO())
		return
	}

	scan := &arsession.Scan{
		SessionID: nq.SessionID,
		Lat:       nq.Lat,
		Lon:       nq.Lon,
		Heading:   nq.Heading,
		Pitch:     nq.Pitch,
		Roll:      nq.Roll,
		FOV:       nq.FOV,
		Method:    arsession.MethodGeoRay,
	}
	if match != nil {
		id := match.POI.ID
		scan.MatchedPOIID = &id
		scan.DistanceM = match.Hit.DistanceM
		scan.AngleDeg = match.Hit.AngleDeg
		scan.Confidence = match.Hit.Confidence
	}
	if err := s.arSessions.RecordScan(r.Context(), scan); err != nil {
		s.writeServiceError(w, r, err, "record poi scan")
		return
	}

	fields := map[string]any{
		"heading":    nq.Heading,
		"fov":        nq.FOV,
		"matched":    match != nil,
		"confidence": scan.Confidence,
	}
	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventPOIScan,
		SessionID: nq.SessionID,
		Fields:    fields,
	})

	if match == nil {
		writeNoMatch(w, map[string]any{"scanId": scan.ID}, "no poi in view")
		return
	}
	writeData(w, scanVO{VO: match.VO(), ScanID: scan.ID})
}

// handleScanFeedback handles POST /ar/scan/feedback: the user names the
// POI they were actually looking at.
func (s *Server) handleScanFeedback(w http.ResponseWriter, r *http.Request) {
	var req scanFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.pois.Get(r.Context(), req.POIID); err != nil {
		s.writeServiceError(w, r, err, "scan feedback")
		return
	}
	scan, err := s.arSessions.CorrectScan(r.Context(), req.ScanID, req.POIID)
	if err != nil {
		s.writeServiceError(w, r, err, "scan feedback")
		return
	}
	writeData(w, scan)
}

// handleCreatePOI handles POST /api/ar/pois.
func (s *Server) handleCreatePOI(w http.ResponseWriter, r *http.Request) {
	var req createPOIRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := &poi.POI{
		Name:       req.Name,
		Lat:        req.Lat,
		Lon:        req.Lon,
		Address:    req.Address,
		Source:     req.Source,
		ExternalID: req.ExternalID,
	}
	if err := s.pois.Create(r.Context(), p); err != nil {
		if database.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, CodeConflict, "poi with this source and externalId already exists")
			return
		}
		s.writeServiceError(w, r, err, "create poi")
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityPOI, strconv.FormatInt(p.ID, 10), userIDFor(r, ""),
		map[string]any{"name": p.Name, "source": p.Source})
	writeData(w, p)
}

// handleGetPOI handles GET /api/ar/pois/{id}.
func (s *Server) handleGetPOI(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.pois.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "get poi")
		return
	}
	writeData(w, p)
}
