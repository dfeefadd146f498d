package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/citywalk-core/internal/audit"
)

// updatePreferencesRequest is a partial update; absent fields are kept.
type updatePreferencesRequest struct {
	PreferredBuildingTypes map[string]any `json:"preferred_building_types"`
	PreferredRouteTypes    map[string]any `json:"preferred_route_types"`
	AccessibilityNeeds     map[string]any `json:"accessibility_needs"`
	LanguagePreference     *string        `json:"language_preference" validate:"omitempty,min=2,max=16"`
	ARSettings             map[string]any `json:"ar_settings"`
	NotificationSettings   map[string]any `json:"notification_settings"`
}

func (req *updatePreferencesRequest) patch() map[string]any {
	patch := make(map[string]any)
	for key, m := range map[string]map[string]any{
		"preferred_building_types": req.PreferredBuildingTypes,
		"preferred_route_types":    req.PreferredRouteTypes,
		"accessibility_needs":      req.AccessibilityNeeds,
		"ar_settings":              req.ARSettings,
		"notification_settings":    req.NotificationSettings,
	} {
		if m != nil {
			patch[key] = m
		}
	}
	if req.LanguagePreference != nil {
		patch["language_preference"] = *req.LanguagePreference
	}
	return patch
}

// preferencesUserID reads {user_id}; a token subject still takes precedence.
func preferencesUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "user_id")
	if id == "" || len(id) > 64 {
		writeBadRequest(w, "invalid user_id")
		return "", false
	}
	return userIDFor(r, id), true
}

// handleGetPreferences handles GET /api/ar/preferences/{user_id}. Unknown
// users get the defaults, which are stored on first read.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := preferencesUserID(w, r)
	if !ok {
		return
	}
	p, err := s.preferences.GetOrCreate(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "get preferences")
		return
	}
	writeData(w, p)
}

// handleUpdatePreferences handles POST /api/ar/preferences/{user_id}.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := preferencesUserID(w, r)
	if !ok {
		return
	}
	var req updatePreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, applied, err := s.preferences.Update(r.Context(), userID, req.patch())
	if err != nil {
		s.writeServiceError(w, r, err, "update preferences")
		return
	}
	if applied == nil {
		applied = []string{}
	}

	s.auditLog(audit.ActionUpdate, audit.EntityPreference, userID, userID,
		map[string]any{"updated_fields": applied})
	writeData(w, struct {
		Preferences   any      `json:"preferences"`
		UpdatedFields []string `json:"updated_fields"`
	}{p, applied})
}
