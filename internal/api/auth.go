package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/auth"
)

// tokenRequest is the request body for POST /api/v1/auth/token.
type tokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Device string `json:"device" validate:"max=128"`
}

// tokenResponse is returned by POST /api/v1/auth/token.
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// handleIssueToken exchanges a client API key (X-API-Key) for a bearer
// token bound to the requested user.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.secCfg.JWT.Secret == "" {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "token issuing is not configured")
		return
	}
	if err := s.keys.Check(r.Header.Get("X-API-Key")); err != nil {
		if errors.Is(err, auth.ErrNoAPIKeys) {
			writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "token issuing is not configured")
			return
		}
		writeUnauthorized(w, "invalid api key")
		return
	}

	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, expiresAt, err := auth.IssueToken(req.UserID, req.Device, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		s.writeServiceError(w, r, err, "issue token")
		return
	}

	s.auditLog(audit.ActionToken, audit.EntityClient, req.Device, req.UserID, nil)
	writeData(w, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Round(time.Second).Seconds()),
		ExpiresAt:   expiresAt.UTC(),
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket so
// the JWT never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.tickets.Issue(userIDFor(r, ""))
	if err != nil {
		s.logger.Error("failed to issue websocket ticket", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}
	writeData(w, map[string]any{
		"ticket":     ticket,
		"expires_in": int(auth.TicketTTL.Seconds()),
	})
}
