package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

const auditSource = "api"

// auditLog queues an entry for the background writer. Mutating handlers
// call it after the change has been committed; a full queue drops the
// entry rather than slowing the request.
func (s *Server) auditLog(action, entityType, entityID, userID string, details map[string]any) {
	if s.auditCh == nil {
		return
	}
	e := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     auditSource,
		Details:    details,
	}
	select {
	case s.auditCh <- e:
	default:
		s.logger.Warn("audit queue full, entry dropped",
			"action", action, "entity_type", entityType, "entity_id", entityID)
	}
}

// drainAuditLog persists queued entries one at a time. After ctx is
// cancelled it empties the queue before returning so shutdown loses nothing
// that was accepted.
func (s *Server) drainAuditLog(ctx context.Context) {
	persist := func(e *audit.Entry) {
		// The request context is gone by now; the write gets its own.
		if err := s.auditRepo.Create(context.Background(), e); err != nil {
			s.logger.Error("audit write failed",
				"action", e.Action, "entity_type", e.EntityType, "error", err)
		}
	}

	for {
		select {
		case e := <-s.auditCh:
			persist(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-s.auditCh:
					persist(e)
				default:
					return
				}
			}
		}
	}
}

// auditQuery is the query string of GET /api/v1/audit.
type auditQuery struct {
	Action     string `validate:"omitempty,max=32"`
	EntityType string `validate:"omitempty,max=32"`
	EntityID   string `validate:"omitempty,max=64"`
	UserID     string `validate:"omitempty,max=64"`
	Limit      int    `validate:"gte=0,lte=200"`
	Offset     int    `validate:"gte=0"`
}

// handleListAuditLogs pages through the audit trail, newest first.
// Filters (action, entity_type, entity_id, user_id) match exactly.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	aq := auditQuery{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}
	var ok bool
	if aq.Limit, ok = queryInt(w, r, "limit", 0); !ok {
		return
	}
	if aq.Offset, ok = queryInt(w, r, "offset", 0); !ok {
		return
	}
	if err := validation.ValidateStruct(aq); err != nil {
		writeValidation(w, err)
		return
	}

	page, err := s.auditRepo.List(r.Context(), audit.Filter{
		Action:     aq.Action,
		EntityType: aq.EntityType,
		EntityID:   aq.EntityID,
		UserID:     aq.UserID,
		Limit:      aq.Limit,
		Offset:     aq.Offset,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "list audit logs")
		return
	}
	writeData(w, page)
}
