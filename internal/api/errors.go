package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/arsession"
	"github.com/nerrad567/citywalk-core/internal/auth"
	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/conversation"
	"github.com/nerrad567/citywalk-core/internal/navigation"
	"github.com/nerrad567/citywalk-core/internal/poi"
	"github.com/nerrad567/citywalk-core/internal/preference"
	"github.com/nerrad567/citywalk-core/internal/recognition"
	"github.com/nerrad567/citywalk-core/internal/route"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// CommonResp is the envelope of every JSON response.
type CommonResp struct {
	Success    bool   `json:"success"`
	ResultCode string `json:"resultCode"`
	Data       any    `json:"data"`
	Values     []any  `json:"values,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Result codes.
const (
	CodeSuccess      = "SUCCESS"
	CodeNoMatch      = "NO_MATCH"
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = validation.CodeValidation
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData answers 200 with a single object in data.
func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, CommonResp{Success: true, ResultCode: CodeSuccess, Data: data})
}

// writeValues answers 200 with a list in values, as the chat screens expect.
func writeValues[T any](w http.ResponseWriter, items []T) {
	values := make([]any, len(items))
	for i := range items {
		values[i] = items[i]
	}
	writeJSON(w, http.StatusOK, CommonResp{Success: true, ResultCode: CodeSuccess, Values: values})
}

// writeNoMatch answers 200 with success and resultCode NO_MATCH.
func writeNoMatch(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, CommonResp{Success: true, ResultCode: CodeNoMatch, Data: data, Message: message})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, CommonResp{Success: false, ResultCode: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, CodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, CodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, CodeInternal, message)
}

// writeValidation reports field-level validation failures.
func writeValidation(w http.ResponseWriter, verr *validation.RequestError) {
	writeJSON(w, http.StatusBadRequest, CommonResp{
		Success:    false,
		ResultCode: verr.Code(),
		Data:       map[string]any{"fields": verr.Fields},
		Message:    verr.Error(),
	})
}

// statusFor maps domain errors to an HTTP status and result code.
// ok is false for errors with no client-facing meaning.
func statusFor(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound),
		errors.Is(err, route.ErrPlanNotFound),
		errors.Is(err, arsession.ErrSessionNotFound),
		errors.Is(err, arsession.ErrScanNotFound),
		errors.Is(err, poi.ErrPOINotFound),
		errors.Is(err, building.ErrBuildingNotFound),
		errors.Is(err, navigation.ErrSessionNotFound),
		errors.Is(err, navigation.ErrRouteNotFound),
		errors.Is(err, recognition.ErrLogNotFound),
		errors.Is(err, recognition.ErrModelNotFound),
		errors.Is(err, preference.ErrPreferenceNotFound):
		return http.StatusNotFound, CodeNotFound, true

	case errors.Is(err, arsession.ErrSessionEnded),
		errors.Is(err, navigation.ErrSessionEnded),
		errors.Is(err, recognition.ErrModelExists):
		return http.StatusConflict, CodeConflict, true

	case errors.Is(err, route.ErrSegmentOutOfRange),
		errors.Is(err, route.ErrTooFewStops),
		errors.Is(err, recognition.ErrInvalidTask),
		errors.Is(err, recognition.ErrEmptyImage),
		errors.Is(err, auth.ErrMissingUser):
		return http.StatusBadRequest, CodeBadRequest, true

	case errors.Is(err, recognition.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, CodeTooLarge, true

	case errors.Is(err, route.ErrPlannerFailed),
		errors.Is(err, recognition.ErrRecognizerFailed):
		return http.StatusBadGateway, CodeUpstream, true
	}
	return http.StatusInternalServerError, CodeInternal, false
}

// writeServiceError writes err using statusFor. Unmapped errors are
// logged and reported as a generic internal error.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	status, code, ok := statusFor(err)
	if !ok {
		s.logger.Error(what+" failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		writeInternalError(w, what+" failed")
		return
	}
	if code == CodeUpstream {
		// Upstream errors can carry provider URLs; only the sentinel is sent.
		s.logger.Warn(what+" failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		writeError(w, status, code, upstreamMessage(err))
		return
	}
	writeError(w, status, code, err.Error())
}

func upstreamMessage(err error) string {
	if errors.Is(err, recognition.ErrRecognizerFailed) {
		return recognition.ErrRecognizerFailed.Error()
	}
	return route.ErrPlannerFailed.Error()
}
