package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/recognition"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// decodeBody reads a JSON body into v and validates it. On failure the
// error response has been written and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large")
			return false
		}
		writeBadRequest(w, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		writeValidation(w, verr)
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt64 parses a required integer query parameter.
func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeBadRequest(w, name+" is required")
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// queryFloat parses an optional float query parameter. ok is false after a
// parse error has been written.
func queryFloat(w http.ResponseWriter, r *http.Request, name string, def float64) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		writeBadRequest(w, name+" must be a number")
		return 0, false
	}
	return f, true
}

// queryInt parses an optional int query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// userIDFor picks the acting user. A token subject wins over the
// client-supplied ID; without either the shared default user is used.
func userIDFor(r *http.Request, requested string) string {
	if sub := tokenSubject(r); sub != "" {
		return sub
	}
	if requested != "" {
		return requested
	}
	return recognition.DefaultUserID
}

// tokenSubject returns the bearer token subject, or "" when the request
// carries no token.
func tokenSubject(r *http.Request) string {
	if c := claimsFrom(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}
