package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/recognition"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// recognizeForm holds the non-file fields of the recognition upload.
type recognizeForm struct {
	Latitude  float64 `form:"latitude" validate:"latitude"`
	Longitude float64 `form:"longitude" validate:"longitude"`
	Heading   float64 `form:"heading" validate:"heading"`
	UserID    string  `form:"user_id" validate:"max=64"`
	SessionID int64   `form:"session_id" validate:"gte=0"`
}

// imageContentType trusts a specific declared type and sniffs the bytes
// otherwise. Mobile clients often send application/octet-stream.
func imageContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

type recognitionFeedbackRequest struct {
	IsCorrect    *bool   `json:"is_correct" validate:"required"`
	UserFeedback *string `json:"user_feedback" validate:"omitempty,max=2000"`
}

type registerModelRequest struct {
	Name    string         `json:"name" validate:"required,max=128"`
	Version string         `json:"version" validate:"required,max=64"`
	Task    string         `json:"task" validate:"required,oneof=landmark_cls text_ocr"`
	Metrics map[string]any `json:"metrics"`
	FileURL string         `json:"file_url" validate:"omitempty,url"`
}

// handleRecognizeBuilding handles the multipart POST /api/ar/building/recognize.
func (s *Server) handleRecognizeBuilding(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, recognition.ErrImageTooLarge.Error())
			return
		}
		writeBadRequest(w, "expected multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup

	if r.FormValue("latitude") == "" || r.FormValue("longitude") == "" {
		writeBadRequest(w, "latitude and longitude are required")
		return
	}
	var (
		form recognizeForm
		err  error
	)
	parse := []struct {
		name string
		dst  *float64
	}{
		{"latitude", &form.Latitude},
		{"longitude", &form.Longitude},
		{"heading", &form.Heading},
	}
	for _, p := range parse {
		v := r.FormValue(p.name)
		if v == "" {
			continue
		}
		if *p.dst, err = strconv.ParseFloat(v, 64); err != nil {
			writeBadRequest(w, p.name+" must be a number")
			return
		}
	}
	if v := r.FormValue("session_id"); v != "" {
		if form.SessionID, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeBadRequest(w, "session_id must be an integer")
			return
		}
	}
	form.UserID = r.FormValue("user_id")
	if verr := validation.ValidateStruct(&form); verr != nil {
		writeValidation(w, verr)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeBadRequest(w, "image is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, recognition.MaxImageBytes+1))
	if err != nil {
		writeBadRequest(w, "failed to read image")
		return
	}

	req := recognition.Request{
		Image: recognition.Image{
			Data:        data,
			Filename:    header.Filename,
			ContentType: imageContentType(header.Header.Get("Content-Type"), data),
		},
		Pose: recognition.Pose{
			Position: geo.Point{Lat: form.Latitude, Lon: form.Longitude},
			Heading:  form.Heading,
		},
		UserID:    userIDFor(r, form.UserID),
		SessionID: form.SessionID,
	}
	if v := r.FormValue("lighting_conditions"); v != "" {
		req.LightingConditions = &v
	}
	if v := r.FormValue("weather_conditions"); v != "" {
		req.WeatherConditions = &v
	}

	out, err := s.recognition.Recognize(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, "recognize building")
		return
	}

	s.telemetry.Record(telemetry.Event{
		Type:      telemetry.EventRecognition,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Fields: map[string]any{
			"matched":            out.Matched(),
			"confidence":         out.Confidence,
			"processing_time_ms": out.ProcessingTimeMs,
		},
	})

	if !out.Matched() {
		writeNoMatch(w, out, "no building recognized")
		return
	}
	writeData(w, out)
}

// handleRecognitionFeedback handles POST /api/ar/recognition/{id}/feedback.
func (s *Server) handleRecognitionFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req recognitionFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := s.recognition.Feedback(r.Context(), id, *req.IsCorrect, req.UserFeedback)
	if err != nil {
		s.writeServiceError(w, r, err, "recognition feedback")
		return
	}
	writeData(w, entry)
}

// handleRecognitionHistory handles GET /api/ar/recognition/history?user_id=.
func (s *Server) handleRecognitionHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	userID := userIDFor(r, r.URL.Query().Get("user_id"))
	list, err := s.recognition.History(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err, "recognition history")
		return
	}
	writeData(w, list)
}

// handleListModels handles GET /api/ar/models?task=.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	list, err := s.recognition.Models(r.Context(), r.URL.Query().Get("task"))
	if err != nil {
		s.writeServiceError(w, r, err, "list models")
		return
	}
	writeData(w, list)
}

// handleRegisterModel handles POST /api/ar/models. New versions start inactive.
func (s *Server) handleRegisterModel(w http.ResponseWriter, r *http.Request) {
	var req registerModelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m := &recognition.ModelVersion{
		Name:    req.Name,
		Version: req.Version,
		Task:    req.Task,
		Metrics: req.Metrics,
		FileURL: req.FileURL,
	}
	if err := s.recognition.RegisterModel(r.Context(), m); err != nil {
		s.writeServiceError(w, r, err, "register model")
		return
	}
	s.auditLog(audit.ActionCreate, audit.EntityModel, strconv.FormatInt(m.ID, 10), userIDFor(r, ""),
		map[string]any{"task": m.Task, "name": m.Name, "version": m.Version})
	writeData(w, m)
}

// handleActivateModel handles POST /api/ar/models/{id}/activate.
func (s *Server) handleActivateModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := s.recognition.ActivateModel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "activate model")
		return
	}
	s.auditLog(audit.ActionActivate, audit.EntityModel, strconv.FormatInt(m.ID, 10), userIDFor(r, ""),
		map[string]any{"task": m.Task, "version": m.Version})
	writeData(w, m)
}
