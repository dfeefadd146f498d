package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/preference"
	"github.com/nerrad567/citywalk-core/internal/recognition"
)

// recognizeRequest builds a multipart upload. A nil image omits the file part.
func recognizeRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, recognizePath, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, testResp) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var resp testResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v; body: %s", err, w.Body.String())
	}
	return w, resp
}

func poseFields(heading int) map[string]string {
	return map[string]string{
		"latitude":  fmt.Sprintf("%f", baseLat),
		"longitude": fmt.Sprintf("%f", baseLon),
		"heading":   fmt.Sprint(heading),
		"user_id":   "snapper",
	}
}

// ─── Recognition Tests ─────────────────────────────────────────────

func TestRecognize_GeoRayMatch(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	id := createBuilding(t, router, "Main Library", baseLat+0.0005, baseLon)

	w, resp := serve(t, router, recognizeRequest(t, []byte("fake-jpeg"), poseFields(0)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if resp.ResultCode != CodeSuccess {
		t.Fatalf("resultCode = %q, want SUCCESS", resp.ResultCode)
	}
	var out recognition.Outcome
	decodeData(t, resp, &out)
	if out.BuildingID == nil || *out.BuildingID != id {
		t.Fatalf("building_id = %v, want %d", out.BuildingID, id)
	}
	if out.Method != recognition.MethodGeoRay {
		t.Errorf("method = %q, want %q", out.Method, recognition.MethodGeoRay)
	}
	if out.BuildingName != "Main Library" || out.Building == nil {
		t.Errorf("building not attached: %+v", out)
	}
	if out.RecognitionID == 0 {
		t.Error("recognition_id not assigned")
	}
}

func TestRecognize_NoMatch(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	createBuilding(t, router, "Main Library", baseLat+0.0005, baseLon)

	// Facing away from the only building.
	w, resp := serve(t, router, recognizeRequest(t, []byte("fake-jpeg"), poseFields(180)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !resp.Success || resp.ResultCode != CodeNoMatch {
		t.Fatalf("envelope = %+v, want success NO_MATCH", resp)
	}
	var out recognition.Outcome
	decodeData(t, resp, &out)
	if out.BuildingID != nil || out.RecognitionID == 0 {
		t.Errorf("outcome = %+v, want logged miss", out)
	}
}

func TestRecognize_BadUpload(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name   string
		image  []byte
		fields map[string]string
		want   int
	}{
		{"missing image", nil, poseFields(0), http.StatusBadRequest},
		{"empty image", []byte{}, poseFields(0), http.StatusBadRequest},
		{"missing latitude", []byte("x"), map[string]string{"longitude": "121"}, http.StatusBadRequest},
		{"bad heading", []byte("x"), map[string]string{"latitude": "31", "longitude": "121", "heading": "720"}, http.StatusBadRequest},
		{"image too large", make([]byte, recognition.MaxImageBytes+1), poseFields(0), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serve(t, router, recognizeRequest(t, tt.image, tt.fields))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; message: %s", w.Code, tt.want, resp.Message)
			}
			if resp.Success {
				t.Error("success = true on bad upload")
			}
		})
	}
}

func TestRecognize_NotMultipart(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, _ := do(t, router, http.MethodPost, recognizePath, `{"latitude":31}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRecognition_FeedbackAndHistory(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	createBuilding(t, router, "Main Library", baseLat+0.0005, baseLon)

	_, resp := serve(t, router, recognizeRequest(t, []byte("fake-jpeg"), poseFields(0)))
	var out recognition.Outcome
	decodeData(t, resp, &out)

	w, resp := do(t, router, http.MethodPost, fmt.Sprintf("/api/ar/recognition/%d/feedback", out.RecognitionID),
		`{"is_correct":false,"user_feedback":"that is the gym"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("feedback status = %d; body: %s", w.Code, w.Body.String())
	}
	var entry recognition.Log
	decodeData(t, resp, &entry)
	if entry.IsCorrect == nil || *entry.IsCorrect {
		t.Errorf("is_correct = %v, want false", entry.IsCorrect)
	}
	if entry.UserFeedback == nil || *entry.UserFeedback != "that is the gym" {
		t.Errorf("user_feedback = %v", entry.UserFeedback)
	}

	w, _ = do(t, router, http.MethodPost, fmt.Sprintf("/api/ar/recognition/%d/feedback", out.RecognitionID), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing is_correct status = %d, want 400", w.Code)
	}
	w, _ = do(t, router, http.MethodPost, "/api/ar/recognition/999/feedback", `{"is_correct":true}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown recognition status = %d, want 404", w.Code)
	}

	_, resp = do(t, router, http.MethodGet, "/api/ar/recognition/history?user_id=snapper", "")
	var logs []recognition.Log
	if err := json.Unmarshal(resp.Data, &logs); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != out.RecognitionID {
		t.Errorf("history = %+v", logs)
	}

	_, resp = do(t, router, http.MethodGet, "/api/ar/recognition/history?user_id=nobody", "")
	if err := json.Unmarshal(resp.Data, &logs); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("history for unknown user = %d, want 0", len(logs))
	}
}

// ─── Model Version Tests ───────────────────────────────────────────

func TestModels_RegisterAndActivate(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	var ids []int64
	for _, version := range []string{"v1", "v2"} {
		w, resp := do(t, router, http.MethodPost, "/api/ar/models",
			`{"name":"landmark-net","version":"`+version+`","task":"landmark_cls","metrics":{"top1":0.9}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("register %s status = %d; body: %s", version, w.Code, w.Body.String())
		}
		var m recognition.ModelVersion
		decodeData(t, resp, &m)
		if m.IsActive {
			t.Errorf("%s registered active", version)
		}
		ids = append(ids, m.ID)
	}

	w, resp := do(t, router, http.MethodPost, "/api/ar/models",
		`{"name":"landmark-net","version":"v1","task":"landmark_cls"}`)
	if w.Code != http.StatusConflict || resp.ResultCode != CodeConflict {
		t.Errorf("duplicate = %d %s, want 409 CONFLICT", w.Code, resp.ResultCode)
	}
	w, _ = do(t, router, http.MethodPost, "/api/ar/models", `{"name":"x","version":"v1","task":"segmentation"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad task status = %d, want 400", w.Code)
	}

	for _, id := range ids {
		w, _ := do(t, router, http.MethodPost, fmt.Sprintf("/api/ar/models/%d/activate", id), "")
		if w.Code != http.StatusOK {
			t.Fatalf("activate %d status = %d; body: %s", id, w.Code, w.Body.String())
		}
	}

	_, resp = do(t, router, http.MethodGet, "/api/ar/models?task=landmark_cls", "")
	var models []recognition.ModelVersion
	if err := json.Unmarshal(resp.Data, &models); err != nil {
		t.Fatalf("unmarshal models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	for _, m := range models {
		if want := m.ID == ids[1]; m.IsActive != want {
			t.Errorf("model %s active = %v, want %v", m.Version, m.IsActive, want)
		}
	}

	w, _ = do(t, router, http.MethodGet, "/api/ar/models?task=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad task filter status = %d, want 400", w.Code)
	}
	w, _ = do(t, router, http.MethodPost, "/api/ar/models/999/activate", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown model status = %d, want 404", w.Code)
	}
}

// ─── Preference Tests ──────────────────────────────────────────────

func TestPreferences_Defaults(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := do(t, router, http.MethodGet, "/api/ar/preferences/new-user", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var p preference.Preference
	decodeData(t, resp, &p)
	if p.UserID != "new-user" || p.LanguagePreference != preference.DefaultLanguage {
		t.Errorf("defaults = %+v", p)
	}
	if p.ARSettings["recognition_sensitivity"] != "medium" {
		t.Errorf("ar_settings = %v", p.ARSettings)
	}
}

func TestPreferences_Update(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := do(t, router, http.MethodPost, "/api/ar/preferences/u7",
		`{"language_preference":"en-US","ar_settings":{"recognition_sensitivity":"high"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var data struct {
		Preferences   preference.Preference `json:"preferences"`
		UpdatedFields []string              `json:"updated_fields"`
	}
	decodeData(t, resp, &data)
	if len(data.UpdatedFields) != 2 {
		t.Errorf("updated_fields = %v, want 2 keys", data.UpdatedFields)
	}
	if data.Preferences.LanguagePreference != "en-US" {
		t.Errorf("language = %q, want en-US", data.Preferences.LanguagePreference)
	}

	// A later partial update keeps earlier values.
	do(t, router, http.MethodPost, "/api/ar/preferences/u7", `{"accessibility_needs":{"wheelchair":true}}`)

	_, resp = do(t, router, http.MethodGet, "/api/ar/preferences/u7", "")
	var p preference.Preference
	decodeData(t, resp, &p)
	if p.LanguagePreference != "en-US" || p.ARSettings["recognition_sensitivity"] != "high" {
		t.Errorf("earlier update lost: %+v", p)
	}
	if p.AccessibilityNeeds["wheelchair"] != true {
		t.Errorf("accessibility_needs = %v", p.AccessibilityNeeds)
	}

	w, _ = do(t, router, http.MethodPost, "/api/ar/preferences/u7", `{"language_preference":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short language status = %d, want 400", w.Code)
	}
}

func TestImageContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"declared wins", "image/webp", png, "image/webp"},
		{"sniff png", "application/octet-stream", png, "image/png"},
		{"sniff jpeg", "", jpeg, "image/jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := imageContentType(tt.declared, tt.data); got != tt.want {
				t.Errorf("imageContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}
