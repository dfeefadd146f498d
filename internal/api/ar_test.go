package api

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/arsession"
	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/poi"
)

// Campus reference point; 0.0005 deg of latitude is about 55 m.
const (
	baseLat = 31.0
	baseLon = 121.0
)

func startARSession(t *testing.T, h http.Handler) int64 {
	t.Helper()
	w, resp := do(t, h, http.MethodPost, "/ar/session/start", `{"userId":"u1","mode":"ar","device":"pixel"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", w.Code, w.Body.String())
	}
	var sess arsession.Session
	decodeData(t, resp, &sess)
	return sess.ID
}

func createPOI(t *testing.T, h http.Handler, name string, lat, lon float64) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"lat":%f,"lon":%f,"address":"Campus"}`, name, lat, lon)
	w, resp := do(t, h, http.MethodPost, "/api/ar/pois", body)
	if w.Code != http.StatusOK {
		t.Fatalf("create poi status = %d; body: %s", w.Code, w.Body.String())
	}
	var p poi.POI
	decodeData(t, resp, &p)
	return p.ID
}

// ─── AR Session Tests ──────────────────────────────────────────────

func TestARSession_StartEnd(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	id := startARSession(t, router)

	w, resp := do(t, router, http.MethodPost, "/ar/session/end", `{"sessionId":`+strconv.FormatInt(id, 10)+`}`)
	if w.Code != http.StatusOK {
		t.Fatalf("end status = %d; body: %s", w.Code, w.Body.String())
	}
	var sess arsession.Session
	decodeData(t, resp, &sess)
	if sess.EndTime == nil {
		t.Error("endTime not set")
	}

	w, resp = do(t, router, http.MethodPost, "/ar/session/end", `{"sessionId":`+strconv.FormatInt(id, 10)+`}`)
	if w.Code != http.StatusConflict || resp.ResultCode != CodeConflict {
		t.Errorf("second end = %d %s, want 409 CONFLICT", w.Code, resp.ResultCode)
	}
}

func TestARSession_Start(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"defaults", `{}`, http.StatusOK},
		{"gaode mode", `{"mode":"gaode"}`, http.StatusOK},
		{"bad mode", `{"mode":"vr"}`, http.StatusBadRequest},
		{"unknown conversation", `{"conversationId":77}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, http.MethodPost, "/ar/session/start", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestARSession_EndUnknown(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, _ := do(t, router, http.MethodPost, "/ar/session/end", `{"sessionId":12345}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ─── POI Hit Test Tests ────────────────────────────────────────────

func TestNearbyPOI_NoMatch(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, resp := do(t, router, http.MethodGet, fmt.Sprintf("/poi/nearby?lat=%f&lon=%f&heading=0", baseLat, baseLon), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !resp.Success || resp.ResultCode != CodeNoMatch {
		t.Errorf("envelope = %+v, want success NO_MATCH", resp)
	}
}

func TestNearbyPOI_Match(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	north := createPOI(t, router, "Library", baseLat+0.0005, baseLon)
	createPOI(t, router, "Gym", baseLat-0.0005, baseLon)

	tests := []struct {
		name    string
		heading int
		wantID  int64
		noMatch bool
	}{
		{"facing north", 0, north, false},
		{"facing east", 90, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := do(t, router, http.MethodGet,
				fmt.Sprintf("/poi/nearby?lat=%f&lon=%f&heading=%d", baseLat, baseLon, tt.heading), "")
			if tt.noMatch {
				if resp.ResultCode != CodeNoMatch {
					t.Errorf("resultCode = %q, want NO_MATCH", resp.ResultCode)
				}
				return
			}
			if resp.ResultCode != CodeSuccess {
				t.Fatalf("resultCode = %q, want SUCCESS", resp.ResultCode)
			}
			var vo poi.VO
			decodeData(t, resp, &vo)
			if vo.ID != tt.wantID {
				t.Errorf("id = %d, want %d", vo.ID, tt.wantID)
			}
			if vo.DistanceM < 50 || vo.DistanceM > 60 {
				t.Errorf("distanceM = %f, want about 55", vo.DistanceM)
			}
		})
	}
}

func TestNearbyPOI_BadQuery(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name  string
		query string
	}{
		{"missing lat", "lon=121"},
		{"lat not a number", "lat=abc&lon=121"},
		{"lat out of range", "lat=95&lon=121"},
		{"heading out of range", "lat=31&lon=121&heading=400"},
		{"radius too large", "lat=31&lon=121&radius=5000"},
		{"zero fov", "lat=31&lon=121&fov=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, router, http.MethodGet, "/poi/nearby?"+tt.query, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp.Success {
				t.Error("success = true on bad query")
			}
		})
	}
}

func TestNearbyPOI_RecordsScan(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	sessionID := startARSession(t, router)
	poiID := createPOI(t, router, "Library", baseLat+0.0005, baseLon)
	other := createPOI(t, router, "Lab", baseLat, baseLon+0.0005)

	_, resp := do(t, router, http.MethodGet,
		fmt.Sprintf("/poi/nearby?lat=%f&lon=%f&heading=0&sessionId=%d", baseLat, baseLon, sessionID), "")
	var hit scanVO
	decodeData(t, resp, &hit)
	if hit.ID != poiID || hit.ScanID == 0 {
		t.Fatalf("hit = %+v", hit)
	}

	// Looking south finds nothing but is still recorded.
	_, resp = do(t, router, http.MethodGet,
		fmt.Sprintf("/poi/nearby?lat=%f&lon=%f&heading=180&sessionId=%d", baseLat, baseLon, sessionID), "")
	if resp.ResultCode != CodeNoMatch {
		t.Errorf("resultCode = %q, want NO_MATCH", resp.ResultCode)
	}
	var miss struct {
		ScanID int64 `json:"scanId"`
	}
	decodeData(t, resp, &miss)
	if miss.ScanID == 0 {
		t.Error("miss was not recorded")
	}

	scans, err := srv.arSessions.ListScans(t.Context(), sessionID)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("scans = %d, want 2", len(scans))
	}

	// The user says the first scan was really the lab.
	w, resp := do(t, router, http.MethodPost, "/ar/scan/feedback",
		fmt.Sprintf(`{"scanId":%d,"poiId":%d}`, hit.ScanID, other))
	if w.Code != http.StatusOK {
		t.Fatalf("feedback status = %d; body: %s", w.Code, w.Body.String())
	}
	var corrected arsession.Scan
	decodeData(t, resp, &corrected)
	if corrected.UserCorrectedPOIID == nil || *corrected.UserCorrectedPOIID != other {
		t.Errorf("corrected poi = %v, want %d", corrected.UserCorrectedPOIID, other)
	}

	w, _ = do(t, router, http.MethodPost, "/ar/scan/feedback", fmt.Sprintf(`{"scanId":%d,"poiId":9999}`, hit.ScanID))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poi feedback status = %d, want 404", w.Code)
	}
}

func TestNearbyPOI_EndedSession(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	sessionID := startARSession(t, router)
	do(t, router, http.MethodPost, "/ar/session/end", fmt.Sprintf(`{"sessionId":%d}`, sessionID))

	w, _ := do(t, router, http.MethodGet,
		fmt.Sprintf("/poi/nearby?lat=%f&lon=%f&sessionId=%d", baseLat, baseLon, sessionID), "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestPOI_CreateAndGet(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	id := createPOI(t, router, "Gate", baseLat, baseLon)

	_, resp := do(t, router, http.MethodGet, "/api/ar/pois/"+strconv.FormatInt(id, 10), "")
	var p poi.POI
	decodeData(t, resp, &p)
	if p.Name != "Gate" || p.Source != poi.SourceManual {
		t.Errorf("poi = %+v", p)
	}

	w, _ := do(t, router, http.MethodGet, "/api/ar/pois/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poi status = %d, want 404", w.Code)
	}
	w, _ = do(t, router, http.MethodGet, "/api/ar/pois/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestPOI_DuplicateExternalID(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	body := `{"name":"Cafe","lat":31,"lon":121,"source":"amap","externalId":"B0001"}`
	if w, _ := do(t, router, http.MethodPost, "/api/ar/pois", body); w.Code != http.StatusOK {
		t.Fatalf("first create status = %d", w.Code)
	}
	w, resp := do(t, router, http.MethodPost, "/api/ar/pois", body)
	if w.Code != http.StatusConflict || resp.ResultCode != CodeConflict {
		t.Errorf("duplicate = %d %s, want 409 CONFLICT", w.Code, resp.ResultCode)
	}
}

// ─── Building Tests ────────────────────────────────────────────────

func createBuilding(t *testing.T, h http.Handler, name string, lat, lon float64) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"latitude":%f,"longitude":%f,"building_type":"library","floor_count":5}`, name, lat, lon)
	w, resp := do(t, h, http.MethodPost, "/api/ar/buildings", body)
	if w.Code != http.StatusOK {
		t.Fatalf("create building status = %d; body: %s", w.Code, w.Body.String())
	}
	var b building.Building
	decodeData(t, resp, &b)
	return b.ID
}

func TestBuilding_CRUD(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	id := createBuilding(t, router, "Main Library", baseLat, baseLon)
	path := "/api/ar/building/" + strconv.FormatInt(id, 10)

	w, resp := do(t, router, http.MethodPut, path, `{"floor_count":7,"is_landmark":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d; body: %s", w.Code, w.Body.String())
	}
	var b building.Building
	decodeData(t, resp, &b)
	if b.FloorCount != 7 || !b.IsLandmark || b.Name != "Main Library" {
		t.Errorf("updated = %+v", b)
	}

	w, _ = do(t, router, http.MethodPost, path+"/landmarks",
		`{"landmark_name":"Front door","ar_anchor_id":"anchor-1","position":{"x":1,"y":2,"z":3}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("landmark status = %d; body: %s", w.Code, w.Body.String())
	}
	w, _ = do(t, router, http.MethodPost, path+"/features",
		`{"feature_type":"facade","feature_data":{"color":"red"},"confidence_score":0.8}`)
	if w.Code != http.StatusOK {
		t.Fatalf("feature status = %d; body: %s", w.Code, w.Body.String())
	}

	_, resp = do(t, router, http.MethodGet, path+"/info", "")
	var info struct {
		Name      string              `json:"name"`
		Landmarks []building.Landmark `json:"landmarks"`
		Features  []building.Feature  `json:"features"`
	}
	decodeData(t, resp, &info)
	if info.Name != "Main Library" || len(info.Landmarks) != 1 || len(info.Features) != 1 {
		t.Fatalf("info = %+v", info)
	}
	if l := info.Landmarks[0]; !l.IsActive || l.LandmarkType != building.DefaultLandmarkType || l.Position == nil || l.Position.Z != 3 {
		t.Errorf("landmark = %+v", l)
	}

	w, _ = do(t, router, http.MethodDelete, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w, _ = do(t, router, http.MethodGet, path+"/info", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("info after delete status = %d, want 404", w.Code)
	}
	w, _ = do(t, router, http.MethodGet, path+"/landmarks", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("landmarks after delete status = %d, want 404", w.Code)
	}
}

func TestBuilding_CreateValidation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"latitude":31,"longitude":121}`},
		{"bad latitude", `{"name":"X","latitude":91,"longitude":121}`},
		{"negative floors", `{"name":"X","latitude":31,"longitude":121,"floor_count":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, router, http.MethodPost, "/api/ar/buildings", tt.body)
			if w.Code != http.StatusBadRequest || resp.ResultCode != CodeValidation {
				t.Errorf("got %d %s, want 400 VALIDATION_ERROR", w.Code, resp.ResultCode)
			}
		})
	}
}

func TestBuilding_Nearby(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// About 111 m, 333 m and 5.5 km north.
	near := createBuilding(t, router, "Near", baseLat+0.001, baseLon)
	createBuilding(t, router, "Mid", baseLat+0.003, baseLon)
	createBuilding(t, router, "Far", baseLat+0.05, baseLon)

	_, resp := do(t, router, http.MethodGet,
		fmt.Sprintf("/api/ar/buildings/nearby?latitude=%f&longitude=%f", baseLat, baseLon), "")
	var data struct {
		Buildings []building.Nearby `json:"buildings"`
		Total     int               `json:"total"`
		Radius    int               `json:"radius"`
	}
	decodeData(t, resp, &data)
	if data.Total != 2 || data.Radius != defaultNearbyRadius {
		t.Fatalf("nearby = %+v", data)
	}
	if data.Buildings[0].ID != near {
		t.Errorf("nearest = %d, want %d", data.Buildings[0].ID, near)
	}
	if data.Buildings[0].Distance > data.Buildings[1].Distance {
		t.Error("results not ordered by distance")
	}

	_, resp = do(t, router, http.MethodGet,
		fmt.Sprintf("/api/ar/buildings/nearby?latitude=%f&longitude=%f&radius=200", baseLat, baseLon), "")
	decodeData(t, resp, &data)
	if data.Total != 1 {
		t.Errorf("radius 200 total = %d, want 1", data.Total)
	}

	w, _ := do(t, router, http.MethodGet, "/api/ar/buildings/nearby?latitude=31", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing longitude status = %d, want 400", w.Code)
	}
}
