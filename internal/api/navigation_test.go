package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"testing"

	"github.com/nerrad567/citywalk-core/internal/auth"
	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/navigation"
)

// startNavigation opens a session from the base point to about 111 m north.
func startNavigation(t *testing.T, h http.Handler, userID string) navigation.StartResult {
	t.Helper()
	body := fmt.Sprintf(`{"start_latitude":%f,"start_longitude":%f,"end_latitude":%f,"end_longitude":%f,"user_id":%q}`,
		baseLat, baseLon, baseLat+0.001, baseLon, userID)
	w, resp := do(t, h, http.MethodPost, "/api/ar/navigation/start", body)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", w.Code, w.Body.String())
	}
	var res navigation.StartResult
	decodeData(t, resp, &res)
	return res
}

func TestNavigation_StartStraightLine(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	res := startNavigation(t, router, "walker")
	if res.SessionID == 0 || res.RouteID == 0 {
		t.Fatalf("ids not assigned: %+v", res)
	}
	if res.Provider != navigation.ProviderStraightLine {
		t.Errorf("provider = %q, want %q", res.Provider, navigation.ProviderStraightLine)
	}
	if res.RouteType != "walking" {
		t.Errorf("route_type = %q, want walking", res.RouteType)
	}
	if res.TotalDistance < 105 || res.TotalDistance > 116 {
		t.Errorf("total_distance = %d, want about 111", res.TotalDistance)
	}
	if res.EstimatedTime <= 0 {
		t.Errorf("estimated_time = %d, want > 0", res.EstimatedTime)
	}
	if len(res.Waypoints) < 2 {
		t.Errorf("waypoints = %d, want at least 2", len(res.Waypoints))
	}
}

func TestNavigation_StartValidation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing end", `{"start_latitude":31,"start_longitude":121}`},
		{"bad latitude", `{"start_latitude":100,"start_longitude":121,"end_latitude":31,"end_longitude":121}`},
		{"bad route type", `{"start_latitude":31,"start_longitude":121,"end_latitude":31,"end_longitude":121,"route_type":"boat"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, router, http.MethodPost, "/api/ar/navigation/start", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestNavigation_UpdateAndRoute(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()
	res := startNavigation(t, router, "walker")

	// Halfway, facing the destination.
	body := fmt.Sprintf(`{"session_id":%d,"current_latitude":%f,"current_longitude":%f,"heading":0}`,
		res.SessionID, baseLat+0.0005, baseLon)
	w, resp := do(t, router, http.MethodPost, "/api/ar/navigation/update", body)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d; body: %s", w.Code, w.Body.String())
	}
	var ins navigation.Instruction
	decodeData(t, resp, &ins)
	if ins.Arrived {
		t.Error("arrived halfway")
	}
	if ins.DistanceToDestination < 50 || ins.DistanceToDestination > 60 {
		t.Errorf("distance_to_destination = %f, want about 55", ins.DistanceToDestination)
	}
	if ins.ArrowDirection != navigation.ArrowForward {
		t.Errorf("arrow = %q, want %q", ins.ArrowDirection, navigation.ArrowForward)
	}

	_, resp = do(t, router, http.MethodGet, fmt.Sprintf("/api/ar/navigation/route/%d", res.SessionID), "")
	var status navigation.RouteStatus
	decodeData(t, resp, &status)
	if !status.IsActive || math.Abs(status.CurrentPosition.Lat-(baseLat+0.0005)) > 1e-9 {
		t.Errorf("route status = %+v", status)
	}

	// At the destination.
	body = fmt.Sprintf(`{"session_id":%d,"current_latitude":%f,"current_longitude":%f,"heading":0}`,
		res.SessionID, baseLat+0.001, baseLon)
	_, resp = do(t, router, http.MethodPost, "/api/ar/navigation/update", body)
	decodeData(t, resp, &ins)
	if !ins.Arrived {
		t.Errorf("not arrived at destination: %+v", ins)
	}
}

func TestNavigation_UnknownSession(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w, _ := do(t, router, http.MethodGet, "/api/ar/navigation/route/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("route status = %d, want 404", w.Code)
	}
	w, _ = do(t, router, http.MethodPost, "/api/ar/navigation/update",
		`{"session_id":999,"current_latitude":31,"current_longitude":121}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("update status = %d, want 404", w.Code)
	}
	w, _ = do(t, router, http.MethodPost, "/api/ar/navigation/end", `{"session_id":999}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("end status = %d, want 404", w.Code)
	}
}

func TestNavigation_EndAndHistory(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	done := startNavigation(t, router, "walker")
	do(t, router, http.MethodPost, "/api/ar/navigation/update", fmt.Sprintf(
		`{"session_id":%d,"current_latitude":%f,"current_longitude":%f}`, done.SessionID, baseLat+0.001, baseLon))
	abandoned := startNavigation(t, router, "walker")
	startNavigation(t, router, "someone-else")

	tests := []struct {
		session    int64
		body       string
		wantStatus string
	}{
		{done.SessionID, fmt.Sprintf(`{"session_id":%d,"user_rating":5,"user_feedback":"great"}`, done.SessionID), navigation.StatusCompleted},
		{abandoned.SessionID, fmt.Sprintf(`{"session_id":%d}`, abandoned.SessionID), navigation.StatusAbandoned},
	}
	for _, tt := range tests {
		w, resp := do(t, router, http.MethodPost, "/api/ar/navigation/end", tt.body)
		if w.Code != http.StatusOK {
			t.Fatalf("end %d status = %d; body: %s", tt.session, w.Code, w.Body.String())
		}
		var h navigation.History
		decodeData(t, resp, &h)
		if h.CompletionStatus != tt.wantStatus {
			t.Errorf("session %d status = %q, want %q", tt.session, h.CompletionStatus, tt.wantStatus)
		}
	}

	w, resp := do(t, router, http.MethodPost, "/api/ar/navigation/end", fmt.Sprintf(`{"session_id":%d}`, done.SessionID))
	if w.Code != http.StatusConflict || resp.ResultCode != CodeConflict {
		t.Errorf("second end = %d %s, want 409 CONFLICT", w.Code, resp.ResultCode)
	}

	w, _ = do(t, router, http.MethodPost, "/api/ar/navigation/end",
		fmt.Sprintf(`{"session_id":%d,"user_rating":9}`, abandoned.SessionID))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad rating status = %d, want 400", w.Code)
	}

	_, resp = do(t, router, http.MethodGet, "/api/ar/navigation/history?user_id=walker", "")
	var history []navigation.History
	if err := json.Unmarshal(resp.Data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	for _, h := range history {
		if h.UserID != "walker" {
			t.Errorf("history user = %q, want walker", h.UserID)
		}
	}
}

func TestNavigation_OtherUsersSessionIsHidden(t *testing.T) {
	srv := authedServer(t)
	router := srv.buildRouter()

	bearer := func(sub string) string {
		tok, _, err := auth.IssueToken(sub, "", testSecret, 15)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		return "Bearer " + tok
	}
	alice, bob := bearer("alice"), bearer("bob")

	body := fmt.Sprintf(`{"start_latitude":%f,"start_longitude":%f,"end_latitude":%f,"end_longitude":%f}`,
		baseLat, baseLon, baseLat+0.001, baseLon)
	w, resp := do(t, router, http.MethodPost, "/api/ar/navigation/start", body, "Authorization", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", w.Code, w.Body.String())
	}
	var res navigation.StartResult
	decodeData(t, resp, &res)
	id := strconv.FormatInt(res.SessionID, 10)
	update := `{"session_id":` + id + `,"current_latitude":31.0005,"current_longitude":121.0,"heading":0}`

	requests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/ar/navigation/route/" + id, ""},
		{http.MethodPost, "/api/ar/navigation/update", update},
		{http.MethodPost, "/api/ar/navigation/end", `{"session_id":` + id + `}`},
	}
	for _, rq := range requests {
		if w, _ := do(t, router, rq.method, rq.path, rq.body, "Authorization", bob); w.Code != http.StatusNotFound {
			t.Errorf("bob %s %s status = %d, want 404", rq.method, rq.path, w.Code)
		}
	}
	for _, rq := range requests {
		if w, _ := do(t, router, rq.method, rq.path, rq.body, "Authorization", alice); w.Code != http.StatusOK {
			t.Errorf("alice %s %s status = %d, want 200; body: %s", rq.method, rq.path, w.Code, w.Body.String())
		}
	}
}

func TestAuthorizeChannel(t *testing.T) {
	ctx := context.Background()
	srv := authedServer(t)
	res, err := srv.navigation.Start(ctx, navigation.StartRequest{
		UserID: "alice",
		Start:  geo.Point{Lat: baseLat, Lon: baseLon},
		End:    geo.Point{Lat: baseLat + 0.001, Lon: baseLon},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	channel := ChannelNavigationPrefix + strconv.FormatInt(res.SessionID, 10)

	if err := srv.authorizeChannel(ctx, "alice", channel); err != nil {
		t.Errorf("owner denied: %v", err)
	}
	if err := srv.authorizeChannel(ctx, "bob", channel); err == nil {
		t.Error("stranger allowed on another user's navigation channel")
	}
	if err := srv.authorizeChannel(ctx, "bob", ChannelEvents); err != nil {
		t.Errorf("events denied: %v", err)
	}

	open := testServer(t)
	if err := open.authorizeChannel(ctx, "", channel); err != nil {
		t.Errorf("auth disabled should not check owners: %v", err)
	}
}
