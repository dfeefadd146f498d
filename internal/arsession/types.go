package arsession

import "time"

// Session modes.
const (
	ModeGaode = "gaode"
	ModeAR    = "ar"
)

// MethodGeoRay marks scans resolved by the heading/FOV hit test.
const MethodGeoRay = "geo-ray"

// Session is one AR or map session on a device.
type Session struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"userId"`
	Mode           string     `json:"mode"`
	ConversationID *int64     `json:"conversationId"`
	UsedGeoAnchor  bool       `json:"usedGeoAnchor"`
	Device         string     `json:"device"`
	OS             string     `json:"os"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime"`
}

// Ended reports whether the session has been closed.
func (s *Session) Ended() bool { return s.EndTime != nil }

// Scan is one POI hit test made during a session.
type Scan struct {
	ID                 int64     `json:"id"`
	SessionID          int64     `json:"sessionId"`
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	Heading            float64   `json:"heading"`
	Pitch              float64   `json:"pitch"`
	Roll               float64   `json:"roll"`
	FOV                float64   `json:"fov"`
	MatchedPOIID       *int64    `json:"matchedPoiId"`
	Method             string    `json:"method"`
	DistanceM          float64   `json:"distanceM"`
	AngleDeg           float64   `json:"angleDeg"`
	Confidence         float64   `json:"confidence"`
	PhotoURL           string    `json:"photoUrl"`
	ModelVersion       string    `json:"modelVersion"`
	PredictedPOIID     *int64    `json:"predictedPoiId"`
	UserCorrectedPOIID *int64    `json:"userCorrectedPoiId"`
	GmtCreate          time.Time `json:"gmtCreate"`
}
