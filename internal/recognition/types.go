package recognition

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/geo"
)

// Request defaults.
const (
	DefaultUserID = "default_user"
	MaxImageBytes = 10 << 20
)

// Recognition methods written to the log.
const (
	MethodVision = "vision"
	MethodGeoRay = "geo-ray"
)

// Model tasks.
const (
	TaskLandmarkCls = "landmark_cls"
	TaskTextOCR     = "text_ocr"
)

// ValidTask reports whether task is a known model task.
func ValidTask(task string) bool {
	return task == TaskLandmarkCls || task == TaskTextOCR
}

// Image is an uploaded camera frame.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// SHA256 returns the hex digest of the image bytes.
func (i Image) SHA256() string {
	sum := sha256.Sum256(i.Data)
	return hex.EncodeToString(sum[:])
}

// Pose is where the device was and which way it faced.
type Pose struct {
	Position geo.Point `json:"position"`
	Heading  float64   `json:"heading"`
}

// Input is what a Recognizer receives.
type Input struct {
	Image        Image
	Pose         Pose
	ModelVersion string
}

// Result is what a Recognizer returns. BuildingID is nil when nothing
// was recognized.
type Result struct {
	BuildingID   *int64          `json:"building_id"`
	BuildingName string          `json:"building_name"`
	Confidence   float64         `json:"confidence"`
	ModelVersion string          `json:"model_version"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Request is one recognition upload.
type Request struct {
	Image              Image
	Pose               Pose
	UserID             string
	SessionID          int64
	LightingConditions *string
	WeatherConditions  *string
}

// Outcome is returned to the client. Building is nil when the recognized
// ID is unknown locally or nothing matched.
type Outcome struct {
	RecognitionID    int64              `json:"recognition_id"`
	Method           string             `json:"method"`
	BuildingID       *int64             `json:"building_id"`
	BuildingName     string             `json:"building_name"`
	Confidence       float64            `json:"confidence"`
	ModelVersion     string             `json:"model_version,omitempty"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	Building         *building.Building `json:"building"`
}

// Matched reports whether a building was recognized.
func (o *Outcome) Matched() bool { return o.BuildingID != nil }

// Log is one recognition attempt (table ar_recognition_logs).
type Log struct {
	ID                   int64          `json:"id"`
	SessionID            int64          `json:"session_id"`
	UserID               string         `json:"user_id"`
	ImageURL             *string        `json:"image_url"`
	ImageSHA256          string         `json:"image_sha256"`
	RecognizedBuildingID *int64         `json:"recognized_building_id"`
	ConfidenceScore      *float64       `json:"confidence_score"`
	RecognitionMethod    string         `json:"recognition_method"`
	ProcessingTimeMs     int64          `json:"processing_time_ms"`
	DeviceOrientation    map[string]any `json:"device_orientation"`
	LightingConditions   *string        `json:"lighting_conditions"`
	WeatherConditions    *string        `json:"weather_conditions"`
	RecognitionResult    map[string]any `json:"recognition_result"`
	IsCorrect            *bool          `json:"is_correct"`
	UserFeedback         *string        `json:"user_feedback"`
	GmtCreate            time.Time      `json:"gmt_create"`
}

// ModelVersion is a registered recognition model (table ml_model_versions).
type ModelVersion struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Task      string         `json:"task"`
	Metrics   map[string]any `json:"metrics"`
	FileURL   string         `json:"file_url"`
	IsActive  bool           `json:"is_active"`
	GmtCreate time.Time      `json:"gmt_create"`
}
