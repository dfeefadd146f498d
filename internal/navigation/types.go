package navigation

import (
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/route"
)

// SessionTypeNavigation is the session_type of navigation sessions.
const SessionTypeNavigation = "navigation"

// Completion statuses written to history.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// Arrow directions shown by the AR overlay.
const (
	ArrowForward = "forward"
	ArrowRight   = "right"
	ArrowBack    = "back"
	ArrowLeft    = "left"
)

// Pose is the device orientation in degrees.
type Pose struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
}

// Session is a navigation session (table user_ar_sessions).
type Session struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"user_id"`
	SessionType string         `json:"session_type"`
	Start       geo.Point      `json:"start"`
	Current     geo.Point      `json:"current"`
	Pose        Pose           `json:"pose"`
	DeviceInfo  map[string]any `json:"device_info"`
	RouteID     int64          `json:"route_id"`
	RouteType   string         `json:"route_type"`
	End         geo.Point      `json:"end"`
	IsActive    bool           `json:"is_active"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at"`
}

// Route is a planned navigation route (table navigation_routes).
type Route struct {
	ID                   int64            `json:"id"`
	RouteName            string           `json:"route_name"`
	StartBuildingID      *int64           `json:"start_building_id"`
	EndBuildingID        *int64           `json:"end_building_id"`
	Start                geo.Point        `json:"start"`
	End                  geo.Point        `json:"end"`
	RouteType            string           `json:"route_type"`
	DistanceMeters       int64            `json:"distance_meters"`
	EstimatedTimeSeconds int64            `json:"estimated_time_seconds"`
	RouteData            route.Directions `json:"route_data"`
	Waypoints            []geo.Point      `json:"waypoints"`
	DifficultyLevel      int              `json:"difficulty_level"`
	IsAccessible         bool             `json:"is_accessible"`
	GmtCreate            time.Time        `json:"gmt_create"`
}

// History is a finished navigation (table navigation_history).
type History struct {
	ID                    int64       `json:"id"`
	SessionID             int64       `json:"session_id"`
	UserID                string      `json:"user_id"`
	RouteID               *int64      `json:"route_id"`
	StartTime             time.Time   `json:"start_time"`
	EndTime               *time.Time  `json:"end_time"`
	TotalDistanceMeters   *int64      `json:"total_distance_meters"`
	ActualDurationSeconds *int64      `json:"actual_duration_seconds"`
	NavigationPoints      []geo.Point `json:"navigation_points"`
	UserRating            *int64      `json:"user_rating"`
	UserFeedback          *string     `json:"user_feedback"`
	CompletionStatus      string      `json:"completion_status"`
	GmtCreate             time.Time   `json:"gmt_create"`
}

// StartRequest opens a navigation session.
type StartRequest struct {
	UserID     string
	Start      geo.Point
	End        geo.Point
	RouteType  string
	DeviceInfo map[string]any
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID     int64       `json:"session_id"`
	RouteID       int64       `json:"route_id"`
	StartPoint    geo.Point   `json:"start_point"`
	EndPoint      geo.Point   `json:"end_point"`
	RouteType     string      `json:"route_type"`
	TotalDistance int64       `json:"total_distance"`
	EstimatedTime int64       `json:"estimated_time"`
	Waypoints     []geo.Point `json:"waypoints"`
	Provider      string      `json:"provider"`
}

// RouteStatus is returned by Route.
type RouteStatus struct {
	SessionID             int64     `json:"session_id"`
	CurrentPosition       geo.Point `json:"current_position"`
	Heading               float64   `json:"heading"`
	NextInstruction       string    `json:"next_instruction"`
	DistanceToDestination float64   `json:"distance_to_destination"`
	EstimatedTime         int64     `json:"estimated_time"`
	IsActive              bool      `json:"is_active"`
}

// UpdateRequest reports a new device position and pose.
type UpdateRequest struct {
	SessionID int64
	UserID    string // when set, must own the session
	Position  geo.Point
	Pose      Pose
}

// Instruction is returned by Update.
type Instruction struct {
	SessionID             int64     `json:"session_id"`
	CurrentPosition       geo.Point `json:"current_position"`
	Heading               float64   `json:"heading"`
	NextInstruction       string    `json:"next_instruction"`
	DistanceToNext        float64   `json:"distance_to_next"`
	DistanceToDestination float64   `json:"distance_to_destination"`
	ArrowDirection        string    `json:"arrow_direction"`
	Arrived               bool      `json:"arrived"`
}

// EndRequest closes a session.
type EndRequest struct {
	SessionID int64
	UserID    string // when set, must own the session
	Rating    *int64
	Feedback  *string
}
