package navigation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for navigation routes, sessions and history.
type Repository interface {
	CreateRoute(ctx context.Context, rt *Route) error
	GetRoute(ctx context.Context, id int64) (*Route, error)

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id int64) (*Session, error)
	UpdatePosition(ctx context.Context, id int64, pos geo.Point, pose Pose) (*Session, error)
	EndSession(ctx context.Context, id int64, finish func(*Session) History) (*History, error)
	CountActive(ctx context.Context) (int, error)

	ListHistory(ctx context.Context, userID string, limit int) ([]History, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed navigation repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// sessionData is the JSON stored in user_ar_sessions.session_data.
type sessionData struct {
	RouteType    string  `json:"route_type"`
	RouteID      int64   `json:"route_id"`
	EndLatitude  float64 `json:"end_latitude"`
	EndLongitude float64 `json:"end_longitude"`
}

// CreateRoute inserts a planned route.
func (r *SQLiteRepository) CreateRoute(ctx context.Context, rt *Route) error {
	if rt.DifficultyLevel == 0 {
		rt.DifficultyLevel = 1
	}
	rt.GmtCreate = r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(rt.GmtCreate)

	const query = `INSERT INTO navigation_routes
		(route_name, start_building_id, end_building_id, start_latitude, start_longitude,
		 end_latitude, end_longitude, route_type, distance_meters, estimated_time_seconds,
		 route_data, waypoints, difficulty_level, is_accessible, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		rt.RouteName, database.NullInt(rt.StartBuildingID), database.NullInt(rt.EndBuildingID),
		rt.Start.Lat, rt.Start.Lon, rt.End.Lat, rt.End.Lon, rt.RouteType,
		rt.DistanceMeters, rt.EstimatedTimeSeconds,
		database.EncodeJSON(rt.RouteData), database.EncodeJSONArray(rt.Waypoints),
		rt.DifficultyLevel, database.BoolToInt(rt.IsAccessible), ts, ts)
	if err != nil {
		return fmt.Errorf("inserting navigation route: %w", err)
	}
	if rt.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading navigation route id: %w", err)
	}
	return nil
}

// GetRoute returns a route by ID.
func (r *SQLiteRepository) GetRoute(ctx context.Context, id int64) (*Route, error) {
	const query = `SELECT id, route_name, start_building_id, end_building_id,
		start_latitude, start_longitude, end_latitude, end_longitude, route_type,
		distance_meters, estimated_time_seconds, route_data, waypoints, difficulty_level,
		is_accessible, gmt_create
		FROM navigation_routes WHERE id = ?`

	var rt Route
	var startB, endB, dist, eta sql.NullInt64
	var data, waypoints, created string
	var accessible int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rt.ID, &rt.RouteName, &startB, &endB,
		&rt.Start.Lat, &rt.Start.Lon, &rt.End.Lat, &rt.End.Lon, &rt.RouteType,
		&dist, &eta, &data, &waypoints, &rt.DifficultyLevel, &accessible, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("scanning navigation route: %w", err)
	}
	rt.StartBuildingID = database.IntPtr(startB)
	rt.EndBuildingID = database.IntPtr(endB)
	rt.DistanceMeters = dist.Int64
	rt.EstimatedTimeSeconds = eta.Int64
	if err := database.DecodeInto(data, &rt.RouteData); err != nil {
		return nil, fmt.Errorf("decoding route data %d: %w", id, err)
	}
	if err := database.DecodeInto(waypoints, &rt.Waypoints); err != nil {
		return nil, fmt.Errorf("decoding waypoints %d: %w", id, err)
	}
	rt.IsAccessible = accessible != 0
	rt.GmtCreate = database.ParseTime(created)
	return &rt, nil
}

const sessionColumns = `id, user_id, session_type, start_latitude, start_longitude,
	current_latitude, current_longitude, heading_degrees, pitch_degrees, roll_degrees,
	device_info, session_data, is_active, started_at, ended_at`

// CreateSession inserts an active session positioned at its start point.
func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	if s.SessionType == "" {
		s.SessionType = SessionTypeNavigation
	}
	s.StartedAt = r.now().UTC().Truncate(time.Second)
	s.Current = s.Start
	s.IsActive = true
	ts := database.FormatTime(s.StartedAt)

	data := sessionData{
		RouteType: s.RouteType, RouteID: s.RouteID,
		EndLatitude: s.End.Lat, EndLongitude: s.End.Lon,
	}

	const query = `INSERT INTO user_ar_sessions
		(user_id, session_type, start_latitude, start_longitude, current_latitude,
		 current_longitude, heading_degrees, pitch_degrees, roll_degrees, device_info,
		 session_data, is_active, started_at, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		s.UserID, s.SessionType, s.Start.Lat, s.Start.Lon, s.Current.Lat, s.Current.Lon,
		s.Pose.Heading, s.Pose.Pitch, s.Pose.Roll, database.EncodeJSON(s.DeviceInfo),
		database.EncodeJSON(data), ts, ts, ts)
	if err != nil {
		return fmt.Errorf("inserting navigation session: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading navigation session id: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (r *SQLiteRepository) GetSession(ctx context.Context, id int64) (*Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_ar_sessions WHERE id = ?`, id))
}

// CountActive returns the number of sessions not yet ended.
func (r *SQLiteRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_ar_sessions WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return n, nil
}

// UpdatePosition stores the latest position and pose of an active session.
func (r *SQLiteRepository) UpdatePosition(ctx context.Context, id int64, pos geo.Point, pose Pose) (*Session, error) {
	var s *Session
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		s, err = scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM user_ar_sessions WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if !s.IsActive {
			return ErrSessionEnded
		}

		const query = `UPDATE user_ar_sessions SET current_latitude = ?, current_longitude = ?,
			heading_degrees = ?, pitch_degrees = ?, roll_degrees = ?, gmt_modified = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, pos.Lat, pos.Lon, pose.Heading, pose.Pitch,
			pose.Roll, database.FormatTime(r.now()), id); err != nil {
			return fmt.Errorf("updating navigation session %d: %w", id, err)
		}
		s.Current = pos
		s.Pose = pose
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// EndSession marks an active session inactive and writes the history entry
// built by finish, atomically. finish runs inside the transaction and must
// not touch the database.
func (r *SQLiteRepository) EndSession(ctx context.Context, id int64, finish func(*Session) History) (*History, error) {
	var h History
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM user_ar_sessions WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if !s.IsActive {
			return ErrSessionEnded
		}

		end := r.now().UTC().Truncate(time.Second)
		s.EndedAt = &end
		s.IsActive = false
		ts := database.FormatTime(end)

		if _, err := tx.ExecContext(ctx,
			`UPDATE user_ar_sessions SET is_active = 0, ended_at = ?, gmt_modified = ? WHERE id = ?`,
			ts, ts, id); err != nil {
			return fmt.Errorf("ending navigation session %d: %w", id, err)
		}

		h = finish(s)
		h.SessionID = s.ID
		h.UserID = s.UserID
		h.StartTime = s.StartedAt
		h.EndTime = &end
		h.GmtCreate = end

		const query = `INSERT INTO navigation_history
			(session_id, user_id, route_id, start_time, end_time, total_distance_meters,
			 actual_duration_seconds, navigation_points, user_rating, user_feedback,
			 completion_status, gmt_create)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query,
			h.SessionID, h.UserID, database.NullInt(h.RouteID), database.FormatTime(h.StartTime),
			ts, database.NullInt(h.TotalDistanceMeters), database.NullInt(h.ActualDurationSeconds),
			database.EncodeJSONArray(h.NavigationPoints), database.NullInt(h.UserRating),
			database.NullString(h.UserFeedback), h.CompletionStatus, ts)
		if err != nil {
			return fmt.Errorf("inserting navigation history: %w", err)
		}
		if h.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading navigation history id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHistory returns a user's finished navigations, newest first.
func (r *SQLiteRepository) ListHistory(ctx context.Context, userID string, limit int) ([]History, error) {
	const query = `SELECT id, session_id, user_id, route_id, start_time, end_time,
		total_distance_meters, actual_duration_seconds, navigation_points, user_rating,
		user_feedback, completion_status, gmt_create
		FROM navigation_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying navigation history: %w", err)
	}
	defer rows.Close()

	result := []History{}
	for rows.Next() {
		var h History
		var routeID, dist, dur, rating sql.NullInt64
		var endTime, feedback sql.NullString
		var start, points, created string
		if err := rows.Scan(&h.ID, &h.SessionID, &h.UserID, &routeID, &start, &endTime,
			&dist, &dur, &points, &rating, &feedback, &h.CompletionStatus, &created); err != nil {
			return nil, fmt.Errorf("scanning navigation history: %w", err)
		}
		h.RouteID = database.IntPtr(routeID)
		h.StartTime = database.ParseTime(start)
		h.EndTime = database.ParseNullTime(endTime)
		h.TotalDistanceMeters = database.IntPtr(dist)
		h.ActualDurationSeconds = database.IntPtr(dur)
		h.UserRating = database.IntPtr(rating)
		h.UserFeedback = database.StringPtr(feedback)
		h.GmtCreate = database.ParseTime(created)
		if err := database.DecodeInto(points, &h.NavigationPoints); err != nil {
			return nil, fmt.Errorf("decoding navigation points %d: %w", h.ID, err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating navigation history: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*Session, error) {
	var sess Session
	var startLat, startLon, curLat, curLon, heading, pitch, roll sql.NullFloat64
	var device, data, started string
	var ended sql.NullString
	var active int
	err := s.Scan(&sess.ID, &sess.UserID, &sess.SessionType, &startLat, &startLon,
		&curLat, &curLon, &heading, &pitch, &roll, &device, &data, &active, &started, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning navigation session: %w", err)
	}
	sess.Start = geo.Point{Lat: startLat.Float64, Lon: startLon.Float64}
	sess.Current = geo.Point{Lat: curLat.Float64, Lon: curLon.Float64}
	sess.Pose = Pose{Heading: heading.Float64, Pitch: pitch.Float64, Roll: roll.Float64}
	sess.DeviceInfo = database.DecodeMap(device)
	sess.IsActive = active != 0
	sess.StartedAt = database.ParseTime(started)
	sess.EndedAt = database.ParseNullTime(ended)

	var sd sessionData
	if err := database.DecodeInto(data, &sd); err != nil {
		return nil, fmt.Errorf("decoding session data %d: %w", sess.ID, err)
	}
	sess.RouteType = sd.RouteType
	sess.RouteID = sd.RouteID
	sess.End = geo.Point{Lat: sd.EndLatitude, Lon: sd.EndLongitude}
	return &sess, nil
}
