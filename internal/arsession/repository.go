package arsession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for AR sessions and scans.
type Repository interface {
	Start(ctx context.Context, s *Session) error
	Get(ctx context.Context, id int64) (*Session, error)
	End(ctx context.Context, id int64) (*Session, error)

	RecordScan(ctx context.Context, sc *Scan) error
	ListScans(ctx context.Context, sessionID int64) ([]Scan, error)
	CorrectScan(ctx context.Context, scanID, poiID int64) (*Scan, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const sessionColumns = `id, user_id, mode, conversation_id, used_geo_anchor, device, os, start_time, end_time`

// Start inserts a new open session.
func (r *SQLiteRepository) Start(ctx context.Context, s *Session) error {
	if s.Mode == "" {
		s.Mode = ModeGaode
	}
	s.StartTime = r.now().UTC().Truncate(time.Second)
	s.EndTime = nil

	const query = `INSERT INTO ar_sessions
		(user_id, mode, conversation_id, used_geo_anchor, device, os, start_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		s.UserID, s.Mode, database.NullInt(s.ConversationID), database.BoolToInt(s.UsedGeoAnchor),
		s.Device, s.OS, database.FormatTime(s.StartTime))
	if err != nil {
		return fmt.Errorf("inserting ar session: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading ar session id: %w", err)
	}
	return nil
}

// Get returns a session by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM ar_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// End closes a session. Ending twice returns ErrSessionEnded.
func (r *SQLiteRepository) End(ctx context.Context, id int64) (*Session, error) {
	var s *Session
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		s, err = scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM ar_sessions WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if s.Ended() {
			return ErrSessionEnded
		}
		end := r.now().UTC().Truncate(time.Second)
		if _, err := tx.ExecContext(ctx, `UPDATE ar_sessions SET end_time = ? WHERE id = ?`,
			database.FormatTime(end), id); err != nil {
			return fmt.Errorf("ending ar session %d: %w", id, err)
		}
		s.EndTime = &end
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

const scanColumns = `id, session_id, lat, lon, heading, pitch, roll, fov, matched_poi_id, method,
	distance_m, angle_deg, confidence, photo_url, model_version, predicted_poi_id,
	user_corrected_poi_id, gmt_create`

// RecordScan stores one hit-test result. The session must exist and be open.
func (r *SQLiteRepository) RecordScan(ctx context.Context, sc *Scan) error {
	if sc.Method == "" {
		sc.Method = MethodGeoRay
	}
	sc.GmtCreate = r.now().UTC().Truncate(time.Second)

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var endTime sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT end_time FROM ar_sessions WHERE id = ?`, sc.SessionID).Scan(&endTime)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("checking ar session %d: %w", sc.SessionID, err)
		}
		if endTime.Valid {
			return ErrSessionEnded
		}

		const query = `INSERT INTO ar_poi_scans
			(session_id, lat, lon, heading, pitch, roll, fov, matched_poi_id, method,
			 distance_m, angle_deg, confidence, photo_url, model_version, predicted_poi_id, gmt_create)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query,
			sc.SessionID, sc.Lat, sc.Lon, sc.Heading, sc.Pitch, sc.Roll, sc.FOV,
			database.NullInt(sc.MatchedPOIID), sc.Method, sc.DistanceM, sc.AngleDeg, sc.Confidence,
			sc.PhotoURL, sc.ModelVersion, database.NullInt(sc.PredictedPOIID),
			database.FormatTime(sc.GmtCreate))
		if err != nil {
			return fmt.Errorf("inserting poi scan: %w", err)
		}
		if sc.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading poi scan id: %w", err)
		}
		return nil
	})
}

// ListScans returns a session's scans, oldest first.
func (r *SQLiteRepository) ListScans(ctx context.Context, sessionID int64) ([]Scan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM ar_poi_scans WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying poi scans: %w", err)
	}
	defer rows.Close()

	result := []Scan{}
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poi scans: %w", err)
	}
	return result, nil
}

// CorrectScan records the POI the user says they were actually looking at.
func (r *SQLiteRepository) CorrectScan(ctx context.Context, scanID, poiID int64) (*Scan, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ar_poi_scans SET user_corrected_poi_id = ? WHERE id = ?`, poiID, scanID)
	if err != nil {
		return nil, fmt.Errorf("correcting poi scan %d: %w", scanID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrScanNotFound
	}
	return scanScan(r.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM ar_poi_scans WHERE id = ?`, scanID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*Session, error) {
	var sess Session
	var convID sql.NullInt64
	var geoAnchor int
	var start string
	var end sql.NullString
	err := s.Scan(&sess.ID, &sess.UserID, &sess.Mode, &convID, &geoAnchor,
		&sess.Device, &sess.OS, &start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning ar session: %w", err)
	}
	sess.ConversationID = database.IntPtr(convID)
	sess.UsedGeoAnchor = geoAnchor != 0
	sess.StartTime = database.ParseTime(start)
	sess.EndTime = database.ParseNullTime(end)
	return &sess, nil
}

func scanScan(s scanner) (*Scan, error) {
	var sc Scan
	var matched, predicted, corrected sql.NullInt64
	var created string
	err := s.Scan(&sc.ID, &sc.SessionID, &sc.Lat, &sc.Lon, &sc.Heading, &sc.Pitch, &sc.Roll,
		&sc.FOV, &matched, &sc.Method, &sc.DistanceM, &sc.AngleDeg, &sc.Confidence,
		&sc.PhotoURL, &sc.ModelVersion, &predicted, &corrected, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("scanning poi scan: %w", err)
	}
	sc.MatchedPOIID = database.IntPtr(matched)
	sc.PredictedPOIID = database.IntPtr(predicted)
	sc.UserCorrectedPOIID = database.IntPtr(corrected)
	sc.GmtCreate = database.ParseTime(created)
	return &sc, nil
}
