package recognition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for recognition logs and model versions.
type Repository interface {
	CreateLog(ctx context.Context, l *Log) error
	GetLog(ctx context.Context, id int64) (*Log, error)
	SetFeedback(ctx context.Context, id int64, isCorrect bool, feedback *string) error
	ListLogs(ctx context.Context, userID string, limit int) ([]Log, error)

	CreateModel(ctx context.Context, m *ModelVersion) error
	GetModel(ctx context.Context, id int64) (*ModelVersion, error)
	ListModels(ctx context.Context, task string) ([]ModelVersion, error)
	ActiveModel(ctx context.Context, task string) (*ModelVersion, error)
	ActivateModel(ctx context.Context, id int64) (*ModelVersion, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed recognition repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const logColumns = `id, session_id, user_id, image_url, image_sha256, recognized_building_id,
	confidence_score, recognition_method, processing_time_ms, device_orientation,
	lighting_conditions, weather_conditions, recognition_result, is_correct, user_feedback,
	gmt_create`

// CreateLog inserts a recognition log entry.
func (r *SQLiteRepository) CreateLog(ctx context.Context, l *Log) error {
	if l.RecognitionMethod == "" {
		l.RecognitionMethod = MethodVision
	}
	if l.RecognitionResult == nil {
		l.RecognitionResult = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)

	var orientation sql.NullString
	if l.DeviceOrientation != nil {
		orientation = sql.NullString{String: database.EncodeJSON(l.DeviceOrientation), Valid: true}
	}

	const query = `INSERT INTO ar_recognition_logs
		(session_id, user_id, image_url, image_sha256, recognized_building_id, confidence_score,
		 recognition_method, processing_time_ms, device_orientation, lighting_conditions,
		 weather_conditions, recognition_result, is_correct, user_feedback, gmt_create)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		l.SessionID, l.UserID, database.NullString(l.ImageURL), l.ImageSHA256,
		database.NullInt(l.RecognizedBuildingID), database.NullFloat(l.ConfidenceScore),
		l.RecognitionMethod, l.ProcessingTimeMs, orientation,
		database.NullString(l.LightingConditions), database.NullString(l.WeatherConditions),
		database.EncodeJSON(l.RecognitionResult), nullBool(l.IsCorrect),
		database.NullString(l.UserFeedback), database.FormatTime(now))
	if err != nil {
		return fmt.Errorf("inserting recognition log: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading recognition log id: %w", err)
	}
	l.GmtCreate = now
	return nil
}

// GetLog returns a recognition log entry by ID.
func (r *SQLiteRepository) GetLog(ctx context.Context, id int64) (*Log, error) {
	return scanLog(r.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM ar_recognition_logs WHERE id = ?`, id))
}

// SetFeedback records whether the user confirmed the recognition.
func (r *SQLiteRepository) SetFeedback(ctx context.Context, id int64, isCorrect bool, feedback *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ar_recognition_logs SET is_correct = ?, user_feedback = ? WHERE id = ?`,
		database.BoolToInt(isCorrect), database.NullString(feedback), id)
	if err != nil {
		return fmt.Errorf("updating recognition feedback %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrLogNotFound
	}
	return nil
}

// ListLogs returns a user's recognition attempts, newest first.
func (r *SQLiteRepository) ListLogs(ctx context.Context, userID string, limit int) ([]Log, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+logColumns+` FROM ar_recognition_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recognition logs: %w", err)
	}
	defer rows.Close()

	result := []Log{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recognition logs: %w", err)
	}
	return result, nil
}

const modelColumns = `id, name, version, task, metrics, file_url, is_active, gmt_create`

// CreateModel registers an inactive model version.
func (r *SQLiteRepository) CreateModel(ctx context.Context, m *ModelVersion) error {
	if !ValidTask(m.Task) {
		return fmt.Errorf("%w: %q", ErrInvalidTask, m.Task)
	}
	if m.Metrics == nil {
		m.Metrics = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ml_model_versions (name, version, task, metrics, file_url, is_active, gmt_create)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		m.Name, m.Version, m.Task, database.EncodeJSON(m.Metrics), m.FileURL, database.FormatTime(now))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrModelExists
		}
		return fmt.Errorf("inserting model version: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading model version id: %w", err)
	}
	m.IsActive = false
	m.GmtCreate = now
	return nil
}

// GetModel returns a model version by ID.
func (r *SQLiteRepository) GetModel(ctx context.Context, id int64) (*ModelVersion, error) {
	return scanModel(r.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM ml_model_versions WHERE id = ?`, id))
}

// ListModels returns model versions, optionally filtered by task, newest first.
func (r *SQLiteRepository) ListModels(ctx context.Context, task string) ([]ModelVersion, error) {
	query := `SELECT ` + modelColumns + ` FROM ml_model_versions`
	var args []any
	if task != "" {
		query += ` WHERE task = ?`
		args = append(args, task)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying model versions: %w", err)
	}
	defer rows.Close()

	result := []ModelVersion{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model versions: %w", err)
	}
	return result, nil
}

// ActiveModel returns the active version for a task.
func (r *SQLiteRepository) ActiveModel(ctx context.Context, task string) (*ModelVersion, error) {
	return scanModel(r.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM ml_model_versions WHERE task = ? AND is_active = 1
		 ORDER BY id DESC LIMIT 1`, task))
}

// ActivateModel makes id the only active version of its task.
func (r *SQLiteRepository) ActivateModel(ctx context.Context, id int64) (*ModelVersion, error) {
	var m *ModelVersion
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		m, err = scanModel(tx.QueryRowContext(ctx,
			`SELECT `+modelColumns+` FROM ml_model_versions WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ml_model_versions SET is_active = 0 WHERE task = ? AND id != ?`, m.Task, id); err != nil {
			return fmt.Errorf("deactivating %s models: %w", m.Task, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ml_model_versions SET is_active = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("activating model %d: %w", id, err)
		}
		m.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(s scanner) (*Log, error) {
	var l Log
	var imageURL, sha, orientation, lighting, weather, feedback sql.NullString
	var buildingID, processing, correct sql.NullInt64
	var confidence sql.NullFloat64
	var result, created string
	err := s.Scan(&l.ID, &l.SessionID, &l.UserID, &imageURL, &sha, &buildingID, &confidence,
		&l.RecognitionMethod, &processing, &orientation, &lighting, &weather, &result, &correct,
		&feedback, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("scanning recognition log: %w", err)
	}
	l.ImageURL = database.StringPtr(imageURL)
	l.ImageSHA256 = sha.String
	l.RecognizedBuildingID = database.IntPtr(buildingID)
	l.ConfidenceScore = database.FloatPtr(confidence)
	l.ProcessingTimeMs = processing.Int64
	if orientation.Valid {
		l.DeviceOrientation = database.DecodeMap(orientation.String)
	}
	l.LightingConditions = database.StringPtr(lighting)
	l.WeatherConditions = database.StringPtr(weather)
	l.RecognitionResult = database.DecodeMap(result)
	if correct.Valid {
		v := correct.Int64 != 0
		l.IsCorrect = &v
	}
	l.UserFeedback = database.StringPtr(feedback)
	l.GmtCreate = database.ParseTime(created)
	return &l, nil
}

func scanModel(s scanner) (*ModelVersion, error) {
	var m ModelVersion
	var metrics, created string
	var active int
	err := s.Scan(&m.ID, &m.Name, &m.Version, &m.Task, &metrics, &m.FileURL, &active, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("scanning model version: %w", err)
	}
	m.Metrics = database.DecodeMap(metrics)
	m.IsActive = active != 0
	m.GmtCreate = database.ParseTime(created)
	return &m, nil
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(database.BoolToInt(*b)), Valid: true}
}
