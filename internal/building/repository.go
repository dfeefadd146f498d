package building

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for buildings, landmarks and features.
type Repository interface {
	Create(ctx context.Context, b *Building) error
	Get(ctx context.Context, id int64) (*Building, error)
	Update(ctx context.Context, b *Building) error
	Delete(ctx context.Context, id int64) error
	InBox(ctx context.Context, box geo.BoundingBox) ([]Building, error)
	Nearby(ctx context.Context, center geo.Point, radiusM float64, limit int) ([]Nearby, error)

	CreateLandmark(ctx context.Context, l *Landmark) error
	ListLandmarks(ctx context.Context, buildingID int64) ([]Landmark, error)

	CreateFeature(ctx context.Context, f *Feature) error
	ListFeatures(ctx context.Context, buildingID int64) ([]Feature, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed building repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const buildingColumns = `id, name, description, latitude, longitude, address, building_type,
	floor_count, year_built, architect, style, features, images, is_landmark, popularity_score,
	gmt_create, gmt_modified`

// Create inserts a building.
func (r *SQLiteRepository) Create(ctx context.Context, b *Building) error {
	if b.BuildingType == "" {
		b.BuildingType = DefaultType
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	const query = `INSERT INTO buildings
		(name, description, latitude, longitude, address, building_type, floor_count,
		 year_built, architect, style, features, images, is_landmark, popularity_score,
		 gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		b.Name, database.NullString(b.Description), b.Latitude, b.Longitude, b.Address,
		b.BuildingType, b.FloorCount, database.NullInt(b.YearBuilt),
		database.NullString(b.Architect), database.NullString(b.Style),
		database.EncodeJSON(b.Features), database.EncodeJSON(b.Images),
		database.BoolToInt(b.IsLandmark), b.PopularityScore, ts, ts)
	if err != nil {
		return fmt.Errorf("inserting building: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading building id: %w", err)
	}
	b.GmtCreate, b.GmtModified = now, now
	normalizeMaps(b)
	return nil
}

// Get returns a building by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Building, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = ?`, id)
	return scanBuilding(row)
}

// Update overwrites every mutable column of b.
func (r *SQLiteRepository) Update(ctx context.Context, b *Building) error {
	now := r.now().UTC().Truncate(time.Second)

	const query = `UPDATE buildings SET
		name = ?, description = ?, latitude = ?, longitude = ?, address = ?, building_type = ?,
		floor_count = ?, year_built = ?, architect = ?, style = ?, features = ?, images = ?,
		is_landmark = ?, popularity_score = ?, gmt_modified = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		b.Name, database.NullString(b.Description), b.Latitude, b.Longitude, b.Address,
		b.BuildingType, b.FloorCount, database.NullInt(b.YearBuilt),
		database.NullString(b.Architect), database.NullString(b.Style),
		database.EncodeJSON(b.Features), database.EncodeJSON(b.Images),
		database.BoolToInt(b.IsLandmark), b.PopularityScore, database.FormatTime(now), b.ID)
	if err != nil {
		return fmt.Errorf("updating building %d: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrBuildingNotFound
	}
	b.GmtModified = now
	normalizeMaps(b)
	return nil
}

// Delete removes a building; landmarks and features cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM buildings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting building %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrBuildingNotFound
	}
	return nil
}

// InBox returns buildings inside a bounding box.
func (r *SQLiteRepository) InBox(ctx context.Context, box geo.BoundingBox) ([]Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("querying buildings: %w", err)
	}
	defer rows.Close()

	var result []Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buildings: %w", err)
	}
	return result, nil
}

// Nearby returns up to limit buildings within radiusM of center, nearest first.
func (r *SQLiteRepository) Nearby(ctx context.Context, center geo.Point, radiusM float64, limit int) ([]Nearby, error) {
	candidates, err := r.InBox(ctx, geo.BoxAround(center, radiusM))
	if err != nil {
		return nil, err
	}

	result := []Nearby{}
	for _, b := range candidates {
		d := geo.Distance(center, b.Point())
		if d <= radiusM {
			result = append(result, Nearby{Building: b, Distance: d})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Distance < result[j].Distance })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

const landmarkColumns = `id, building_id, landmark_name, landmark_type, ar_anchor_id,
	position_x, position_y, position_z, rotation_x, rotation_y, rotation_z,
	scale_x, scale_y, scale_z, is_active, gmt_create, gmt_modified`

// CreateLandmark inserts an AR landmark. A zero scale is stored as 1.
func (r *SQLiteRepository) CreateLandmark(ctx context.Context, l *Landmark) error {
	if l.LandmarkType == "" {
		l.LandmarkType = DefaultLandmarkType
	}
	if l.Scale == (Vector3{}) {
		l.Scale = Vector3{X: 1, Y: 1, Z: 1}
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	var px, py, pz sql.NullFloat64
	if l.Position != nil {
		px = sql.NullFloat64{Float64: l.Position.X, Valid: true}
		py = sql.NullFloat64{Float64: l.Position.Y, Valid: true}
		pz = sql.NullFloat64{Float64: l.Position.Z, Valid: true}
	}

	query := `INSERT INTO ar_landmarks (` + strings.TrimPrefix(landmarkColumns, "id, ") + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		l.BuildingID, l.LandmarkName, l.LandmarkType, database.NullString(l.ARAnchorID),
		px, py, pz, l.Rotation.X, l.Rotation.Y, l.Rotation.Z,
		l.Scale.X, l.Scale.Y, l.Scale.Z, database.BoolToInt(l.IsActive), ts, ts)
	if err != nil {
		return fmt.Errorf("inserting landmark: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading landmark id: %w", err)
	}
	l.GmtCreate, l.GmtModified = now, now
	return nil
}

// ListLandmarks returns the active and inactive landmarks of a building.
func (r *SQLiteRepository) ListLandmarks(ctx context.Context, buildingID int64) ([]Landmark, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+landmarkColumns+` FROM ar_landmarks WHERE building_id = ? ORDER BY id`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("querying landmarks: %w", err)
	}
	defer rows.Close()

	result := []Landmark{}
	for rows.Next() {
		var l Landmark
		var anchor sql.NullString
		var px, py, pz sql.NullFloat64
		var active int
		var created, modified string
		if err := rows.Scan(&l.ID, &l.BuildingID, &l.LandmarkName, &l.LandmarkType, &anchor,
			&px, &py, &pz, &l.Rotation.X, &l.Rotation.Y, &l.Rotation.Z,
			&l.Scale.X, &l.Scale.Y, &l.Scale.Z, &active, &created, &modified); err != nil {
			return nil, fmt.Errorf("scanning landmark: %w", err)
		}
		l.ARAnchorID = database.StringPtr(anchor)
		if px.Valid && py.Valid && pz.Valid {
			l.Position = &Vector3{X: px.Float64, Y: py.Float64, Z: pz.Float64}
		}
		l.IsActive = active != 0
		l.GmtCreate = database.ParseTime(created)
		l.GmtModified = database.ParseTime(modified)
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating landmarks: %w", err)
	}
	return result, nil
}

// CreateFeature inserts a recognition feature.
func (r *SQLiteRepository) CreateFeature(ctx context.Context, f *Feature) error {
	now := r.now().UTC().Truncate(time.Second)
	if f.FeatureData == nil {
		f.FeatureData = map[string]any{}
	}

	const query = `INSERT INTO building_features
		(building_id, feature_type, feature_data, model_version, confidence_score, gmt_create)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		f.BuildingID, f.FeatureType, database.EncodeJSON(f.FeatureData),
		database.NullString(f.ModelVersion), database.NullFloat(f.ConfidenceScore),
		database.FormatTime(now))
	if err != nil {
		return fmt.Errorf("inserting building feature: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading building feature id: %w", err)
	}
	f.GmtCreate = now
	return nil
}

// ListFeatures returns the features stored for a building.
func (r *SQLiteRepository) ListFeatures(ctx context.Context, buildingID int64) ([]Feature, error) {
	const query = `SELECT id, building_id, feature_type, feature_data, model_version,
		confidence_score, gmt_create
		FROM building_features WHERE building_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, buildingID)
	if err != nil {
		return nil, fmt.Errorf("querying building features: %w", err)
	}
	defer rows.Close()

	result := []Feature{}
	for rows.Next() {
		var f Feature
		var data, created string
		var version sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.BuildingID, &f.FeatureType, &data, &version,
			&confidence, &created); err != nil {
			return nil, fmt.Errorf("scanning building feature: %w", err)
		}
		f.FeatureData = database.DecodeMap(data)
		f.ModelVersion = database.StringPtr(version)
		f.ConfidenceScore = database.FloatPtr(confidence)
		f.GmtCreate = database.ParseTime(created)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating building features: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuilding(s scanner) (*Building, error) {
	var b Building
	var description, architect, style sql.NullString
	var yearBuilt sql.NullInt64
	var features, images, created, modified string
	var landmark int
	err := s.Scan(&b.ID, &b.Name, &description, &b.Latitude, &b.Longitude, &b.Address,
		&b.BuildingType, &b.FloorCount, &yearBuilt, &architect, &style, &features, &images,
		&landmark, &b.PopularityScore, &created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBuildingNotFound
		}
		return nil, fmt.Errorf("scanning building: %w", err)
	}
	b.Description = database.StringPtr(description)
	b.YearBuilt = database.IntPtr(yearBuilt)
	b.Architect = database.StringPtr(architect)
	b.Style = database.StringPtr(style)
	b.Features = database.DecodeMap(features)
	b.Images = database.DecodeMap(images)
	b.IsLandmark = landmark != 0
	b.GmtCreate = database.ParseTime(created)
	b.GmtModified = database.ParseTime(modified)
	return &b, nil
}

func normalizeMaps(b *Building) {
	if b.Features == nil {
		b.Features = map[string]any{}
	}
	if b.Images == nil {
		b.Images = map[string]any{}
	}
}
