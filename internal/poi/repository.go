package poi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// Repository defines persistence for the POI cache.
type Repository interface {
	Create(ctx context.Context, p *POI) error
	Get(ctx context.Context, id int64) (*POI, error)
	UpsertAll(ctx context.Context, pois []POI) ([]POI, error)
	InBox(ctx context.Context, box geo.BoundingBox) ([]POI, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed POI cache.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const poiColumns = `id, name, lat, lon, address, source, external_id, raw_json, gmt_create, gmt_modified`

// Create inserts a POI. Source defaults to manual.
func (r *SQLiteRepository) Create(ctx context.Context, p *POI) error {
	if p.Source == "" {
		p.Source = SourceManual
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	const query = `INSERT INTO poi_cache
		(name, lat, lon, address, source, external_id, raw_json, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		p.Name, p.Lat, p.Lon, p.Address, p.Source, database.NullString(p.ExternalID),
		rawOrEmpty(p.RawJSON), ts, ts)
	if err != nil {
		return fmt.Errorf("inserting poi: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading poi id: %w", err)
	}
	p.GmtCreate, p.GmtModified = now, now
	return nil
}

// Get returns a POI by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*POI, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+poiColumns+` FROM poi_cache WHERE id = ?`, id)
	p, err := scanPOI(row)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertAll inserts or refreshes POIs keyed by (source, external_id) in one
// transaction and returns them with IDs set.
func (r *SQLiteRepository) UpsertAll(ctx context.Context, pois []POI) ([]POI, error) {
	if len(pois) == 0 {
		return nil, nil
	}
	ts := database.FormatTime(r.now().UTC().Truncate(time.Second))

	const query = `INSERT INTO poi_cache
		(name, lat, lon, address, source, external_id, raw_json, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			address = excluded.address,
			raw_json = excluded.raw_json,
			gmt_modified = excluded.gmt_modified
		RETURNING id, gmt_create`

	out := make([]POI, 0, len(pois))
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing poi upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pois {
			if p.ExternalID == nil {
				return fmt.Errorf("upserting poi %q: external id required", p.Name)
			}
			var created string
			if err := stmt.QueryRowContext(ctx,
				p.Name, p.Lat, p.Lon, p.Address, p.Source, *p.ExternalID,
				rawOrEmpty(p.RawJSON), ts, ts).Scan(&p.ID, &created); err != nil {
				return fmt.Errorf("upserting poi %s/%s: %w", p.Source, *p.ExternalID, err)
			}
			p.GmtCreate = database.ParseTime(created)
			p.GmtModified = database.ParseTime(ts)
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InBox returns every cached POI inside a bounding box, oldest first.
func (r *SQLiteRepository) InBox(ctx context.Context, box geo.BoundingBox) ([]POI, error) {
	query := `SELECT ` + poiColumns + ` FROM poi_cache
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("querying poi cache: %w", err)
	}
	defer rows.Close()

	var result []POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poi cache: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPOI(s scanner) (*POI, error) {
	var p POI
	var externalID sql.NullString
	var raw, created, modified string
	err := s.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &p.Address, &p.Source,
		&externalID, &raw, &created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPOINotFound
		}
		return nil, fmt.Errorf("scanning poi: %w", err)
	}
	p.ExternalID = database.StringPtr(externalID)
	if raw != "" && raw != "{}" {
		p.RawJSON = []byte(raw)
	}
	p.GmtCreate = database.ParseTime(created)
	p.GmtModified = database.ParseTime(modified)
	return &p, nil
}

func rawOrEmpty(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
