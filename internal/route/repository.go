package route

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// Repository defines persistence for route plans.
type Repository interface {
	Save(ctx context.Context, p *Plan) error
	Latest(ctx context.Context, conversationID int64) (*Plan, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed route plan repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Save inserts a new plan. Plans are append-only; the newest one wins.
func (r *SQLiteRepository) Save(ctx context.Context, p *Plan) error {
	if len(validation.SplitStops(p.Locations)) < 2 {
		return ErrTooFewStops
	}
	if p.RouteType == "" {
		p.RouteType = TypeWalking
	}
	if p.Ext == nil {
		p.Ext = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	const query = `INSERT INTO route_locations
		(conversation_id, locations, route_type, ext, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		p.ConversationID, p.Locations, p.RouteType, database.EncodeJSON(p.Ext), ts, ts)
	if err != nil {
		return fmt.Errorf("inserting route plan: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading route plan id: %w", err)
	}
	p.GmtCreate, p.GmtModified = now, now
	return nil
}

// Latest returns the most recently saved plan for a conversation.
func (r *SQLiteRepository) Latest(ctx context.Context, conversationID int64) (*Plan, error) {
	const query = `SELECT id, conversation_id, locations, route_type, ext, gmt_create, gmt_modified
		FROM route_locations WHERE conversation_id = ? ORDER BY id DESC LIMIT 1`

	var p Plan
	var ext, created, modified string
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(
		&p.ID, &p.ConversationID, &p.Locations, &p.RouteType, &ext, &created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("querying route plan: %w", err)
	}
	p.Ext = database.DecodeMap(ext)
	p.GmtCreate = database.ParseTime(created)
	p.GmtModified = database.ParseTime(modified)
	return &p, nil
}
