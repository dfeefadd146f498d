package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
)

// ErrPreferenceNotFound is returned when a user has no stored preferences.
var ErrPreferenceNotFound = errors.New("preferences not found")

// Repository defines persistence for user preferences.
type Repository interface {
	Get(ctx context.Context, userID string) (*Preference, error)
	GetOrCreate(ctx context.Context, userID string) (*Preference, error)
	Update(ctx context.Context, userID string, patch map[string]any) (*Preference, []string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed preference repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const columns = `user_id, preferred_building_types, preferred_route_types, accessibility_needs,
	language_preference, ar_settings, notification_settings, gmt_create, gmt_modified`

// Get returns stored preferences.
func (r *SQLiteRepository) Get(ctx context.Context, userID string) (*Preference, error) {
	return scan(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM user_preferences WHERE user_id = ?`, userID))
}

// GetOrCreate returns stored preferences, inserting the defaults first
// when the user has none.
func (r *SQLiteRepository) GetOrCreate(ctx context.Context, userID string) (*Preference, error) {
	var p *Preference
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		p, err = scan(tx.QueryRowContext(ctx,
			`SELECT `+columns+` FROM user_preferences WHERE user_id = ?`, userID))
		if !errors.Is(err, ErrPreferenceNotFound) {
			return err
		}
		p = Defaults(userID)
		return r.insert(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update merges patch into the user's preferences, creating them from the
// defaults when absent. It returns the stored result and the applied keys.
func (r *SQLiteRepository) Update(ctx context.Context, userID string, patch map[string]any) (*Preference, []string, error) {
	var p *Preference
	var applied []string
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		p, err = scan(tx.QueryRowContext(ctx,
			`SELECT `+columns+` FROM user_preferences WHERE user_id = ?`, userID))
		switch {
		case errors.Is(err, ErrPreferenceNotFound):
			p = Defaults(userID)
			applied = p.Apply(patch)
			return r.insert(ctx, tx, p)
		case err != nil:
			return err
		}

		applied = p.Apply(patch)
		p.GmtModified = r.now().UTC().Truncate(time.Second)
		const query = `UPDATE user_preferences SET preferred_building_types = ?,
			preferred_route_types = ?, accessibility_needs = ?, language_preference = ?,
			ar_settings = ?, notification_settings = ?, gmt_modified = ?
			WHERE user_id = ?`
		if _, err := tx.ExecContext(ctx, query,
			database.EncodeJSON(p.PreferredBuildingTypes), database.EncodeJSON(p.PreferredRouteTypes),
			database.EncodeJSON(p.AccessibilityNeeds), p.LanguagePreference,
			database.EncodeJSON(p.ARSettings), database.EncodeJSON(p.NotificationSettings),
			database.FormatTime(p.GmtModified), userID); err != nil {
			return fmt.Errorf("updating preferences for %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return p, applied, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, tx *sql.Tx, p *Preference) error {
	now := r.now().UTC().Truncate(time.Second)
	ts := database.FormatTime(now)

	const query = `INSERT INTO user_preferences
		(user_id, preferred_building_types, preferred_route_types, accessibility_needs,
		 language_preference, ar_settings, notification_settings, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, p.UserID,
		database.EncodeJSON(p.PreferredBuildingTypes), database.EncodeJSON(p.PreferredRouteTypes),
		database.EncodeJSON(p.AccessibilityNeeds), p.LanguagePreference,
		database.EncodeJSON(p.ARSettings), database.EncodeJSON(p.NotificationSettings),
		ts, ts); err != nil {
		return fmt.Errorf("inserting preferences for %s: %w", p.UserID, err)
	}
	p.GmtCreate, p.GmtModified = now, now
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*Preference, error) {
	var p Preference
	var buildings, routes, access, ar, notify, created, modified string
	err := s.Scan(&p.UserID, &buildings, &routes, &access, &p.LanguagePreference, &ar, &notify,
		&created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("scanning preferences: %w", err)
	}
	p.PreferredBuildingTypes = database.DecodeMap(buildings)
	p.PreferredRouteTypes = database.DecodeMap(routes)
	p.AccessibilityNeeds = database.DecodeMap(access)
	p.ARSettings = database.DecodeMap(ar)
	p.NotificationSettings = database.DecodeMap(notify)
	p.GmtCreate = database.ParseTime(created)
	p.GmtModified = database.ParseTime(modified)
	return &p, nil
}
