package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TimeLayout is the on-disk timestamp format. It matches the schema's
// DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')).
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Zero time is returned for values that
// match neither RFC3339 nor TimeLayout.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(TimeLayout, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// ParseNullTime parses a nullable timestamp column.
func ParseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := ParseTime(ns.String)
	return &t
}

// NullTime converts an optional time to a nullable column value.
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// NullString converts a *string to a sql.NullString for nullable columns.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullFloat converts a *float64 to a sql.NullFloat64.
func NullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// NullInt converts a *int64 to a sql.NullInt64.
func NullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// StringPtr returns nil for an invalid NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// FloatPtr returns nil for an invalid NullFloat64.
func FloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// IntPtr returns nil for an invalid NullInt64.
func IntPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

// BoolToInt maps a Go bool onto SQLite's 0/1 integer convention.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// EncodeJSON serialises v for a TEXT JSON column. nil maps and slices are
// stored as "{}" so the column stays an object.
func EncodeJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "{}"
	}
	return string(b)
}

// EncodeJSONArray serialises v for a TEXT JSON array column.
func EncodeJSONArray(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}

// DecodeMap deserialises a JSON object column. Invalid or empty values
// yield an empty, non-nil map.
func DecodeMap(s string) map[string]any {
	m := map[string]any{}
	if s == "" || s == "{}" {
		return m
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// DecodeInto deserialises a JSON column into v, ignoring empty values.
func DecodeInto(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
