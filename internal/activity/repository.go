// Package activity records the outcome of executed device commands so
// house members can review what happened and who asked for it.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Entry is a single activity log row, written when a controller
// acknowledges a command.
type Entry struct {
	ID          int64     `json:"id"`
	HouseID     string    `json:"house_id"`
	ComponentID string    `json:"component_id"`
	CommandID   string    `json:"command_id"`
	ActionName  string    `json:"action_name"`
	RequesterID *string   `json:"requester_id,omitempty"`
	Success     bool      `json:"success"`
	Status      string    `json:"status,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which activity entries to return.
type Filter struct {
	HouseID     string // required
	ComponentID string // optional: filter by component
	Limit       int    // default 50, max 200
	Offset      int    // pagination offset
}

// ListResult contains the paginated activity results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for activity log operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores activity entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new activity log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new activity entry. CreatedAt is generated if zero.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (house_id, component_id, command_id, action_name, requester_id, success, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.HouseID, e.ComponentID, e.CommandID, e.ActionName,
		nullableString(e.RequesterID), boolToInt(e.Success),
		e.Status, e.Detail,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}

	return nil
}

// List returns activity entries for a house, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for activity queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"house_id = ?"}
	args := []any{filter.HouseID}

	if filter.ComponentID != "" {
		conditions = append(conditions, "component_id = ?")
		args = append(args, filter.ComponentID)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, house_id, component_id, command_id, action_name, requester_id, success, status, detail, created_at FROM activity_logs %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var entries []Entry
	for rows.Next() {
		var e Entry
		var requesterID sql.NullString
		var success int
		var createdAt string

		if err := rows.Scan(&e.ID, &e.HouseID, &e.ComponentID, &e.CommandID,
			&e.ActionName, &requesterID, &success, &e.Status, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}

		if requesterID.Valid {
			e.RequesterID = &requesterID.String
		}
		e.Success = success != 0

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing activity timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// nullableString returns nil for nil or empty strings.
// Used for nullable TEXT columns in SQLite.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
