package house

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence operations for houses and memberships.
// The abstraction allows mocking in tests without a database.
type Repository interface {
	// GetByID retrieves a house by its unique identifier.
	// Returns ErrHouseNotFound if the house does not exist.
	GetByID(ctx context.Context, id string) (*House, error)

	// Create inserts a new house.
	// Returns ErrHouseExists if a house with the same ID already exists.
	Create(ctx context.Context, h *House) error

	// IsMember reports whether the user belongs to the house.
	IsMember(ctx context.Context, houseID, userID string) (bool, error)

	// AddMember links a user to a house.
	AddMember(ctx context.Context, m *Member) error

	// RemoveMember unlinks a user from a house.
	RemoveMember(ctx context.Context, houseID, userID string) error

	// ListMembers retrieves all members of a house.
	ListMembers(ctx context.Context, houseID string) ([]Member, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a house by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*House, error) {
	query := `
		SELECT id, name, timezone, created_at, updated_at
		FROM houses
		WHERE id = ?`

	var h House
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&h.ID, &h.Name, &h.Timezone, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHouseNotFound
		}
		return nil, fmt.Errorf("querying house by id: %w", err)
	}

	if h.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if h.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &h, nil
}

// Create inserts a new house.
func (r *SQLiteRepository) Create(ctx context.Context, h *House) error {
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	if h.Timezone == "" {
		h.Timezone = "UTC"
	}

	query := `
		INSERT INTO houses (id, name, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.Name, h.Timezone,
		h.CreatedAt.Format(time.RFC3339),
		h.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrHouseExists
		}
		return fmt.Errorf("inserting house: %w", err)
	}

	return nil
}

// IsMember reports whether the user belongs to the house.
func (r *SQLiteRepository) IsMember(ctx context.Context, houseID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM house_members WHERE house_id = ? AND user_id = ?",
		houseID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking house membership: %w", err)
	}
	return count > 0, nil
}

// AddMember links a user to a house.
func (r *SQLiteRepository) AddMember(ctx context.Context, m *Member) error {
	if m.Role == "" {
		m.Role = RoleMember
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO house_members (house_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.HouseID, m.UserID, string(m.Role),
		m.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting house member: %w", err)
	}

	return nil
}

// RemoveMember unlinks a user from a house.
func (r *SQLiteRepository) RemoveMember(ctx context.Context, houseID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM house_members WHERE house_id = ? AND user_id = ?",
		houseID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting house member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotMember
	}

	return nil
}

// ListMembers retrieves all members of a house.
func (r *SQLiteRepository) ListMembers(ctx context.Context, houseID string) ([]Member, error) {
	query := `
		SELECT house_id, user_id, role, created_at
		FROM house_members
		WHERE house_id = ?
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, houseID)
	if err != nil {
		return nil, fmt.Errorf("querying house members: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var members []Member
	for rows.Next() {
		var m Member
		var role, createdAt string
		if err := rows.Scan(&m.HouseID, &m.UserID, &role, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning house member: %w", err)
		}
		m.Role = Role(role)
		if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating house members: %w", err)
	}

	return members, nil
}

// parseTimestamp handles both RFC3339 strings written by this package and
// the DATETIME default format SQLite uses for seeded rows.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
