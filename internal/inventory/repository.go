package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence operations for controllers, components,
// and component state. The abstraction allows mocking in tests.
type Repository interface {
	// GetController retrieves a controller by ID.
	// Returns ErrControllerNotFound if it does not exist.
	GetController(ctx context.Context, id string) (*Controller, error)

	// ListControllers retrieves all controllers, across houses.
	ListControllers(ctx context.Context) ([]Controller, error)

	// CreateController inserts a new controller.
	// Returns ErrControllerExists on duplicate ID.
	CreateController(ctx context.Context, c *Controller) error

	// SetControllerApproval flips the approval flag on a controller.
	SetControllerApproval(ctx context.Context, id string, approved bool) error

	// TouchController records that a controller was seen now.
	TouchController(ctx context.Context, id string, seenAt time.Time) error

	// GetComponent retrieves a component by ID.
	// Returns ErrComponentNotFound if it does not exist.
	GetComponent(ctx context.Context, id string) (*Component, error)

	// ListComponents retrieves all components, across houses.
	ListComponents(ctx context.Context) ([]Component, error)

	// ListComponentsByHouse retrieves all components in a house.
	ListComponentsByHouse(ctx context.Context, houseID string) ([]Component, error)

	// CreateComponent inserts a new component.
	// Returns ErrComponentExists on duplicate ID.
	CreateComponent(ctx context.Context, c *Component) error

	// UpsertComponentState merges a state document for a component.
	UpsertComponentState(ctx context.Context, componentID string, state map[string]any) error

	// GetComponentState retrieves the last reported state for a component.
	// Returns ErrComponentNotFound if no state has been reported.
	GetComponentState(ctx context.Context, componentID string) (*ComponentState, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetController retrieves a controller by ID.
func (r *SQLiteRepository) GetController(ctx context.Context, id string) (*Controller, error) {
	query := `
		SELECT id, house_id, name, api_key_hash, is_approved, firmware,
			last_seen_at, created_at, updated_at
		FROM controllers
		WHERE id = ?`

	c, err := scanController(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrControllerNotFound
		}
		return nil, fmt.Errorf("querying controller by id: %w", err)
	}
	return c, nil
}

// ListControllers retrieves all controllers.
func (r *SQLiteRepository) ListControllers(ctx context.Context) ([]Controller, error) {
	query := `
		SELECT id, house_id, name, api_key_hash, is_approved, firmware,
			last_seen_at, created_at, updated_at
		FROM controllers
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying controllers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var controllers []Controller
	for rows.Next() {
		c, err := scanController(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning controller: %w", err)
		}
		controllers = append(controllers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating controllers: %w", err)
	}

	return controllers, nil
}

// CreateController inserts a new controller.
func (r *SQLiteRepository) CreateController(ctx context.Context, c *Controller) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO controllers (
			id, house_id, name, api_key_hash, is_approved, firmware,
			last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.HouseID, c.Name, c.APIKeyHash,
		boolToInt(c.IsApproved), c.Firmware,
		nullableTime(c.LastSeenAt),
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrControllerExists
		}
		return fmt.Errorf("inserting controller: %w", err)
	}

	return nil
}

// SetControllerApproval flips the approval flag on a controller.
func (r *SQLiteRepository) SetControllerApproval(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE controllers SET is_approved = ?, updated_at = ? WHERE id = ?",
		boolToInt(approved), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating controller approval: %w", err)
	}
	return requireRowAffected(result, ErrControllerNotFound)
}

// TouchController records that a controller was seen now.
func (r *SQLiteRepository) TouchController(ctx context.Context, id string, seenAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE controllers SET last_seen_at = ? WHERE id = ?",
		seenAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating controller last seen: %w", err)
	}
	return requireRowAffected(result, ErrControllerNotFound)
}

// GetComponent retrieves a component by ID.
func (r *SQLiteRepository) GetComponent(ctx context.Context, id string) (*Component, error) {
	query := `
		SELECT id, house_id, controller_id, name, kind, pin, created_at, updated_at
		FROM components
		WHERE id = ?`

	c, err := scanComponent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComponentNotFound
		}
		return nil, fmt.Errorf("querying component by id: %w", err)
	}
	return c, nil
}

// ListComponents retrieves all components.
func (r *SQLiteRepository) ListComponents(ctx context.Context) ([]Component, error) {
	query := `
		SELECT id, house_id, controller_id, name, kind, pin, created_at, updated_at
		FROM components
		ORDER BY name`

	return r.queryComponents(ctx, query)
}

// ListComponentsByHouse retrieves all components in a house.
func (r *SQLiteRepository) ListComponentsByHouse(ctx context.Context, houseID string) ([]Component, error) {
	query := `
		SELECT id, house_id, controller_id, name, kind, pin, created_at, updated_at
		FROM components
		WHERE house_id = ?
		ORDER BY name`

	return r.queryComponents(ctx, query, houseID)
}

// CreateComponent inserts a new component.
func (r *SQLiteRepository) CreateComponent(ctx context.Context, c *Component) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO components (
			id, house_id, controller_id, name, kind, pin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.HouseID, nullableString(c.ControllerID),
		c.Name, c.Kind, nullableInt(c.Pin),
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrComponentExists
		}
		return fmt.Errorf("inserting component: %w", err)
	}

	return nil
}

// UpsertComponentState merges a state document for a component.
// Existing keys not present in the new state are preserved.
func (r *SQLiteRepository) UpsertComponentState(ctx context.Context, componentID string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO component_states (component_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(component_id) DO UPDATE SET
			state = json_patch(component_states.state, excluded.state),
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, componentID, string(stateJSON), now); err != nil {
		return fmt.Errorf("upserting component state: %w", err)
	}

	return nil
}

// GetComponentState retrieves the last reported state for a component.
func (r *SQLiteRepository) GetComponentState(ctx context.Context, componentID string) (*ComponentState, error) {
	var cs ComponentState
	var stateJSON, updatedAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT component_id, state, updated_at FROM component_states WHERE component_id = ?",
		componentID,
	).Scan(&cs.ComponentID, &stateJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComponentNotFound
		}
		return nil, fmt.Errorf("querying component state: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &cs.State); err != nil {
		return nil, fmt.Errorf("unmarshalling component state: %w", err)
	}
	if cs.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &cs, nil
}

func (r *SQLiteRepository) queryComponents(ctx context.Context, query string, args ...any) ([]Component, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying components: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var components []Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning component: %w", err)
		}
		components = append(components, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating components: %w", err)
	}

	return components, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanController(scanner rowScanner) (*Controller, error) {
	var c Controller
	var isApproved int
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID, &c.HouseID, &c.Name, &c.APIKeyHash,
		&isApproved, &c.Firmware, &lastSeen,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.IsApproved = isApproved != 0
	if lastSeen.Valid {
		if t, err := parseTimestamp(lastSeen.String); err == nil {
			c.LastSeenAt = &t
		}
	}
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &c, nil
}

func scanComponent(scanner rowScanner) (*Component, error) {
	var c Component
	var controllerID sql.NullString
	var pin sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID, &c.HouseID, &controllerID, &c.Name, &c.Kind, &pin,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if controllerID.Valid {
		c.ControllerID = &controllerID.String
	}
	if pin.Valid {
		p := int(pin.Int64)
		c.Pin = &p
	}
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &c, nil
}

// requireRowAffected returns notFound when an UPDATE touched no rows.
func requireRowAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// parseTimestamp handles both RFC3339 strings written by this package and
// the DATETIME default format SQLite uses for seeded rows.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
