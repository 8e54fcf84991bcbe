package inventory

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the inventory schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "inventory-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE houses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE controllers (
			id TEXT PRIMARY KEY,
			house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			api_key_hash TEXT NOT NULL,
			is_approved INTEGER NOT NULL DEFAULT 0,
			firmware TEXT NOT NULL DEFAULT '',
			last_seen_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE components (
			id TEXT PRIMARY KEY,
			house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
			controller_id TEXT REFERENCES controllers(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			pin INTEGER,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE component_states (
			component_id TEXT PRIMARY KEY REFERENCES components(id) ON DELETE CASCADE,
			state TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		INSERT INTO houses (id, name) VALUES ('house-1', 'Test House');
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

func seedController(t *testing.T, repo *SQLiteRepository, id string, approved bool) {
	t.Helper()
	err := repo.CreateController(context.Background(), &Controller{
		ID:         id,
		HouseID:    "house-1",
		Name:       "Controller " + id,
		APIKeyHash: "$argon2id$stub",
		IsApproved: approved,
	})
	if err != nil {
		t.Fatalf("seeding controller %s: %v", id, err)
	}
}

func TestCreateAndGetController(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	seedController(t, repo, "ctrl-1", true)

	got, err := repo.GetController(context.Background(), "ctrl-1")
	if err != nil {
		t.Fatalf("GetController() error = %v", err)
	}
	if !got.IsApproved {
		t.Error("IsApproved = false, want true")
	}
	if got.APIKeyHash != "$argon2id$stub" {
		t.Errorf("APIKeyHash = %q", got.APIKeyHash)
	}
	if got.LastSeenAt != nil {
		t.Error("LastSeenAt set before first touch")
	}
}

func TestGetController_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	_, err := repo.GetController(context.Background(), "ghost")
	if !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("GetController() error = %v, want ErrControllerNotFound", err)
	}
}

func TestSetControllerApproval(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	seedController(t, repo, "ctrl-1", false)
	ctx := context.Background()

	if err := repo.SetControllerApproval(ctx, "ctrl-1", true); err != nil {
		t.Fatalf("SetControllerApproval() error = %v", err)
	}

	got, err := repo.GetController(ctx, "ctrl-1")
	if err != nil {
		t.Fatalf("GetController() error = %v", err)
	}
	if !got.IsApproved {
		t.Error("IsApproved = false after approval")
	}

	err = repo.SetControllerApproval(ctx, "ghost", true)
	if !errors.Is(err, ErrControllerNotFound) {
		t.Errorf("SetControllerApproval(ghost) error = %v, want ErrControllerNotFound", err)
	}
}

func TestTouchController(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	seedController(t, repo, "ctrl-1", true)
	ctx := context.Background()

	seenAt := time.Now().UTC()
	if err := repo.TouchController(ctx, "ctrl-1", seenAt); err != nil {
		t.Fatalf("TouchController() error = %v", err)
	}

	got, err := repo.GetController(ctx, "ctrl-1")
	if err != nil {
		t.Fatalf("GetController() error = %v", err)
	}
	if got.LastSeenAt == nil {
		t.Fatal("LastSeenAt = nil after touch")
	}
	if got.LastSeenAt.Unix() != seenAt.Unix() {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, seenAt)
	}
}

func TestCreateAndGetComponent(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	seedController(t, repo, "ctrl-1", true)
	ctx := context.Background()

	ctrlID := "ctrl-1"
	pin := 7
	err := repo.CreateComponent(ctx, &Component{
		ID:           "comp-1",
		HouseID:      "house-1",
		ControllerID: &ctrlID,
		Name:         "Porch Light",
		Kind:         "light",
		Pin:          &pin,
	})
	if err != nil {
		t.Fatalf("CreateComponent() error = %v", err)
	}

	got, err := repo.GetComponent(ctx, "comp-1")
	if err != nil {
		t.Fatalf("GetComponent() error = %v", err)
	}
	if got.ControllerID == nil || *got.ControllerID != "ctrl-1" {
		t.Errorf("ControllerID = %v, want ctrl-1", got.ControllerID)
	}
	if got.Pin == nil || *got.Pin != 7 {
		t.Errorf("Pin = %v, want 7", got.Pin)
	}
}

func TestListComponentsByHouse(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	for _, id := range []string{"comp-1", "comp-2"} {
		if err := repo.CreateComponent(ctx, &Component{
			ID: id, HouseID: "house-1", Name: id, Kind: "light",
		}); err != nil {
			t.Fatalf("CreateComponent(%s) error = %v", id, err)
		}
	}

	components, err := repo.ListComponentsByHouse(ctx, "house-1")
	if err != nil {
		t.Fatalf("ListComponentsByHouse() error = %v", err)
	}
	if len(components) != 2 {
		t.Errorf("got %d components, want 2", len(components))
	}

	components, err = repo.ListComponentsByHouse(ctx, "house-other")
	if err != nil {
		t.Fatalf("ListComponentsByHouse() error = %v", err)
	}
	if len(components) != 0 {
		t.Errorf("got %d components for empty house, want 0", len(components))
	}
}

func TestComponentState_UpsertMerges(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	if err := repo.CreateComponent(ctx, &Component{
		ID: "comp-1", HouseID: "house-1", Name: "Lamp", Kind: "light",
	}); err != nil {
		t.Fatalf("CreateComponent() error = %v", err)
	}

	if err := repo.UpsertComponentState(ctx, "comp-1", map[string]any{"on": true, "level": 80}); err != nil {
		t.Fatalf("first UpsertComponentState() error = %v", err)
	}
	if err := repo.UpsertComponentState(ctx, "comp-1", map[string]any{"on": false}); err != nil {
		t.Fatalf("second UpsertComponentState() error = %v", err)
	}

	got, err := repo.GetComponentState(ctx, "comp-1")
	if err != nil {
		t.Fatalf("GetComponentState() error = %v", err)
	}
	if got.State["on"] != false {
		t.Errorf("State[on] = %v, want false", got.State["on"])
	}
	// level survives the partial update
	if got.State["level"] != float64(80) {
		t.Errorf("State[level] = %v, want 80", got.State["level"])
	}
}

func TestGetComponentState_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	_, err := repo.GetComponentState(context.Background(), "ghost")
	if !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("GetComponentState() error = %v, want ErrComponentNotFound", err)
	}
}
