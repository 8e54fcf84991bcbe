package house

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the house schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "house-test-*.db")
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

		CREATE TABLE house_members (
			house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (house_id, user_id)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

func TestCreateAndGetHouse(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	h := &House{ID: "house-1", Name: "Seaside Cottage"}
	if err := repo.Create(ctx, h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "house-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Seaside Cottage" {
		t.Errorf("Name = %q, want %q", got.Name, "Seaside Cottage")
	}
	if got.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC default", got.Timezone)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	h := &House{ID: "house-1", Name: "First"}
	if err := repo.Create(ctx, h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, &House{ID: "house-1", Name: "Second"})
	if !errors.Is(err, ErrHouseExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrHouseExists", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	_, err := repo.GetByID(context.Background(), "no-such-house")
	if !errors.Is(err, ErrHouseNotFound) {
		t.Errorf("GetByID() error = %v, want ErrHouseNotFound", err)
	}
}

func TestMembership(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &House{ID: "house-1", Name: "Home"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.AddMember(ctx, &Member{HouseID: "house-1", UserID: "user-1", Role: RoleOwner}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := repo.AddMember(ctx, &Member{HouseID: "house-1", UserID: "user-2"}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	ok, err := repo.IsMember(ctx, "house-1", "user-1")
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if !ok {
		t.Error("IsMember() = false for member")
	}

	ok, err = repo.IsMember(ctx, "house-1", "stranger")
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if ok {
		t.Error("IsMember() = true for non-member")
	}

	members, err := repo.ListMembers(ctx, "house-1")
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].Role != RoleOwner {
		t.Errorf("first member role = %q, want owner", members[0].Role)
	}
	if members[1].Role != RoleMember {
		t.Errorf("second member role = %q, want member default", members[1].Role)
	}
}

func TestRemoveMember(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &House{ID: "house-1", Name: "Home"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.AddMember(ctx, &Member{HouseID: "house-1", UserID: "user-1"}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	if err := repo.RemoveMember(ctx, "house-1", "user-1"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}

	err := repo.RemoveMember(ctx, "house-1", "user-1")
	if !errors.Is(err, ErrNotMember) {
		t.Errorf("RemoveMember(absent) error = %v, want ErrNotMember", err)
	}
}
