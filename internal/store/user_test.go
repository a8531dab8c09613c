package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/katalog/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, us *UserStore, email string) string {
	t.Helper()
	u, err := us.Create(email, "Test", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create(" Alice@Example.com ", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.ID == "" {
		t.Error("expected non-empty ID")
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "hash")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	createTestUser(t, us, "alice@example.com")
	if _, err := us.Create("ALICE@example.com", "Alice2", "hash"); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	id := createTestUser(t, us, "alice@example.com")

	u, err := us.GetByEmail("Alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != id {
		t.Errorf("id = %q, want %q", u.ID, id)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown email, got %+v", missing)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.GetByID("no-such-id")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
}

func TestUserListAndDelete(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	createTestUser(t, us, "bob@example.com")
	aliceID := createTestUser(t, us, "alice@example.com")

	users, err := us.List()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
	if users[0].Email != "alice@example.com" {
		t.Errorf("first user = %q, want alice@example.com", users[0].Email)
	}

	if err := us.Delete(aliceID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	users, err = us.List()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("len(users) = %d, want 1", len(users))
	}
}

func TestUserUpdatePassword(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	id := createTestUser(t, us, "alice@example.com")

	if err := us.UpdatePassword(id, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	u, err := us.GetByID(id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.PasswordHash != "new-hash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "new-hash")
	}
}
