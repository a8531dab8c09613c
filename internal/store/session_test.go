package store

import (
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	db := setupTestDB(t)
	ss, us := NewSessionStore(db), NewUserStore(db)
	userID := createTestUser(t, us, "alice@example.com")

	sess, err := ss.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.UserID != userID {
		t.Errorf("user_id = %q, want %q", sess.UserID, userID)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want in the future", sess.ExpiresAt)
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := setupTestDB(t)
	ss, us := NewSessionStore(db), NewUserStore(db)
	userID := createTestUser(t, us, "alice@example.com")

	created, err := ss.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}

	missing, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get unknown session: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown token, got %+v", missing)
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	ss, us := NewSessionStore(db), NewUserStore(db)
	userID := createTestUser(t, us, "alice@example.com")

	expired, err := ss.Create(userID, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := ss.Create(userID, time.Hour); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := ss.GetByToken(expired.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByToken(t *testing.T) {
	db := setupTestDB(t)
	ss, us := NewSessionStore(db), NewUserStore(db)
	userID := createTestUser(t, us, "alice@example.com")

	sess, err := ss.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := ss.DeleteByToken(sess.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected session to be deleted")
	}
}

func TestSessionCascadeOnUserDelete(t *testing.T) {
	db := setupTestDB(t)
	ss, us := NewSessionStore(db), NewUserStore(db)
	userID := createTestUser(t, us, "alice@example.com")

	sess, err := ss.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := us.Delete(userID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected session to be removed with its user")
	}
}
