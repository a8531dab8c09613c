package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    "u1",
		Email:     "alice@example.com",
		Token:     "tok",
		SessionID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "u1")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "alice@example.com")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestHelpersMissing(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != "" {
		t.Errorf("UserID = %q, want empty", UserID(ctx))
	}
	if SessionToken(ctx) != "" {
		t.Errorf("SessionToken = %q, want empty", SessionToken(ctx))
	}
}

func TestHelpers(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "u1", Token: "tok"})
	if UserID(ctx) != "u1" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "u1")
	}
	if SessionToken(ctx) != "tok" {
		t.Errorf("SessionToken = %q, want %q", SessionToken(ctx), "tok")
	}
}
