package store

import (
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/model"
)

func TestPushCreateSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	ps, us := NewPushStore(db), NewUserStore(db)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")

	sub, err := ps.CreateSubscription(alice, "https://push.example/1", "p1", "a1", "Laptop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}

	again, err := ps.CreateSubscription(bob, "https://push.example/1", "p2", "a2", "Phone")
	if err != nil {
		t.Fatalf("re-create subscription: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("id = %d, want %d", again.ID, sub.ID)
	}
	if again.UserID != bob || again.P256dhKey != "p2" || again.DeviceName != "Phone" {
		t.Errorf("subscription = %+v, want refreshed keys for bob", again)
	}

	subs, err := ps.ListByUser(alice)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("len(alice subs) = %d, want 0", len(subs))
	}
}

func TestPushListAdminSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	ps, us, as := NewPushStore(db), NewUserStore(db), NewAdminStore(db)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")

	if err := as.Set(alice, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if err := as.Set(bob, false); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if _, err := ps.CreateSubscription(alice, "https://push.example/a", "p", "a", ""); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if _, err := ps.CreateSubscription(bob, "https://push.example/b", "p", "a", ""); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	subs, err := ps.ListAdminSubscriptions()
	if err != nil {
		t.Fatalf("list admin subscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != alice {
		t.Errorf("subs = %+v, want only alice's", subs)
	}
}

func TestPushDeleteSubscriptionScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	ps, us := NewPushStore(db), NewUserStore(db)
	alice := createTestUser(t, us, "alice@example.com")
	bob := createTestUser(t, us, "bob@example.com")

	sub, err := ps.CreateSubscription(alice, "https://push.example/1", "p", "a", "")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := ps.DeleteSubscription(sub.ID, bob); err != nil {
		t.Fatalf("delete subscription: %v", err)
	}
	if got, _ := ps.GetByEndpoint(sub.Endpoint); got == nil {
		t.Fatal("subscription deleted by another user")
	}
	if err := ps.DeleteByEndpoint(sub.Endpoint); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	if got, _ := ps.GetByEndpoint(sub.Endpoint); got != nil {
		t.Error("expected subscription to be deleted")
	}
}

func TestPushSentDedup(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))

	sent, err := ps.WasSent(model.NotifTypeEntryOverdue, "e1@2026-01-01")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Fatal("expected not sent")
	}

	for i := 0; i < 2; i++ {
		if err := ps.RecordSent(model.NotifTypeEntryOverdue, "e1@2026-01-01"); err != nil {
			t.Fatalf("record sent: %v", err)
		}
	}
	sent, err = ps.WasSent(model.NotifTypeEntryOverdue, "e1@2026-01-01")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if !sent {
		t.Error("expected sent")
	}

	n, err := ps.CleanupSent(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned = %d, want 1", n)
	}
}
