package push

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/database"
	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/store"
)

type recordingSender struct {
	sent []Payload
	to   []string
	err  error
}

func (r *recordingSender) Send(sub *model.PushSubscription, p Payload) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, p)
	r.to = append(r.to, sub.Endpoint)
	return nil
}

type schedulerFixture struct {
	sched   *Scheduler
	sender  *recordingSender
	push    *store.PushStore
	entries *docstore.Collection
}

func setupScheduler(t *testing.T) *schedulerFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewUserStore(db)
	admins := store.NewAdminStore(db)
	ps := store.NewPushStore(db)

	for _, u := range []struct {
		email string
		admin bool
	}{{"admin@example.com", true}, {"other@example.com", false}} {
		created, err := users.Create(u.email, "", "hash")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := admins.Set(created.ID, u.admin); err != nil {
			t.Fatalf("set admin: %v", err)
		}
		if _, err := ps.CreateSubscription(created.ID, "https://push.example/"+u.email, "p", "a", ""); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}

	entries := docstore.New(db, nil, logger).Collection(model.CollectionManualEntries)
	sender := &recordingSender{}
	sched := NewScheduler(sender, ps, entries, logger)
	sched.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	return &schedulerFixture{sched: sched, sender: sender, push: ps, entries: entries}
}

func TestSchedulerAlertsAdminsOncePerDueDate(t *testing.T) {
	f := setupScheduler(t)
	ctx := context.Background()

	id, err := f.entries.Add(ctx, model.ManualEntry{Title: "Angebot Müller", Status: "offen", AbgabeBis: "2026-03-01"})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := f.entries.Add(ctx, model.ManualEntry{Title: "Erledigt", Status: model.StatusOfferReceived, AbgabeBis: "2026-03-01"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := f.entries.Add(ctx, model.ManualEntry{Title: "Später", Status: "offen", AbgabeBis: "2026-04-01"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}

	f.sched.tick(ctx)
	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.sender.sent))
	}
	if f.sender.to[0] != "https://push.example/admin@example.com" {
		t.Errorf("sent to %q, want the admin's endpoint", f.sender.to[0])
	}
	if f.sender.sent[0].Tag != "entry-"+id {
		t.Errorf("tag = %q, want %q", f.sender.sent[0].Tag, "entry-"+id)
	}

	f.sched.tick(ctx)
	if len(f.sender.sent) != 1 {
		t.Errorf("sent = %d after second tick, want 1", len(f.sender.sent))
	}

	// A new due date is a new alert.
	if err := f.entries.Set(ctx, id, model.ManualEntry{Title: "Angebot Müller", Status: "offen", AbgabeBis: "2026-03-05"}); err != nil {
		t.Fatalf("update entry: %v", err)
	}
	f.sched.tick(ctx)
	if len(f.sender.sent) != 2 {
		t.Errorf("sent = %d after due date change, want 2", len(f.sender.sent))
	}
}

func TestSchedulerDropsExpiredSubscriptions(t *testing.T) {
	f := setupScheduler(t)
	ctx := context.Background()
	f.sender.err = ErrExpired

	if _, err := f.entries.Add(ctx, model.ManualEntry{Title: "x", Status: "offen", AbgabeBis: "2026-03-01"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	f.sched.tick(ctx)

	subs, err := f.push.ListAdminSubscriptions()
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("admin subscriptions = %d, want 0", len(subs))
	}
}

func TestSchedulerAlertsAdminWhoSubscribesLater(t *testing.T) {
	f := setupScheduler(t)
	ctx := context.Background()

	subs, err := f.push.ListAdminSubscriptions()
	if err != nil || len(subs) != 1 {
		t.Fatalf("admin subscriptions = %d, %v; want 1", len(subs), err)
	}
	admin := subs[0]
	if err := f.push.DeleteByEndpoint(admin.Endpoint); err != nil {
		t.Fatalf("delete subscription: %v", err)
	}

	if _, err := f.entries.Add(ctx, model.ManualEntry{Title: "x", Status: "offen", AbgabeBis: "2026-03-01"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	f.sched.tick(ctx)
	if len(f.sender.sent) != 0 {
		t.Fatalf("sent = %d without subscribers, want 0", len(f.sender.sent))
	}

	if _, err := f.push.CreateSubscription(admin.UserID, admin.Endpoint, "p", "a", ""); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	f.sched.tick(ctx)
	if len(f.sender.sent) != 1 {
		t.Errorf("sent = %d after subscribing, want 1", len(f.sender.sent))
	}
}

func TestSchedulerStartStop(t *testing.T) {
	f := setupScheduler(t)
	f.sched.interval = time.Millisecond
	f.sched.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	f.sched.Stop()
}
