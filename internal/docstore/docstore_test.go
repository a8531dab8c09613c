package docstore

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/katalog/internal/database"
)

type note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, nil, slog.Default())
}

type recorder struct {
	mu        sync.Mutex
	snapshots [][]Document
	errs      []error
}

func (r *recorder) onSnapshot(docs []Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, docs)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) last() []Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func TestDocumentCRUD(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := s.Collection("notes")

	id, err := c.Add(ctx, note{Title: "first"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	doc, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc == nil {
		t.Fatal("expected document, got nil")
	}
	var n note
	if err := doc.Decode(&n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Title != "first" {
		t.Errorf("title = %q, want %q", n.Title, "first")
	}
	if n.ID != id {
		t.Errorf("id field = %q, want %q", n.ID, id)
	}

	if err := c.Set(ctx, id, note{Title: "replaced"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc, _ = c.Get(ctx, id)
	n = note{}
	doc.Decode(&n)
	if n.Title != "replaced" {
		t.Errorf("title = %q, want %q", n.Title, "replaced")
	}

	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	doc, err = c.Get(ctx, id)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if doc != nil {
		t.Error("expected nil after delete")
	}
}

func TestSetCreatesMissingDocument(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := s.Collection("notes")

	if err := c.Set(ctx, "fixed-id", note{Title: "assigned"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "fixed-id" {
		t.Fatalf("docs = %+v, want one document with id fixed-id", docs)
	}
}

func TestEmptyIDRejected(t *testing.T) {
	s := setupStore(t)
	c := s.Collection("notes")

	if err := c.Set(context.Background(), "", note{}); err != ErrInvalidID {
		t.Errorf("set err = %v, want ErrInvalidID", err)
	}
	if err := c.Delete(context.Background(), ""); err != ErrInvalidID {
		t.Errorf("delete err = %v, want ErrInvalidID", err)
	}
}

func TestNonObjectRejected(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Collection("notes").Add(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error for non-object document")
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.Collection("a").Add(ctx, note{Title: "in a"})
	docs, err := s.Collection("b").List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty collection b, got %d docs", len(docs))
	}
}

func TestSubscribeDeliversInitialAndFullSnapshots(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := s.Collection("notes")
	c.Add(ctx, note{Title: "existing"})

	var r recorder
	unsub := c.Subscribe(r.onSnapshot, r.onError)
	defer unsub()

	if r.count() != 1 {
		t.Fatalf("expected initial snapshot, got %d", r.count())
	}
	if len(r.last()) != 1 {
		t.Fatalf("initial snapshot len = %d, want 1", len(r.last()))
	}

	id, _ := c.Add(ctx, note{Title: "second"})
	if got := len(r.last()); got != 2 {
		t.Fatalf("snapshot after add len = %d, want 2", got)
	}

	c.Delete(ctx, id)
	if got := len(r.last()); got != 1 {
		t.Fatalf("snapshot after delete len = %d, want 1", got)
	}
	if r.count() != 3 {
		t.Errorf("snapshots = %d, want 3", r.count())
	}
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var r recorder
	unsub := s.Collection("notes").Subscribe(r.onSnapshot, r.onError)
	defer unsub()

	s.Collection("other").Add(ctx, note{Title: "x"})
	if r.count() != 1 {
		t.Errorf("snapshots = %d, want only the initial one", r.count())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := s.Collection("notes")

	var r recorder
	unsub := c.Subscribe(r.onSnapshot, r.onError)
	if s.SubscriberCount("notes") != 1 {
		t.Fatalf("subscribers = %d, want 1", s.SubscriberCount("notes"))
	}

	unsub()
	unsub()
	if s.SubscriberCount("notes") != 0 {
		t.Fatalf("subscribers = %d, want 0", s.SubscriberCount("notes"))
	}

	c.Add(ctx, note{Title: "after"})
	if r.count() != 1 {
		t.Errorf("snapshots = %d, want 1 (no delivery after unsubscribe)", r.count())
	}
}

func TestSubscribeReportsReadErrors(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	s := New(db, nil, slog.Default())
	db.Close()

	var r recorder
	unsub := s.Collection("notes").Subscribe(r.onSnapshot, r.onError)
	defer unsub()

	if len(r.errs) != 1 {
		t.Fatalf("errors = %d, want 1", len(r.errs))
	}
	if r.count() != 0 {
		t.Errorf("snapshots = %d, want 0", r.count())
	}
}

func TestWriteErrorOnClosedDB(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	s := New(db, nil, slog.Default())
	db.Close()

	if _, err := s.Collection("notes").Add(context.Background(), note{Title: "x"}); err == nil {
		t.Error("expected error writing to closed db")
	}
}
