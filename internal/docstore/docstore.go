// Package docstore is the document database behind the admin UI: named
// collections of JSON documents with live snapshot subscriptions.
//
// Every successful write re-reads the affected collection and hands the full
// snapshot to each subscriber of that collection. Snapshots for one store
// are delivered in write order, so the last snapshot a subscriber sees is
// always the current state of the collection.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/katalog/internal/metrics"
	"github.com/google/uuid"
)

// ErrInvalidID is returned for writes keyed by an empty document id.
var ErrInvalidID = errors.New("document id is required")

// Document is a stored record: an id and an opaque field map.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the document fields into v.
func (d Document) Decode(v any) error {
	if len(d.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Unsubscribe releases a subscription. It is safe to call more than once.
type Unsubscribe func()

type listener struct {
	onSnapshot func([]Document)
	onError    func(error)
}

type Store struct {
	db      *sql.DB
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[string]map[uint64]*listener
	nextID    uint64

	// deliverMu orders snapshot delivery across concurrent writers.
	deliverMu sync.Mutex
}

func New(db *sql.DB, m *metrics.Metrics, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		metrics:   m,
		logger:    logger,
		listeners: make(map[string]map[uint64]*listener),
	}
}

// Collection returns a handle to the named collection.
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

type Collection struct {
	store *Store
	name  string
}

func (c *Collection) Name() string {
	return c.name
}

// Add stores v under a newly generated id and returns the id.
func (c *Collection) Add(ctx context.Context, v any) (string, error) {
	id := uuid.NewString()
	data, err := encode(v, id)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.name, id, string(data), now, now,
	)
	c.store.metrics.DocumentWrite(c.name, "add", err)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	c.store.notify(ctx, c.name)
	return id, nil
}

// Set replaces the whole document with the given id, creating it if needed.
func (c *Collection) Set(ctx context.Context, id string, v any) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := encode(v, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.name, id, string(data), now, now,
	)
	c.store.metrics.DocumentWrite(c.name, "set", err)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}

	c.store.notify(ctx, c.name)
	return nil
}

// Delete removes the document with the given id. Deleting a missing
// document is not an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	_, err := c.store.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		c.name, id,
	)
	c.store.metrics.DocumentWrite(c.name, "delete", err)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	c.store.notify(ctx, c.name)
	return nil
}

// Get returns the document with the given id, or nil if it does not exist.
func (c *Collection) Get(ctx context.Context, id string) (*Document, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		c.name, id,
	)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// List returns every document of the collection in creation order.
func (c *Collection) List(ctx context.Context) ([]Document, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE collection = ?
		 ORDER BY created_at, id`,
		c.name,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Subscribe registers callbacks for the collection. The current snapshot is
// delivered before Subscribe returns; after that every write to the
// collection delivers a fresh snapshot. A failed read is reported through
// onError and the subscription stays registered. Callbacks run on the
// writer's goroutine and must not write to or subscribe on the store.
func (c *Collection) Subscribe(onSnapshot func([]Document), onError func(error)) Unsubscribe {
	s := c.store
	l := &listener{onSnapshot: onSnapshot, onError: onError}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.listeners[c.name] == nil {
		s.listeners[c.name] = make(map[uint64]*listener)
	}
	s.listeners[c.name][id] = l
	s.mu.Unlock()
	s.metrics.SubscriptionOpened(c.name)

	s.deliverMu.Lock()
	docs, err := c.List(context.Background())
	s.deliver(c.name, l, docs, err)
	s.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[c.name], id)
			s.mu.Unlock()
			s.metrics.SubscriptionClosed(c.name)
		})
	}
}

// SubscriberCount returns the number of live subscriptions on a collection.
func (s *Store) SubscriberCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[collection])
}

func (s *Store) notify(ctx context.Context, collection string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	ls := make([]*listener, 0, len(s.listeners[collection]))
	for _, l := range s.listeners[collection] {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	if len(ls) == 0 {
		return
	}

	// The write already committed; a cancelled request must not hide it.
	docs, err := s.Collection(collection).List(context.WithoutCancel(ctx))
	for _, l := range ls {
		s.deliver(collection, l, docs, err)
	}
}

func (s *Store) deliver(collection string, l *listener, docs []Document, err error) {
	s.metrics.SnapshotDelivered(collection, err)
	if err != nil {
		s.logger.Error("snapshot read failed", "collection", collection, "error", err)
		if l.onError != nil {
			l.onError(err)
		}
		return
	}
	snapshot := make([]Document, len(docs))
	copy(snapshot, docs)
	l.onSnapshot(snapshot)
}

func scanDocument(scanner interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	var data string
	if err := scanner.Scan(&d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Data = json.RawMessage(data)
	return &d, nil
}

// encode marshals v to a JSON object and stamps the document id into it.
func encode(v any, id string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	idJSON, _ := json.Marshal(id)
	fields["id"] = idJSON
	return json.Marshal(fields)
}
