// Package mirror keeps a local copy of a document collection in sync with
// its live subscription.
package mirror

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/katalog/internal/docstore"
)

// Source is a subscribable collection.
type Source interface {
	Subscribe(onSnapshot func([]docstore.Document), onError func(error)) docstore.Unsubscribe
}

// Mirror holds the latest snapshot of one collection, decoded into T.
//
// Every snapshot replaces the local copy wholesale. A subscription error
// keeps the previous copy and records the error until the next good
// snapshot. Callbacks that arrive after Stop are dropped.
type Mirror[T any] struct {
	name     string
	source   Source
	logger   *slog.Logger
	onChange func()

	mu     sync.Mutex
	gen    uint64
	active bool
	unsub  docstore.Unsubscribe
	items  []T
	loaded bool
	err    error
}

// New returns a stopped mirror. onChange, if set, is called after every
// accepted snapshot or error, without any mirror lock held.
func New[T any](name string, source Source, logger *slog.Logger, onChange func()) *Mirror[T] {
	return &Mirror[T]{
		name:     name,
		source:   source,
		logger:   logger.With("collection", name),
		onChange: onChange,
	}
}

func (m *Mirror[T]) Name() string {
	return m.name
}

// Start subscribes to the source. Starting an active mirror is a no-op.
func (m *Mirror[T]) Start() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	m.active = true
	m.mu.Unlock()

	unsub := m.source.Subscribe(
		func(docs []docstore.Document) { m.handleSnapshot(gen, docs) },
		func(err error) { m.handleError(gen, err) },
	)

	m.mu.Lock()
	if m.gen == gen {
		m.unsub = unsub
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// Stopped while subscribing.
	unsub()
}

// Stop releases the subscription and clears the local copy.
func (m *Mirror[T]) Stop() {
	m.mu.Lock()
	m.gen++
	m.active = false
	unsub := m.unsub
	m.unsub = nil
	m.items = nil
	m.loaded = false
	m.err = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Items returns a copy of the current collection.
func (m *Mirror[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

// Err returns the last subscription error, or nil after a good snapshot.
func (m *Mirror[T]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Mirror[T]) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Loaded reports whether a snapshot arrived since the last Start.
func (m *Mirror[T]) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func (m *Mirror[T]) handleSnapshot(gen uint64, docs []docstore.Document) {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			m.logger.Warn("skipping undecodable document", "id", d.ID, "error", err)
			continue
		}
		items = append(items, v)
	}

	m.mu.Lock()
	if gen != m.gen || !m.active {
		m.mu.Unlock()
		return
	}
	m.items = items
	m.loaded = true
	m.err = nil
	m.mu.Unlock()

	m.changed()
}

func (m *Mirror[T]) handleError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || !m.active {
		m.mu.Unlock()
		return
	}
	m.err = err
	m.mu.Unlock()

	m.logger.Error("subscription failed", "error", err)
	m.changed()
}

func (m *Mirror[T]) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
