package app

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, f *fixture, ttl time.Duration) *Manager {
	t.Helper()
	m := NewManager(func(token string) *Session {
		return NewSession(Config{
			Items:     f.items,
			Regions:   f.regions,
			Entries:   f.entries,
			Admins:    f.admins,
			Favorites: f.favs,
			Logger:    discardLogger(),
		})
	}, ttl, nil, discardLogger())
	t.Cleanup(m.Stop)
	return m
}

func TestManagerEnsureReusesSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, time.Hour)

	s1 := m.Ensure("tok", user("admin"))
	s2 := m.Ensure("tok", user("admin"))

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 3, f.subscribers())

	got, ok := m.Get("tok")
	assert.True(t, ok)
	assert.Same(t, s1, got)
}

func TestManagerCloseReleasesSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, time.Hour)

	s := m.Ensure("tok", user("admin"))
	m.Close("tok")

	_, ok := m.Get("tok")
	assert.False(t, ok)
	assert.Nil(t, s.User())
	assert.Equal(t, 0, f.subscribers())
}

func TestManagerHandleAuthChange(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, time.Hour)

	m.HandleAuthChange(auth.StateChange{Token: "tok", User: user("admin")})
	s, ok := m.Get("tok")
	require.True(t, ok)
	assert.True(t, s.IsAdmin())

	m.HandleAuthChange(auth.StateChange{Token: "tok"})
	_, ok = m.Get("tok")
	assert.False(t, ok)
	assert.Equal(t, 0, f.subscribers())
}

func TestManagerSweepsExpiredSessions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, 20*time.Millisecond)
	m.Start(5 * time.Millisecond)

	m.Ensure("tok", user("admin"))
	require.Equal(t, 3, f.subscribers())

	assert.Eventually(t, func() bool {
		return f.subscribers() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestManagerEnsureReleasesExpiredSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, 30*time.Millisecond)

	old := m.Ensure("tok", user("admin"))
	require.Equal(t, 3, f.subscribers())

	// Expired but not yet swept.
	time.Sleep(60 * time.Millisecond)

	fresh := m.Ensure("tok", user("admin"))
	assert.NotSame(t, old, fresh)
	assert.True(t, old.Closed())
	assert.True(t, fresh.IsAdmin())
	assert.Equal(t, 3, f.subscribers())
	assert.Equal(t, 1, m.Count())

	m.Stop()
	assert.Equal(t, 0, f.subscribers())
}

func TestManagerEnsureReplacesClosedSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := newTestManager(t, f, time.Hour)

	old := m.Ensure("tok", user("admin"))
	old.Close()
	require.Equal(t, 0, f.subscribers())

	fresh := m.Ensure("tok", user("admin"))
	assert.NotSame(t, old, fresh)
	assert.False(t, fresh.Closed())
	assert.True(t, fresh.IsAdmin())
	assert.Equal(t, 3, f.subscribers())
}

func TestManagerStopClosesAll(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.admins.Set("admin", true))
	m := NewManager(func(token string) *Session {
		return NewSession(Config{
			Items: f.items, Regions: f.regions, Entries: f.entries,
			Admins: f.admins, Favorites: f.favs, Logger: discardLogger(),
		})
	}, time.Hour, nil, discardLogger())
	m.Start(time.Minute)

	m.Ensure("a", user("admin"))
	m.Ensure("b", user("admin"))
	require.Equal(t, 6, f.subscribers())

	m.Stop()
	assert.Equal(t, 0, f.subscribers())
	assert.Equal(t, 0, m.Count())
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{}
	got, ok := FromContext(WithSession(context.Background(), s))
	assert.True(t, ok)
	assert.Same(t, s, got)
}
