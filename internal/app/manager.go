package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/metrics"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/patrickmn/go-cache"
)

// Factory builds the session for a browser session token.
type Factory func(token string) *Session

// Manager owns the sessions of all signed-in browsers, keyed by session
// token. Idle sessions expire after the TTL and are closed on eviction.
type Manager struct {
	sessions *cache.Cache
	factory  Factory
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(factory Factory, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *Manager {
	// No janitor goroutine; Start runs the expiry sweep.
	c := cache.New(ttl, 0)
	mgr := &Manager{
		sessions: c,
		factory:  factory,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
	}
	c.OnEvicted(func(token string, v any) {
		v.(*Session).Close()
		mgr.metrics.SessionClosed()
		mgr.logger.Debug("session closed", "token_prefix", tokenPrefix(token))
	})
	return mgr
}

// Start sweeps expired sessions every interval until Stop.
func (m *Manager) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
	m.logger.Info("session sweeper started", "interval", interval.String())
}

// Stop ends the sweep and closes every session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.DeleteExpired()
	for token := range m.sessions.Items() {
		m.sessions.Delete(token)
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.DeleteExpired()
}

// Ensure returns the session for token, creating it for user when missing.
// An existing session whose user differs is switched to user. Every call
// extends the session's lifetime.
func (m *Manager) Ensure(token string, user *model.User) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.sessions.Get(token); ok && !v.(*Session).Closed() {
		sess := v.(*Session)
		if cur := sess.User(); cur == nil || cur.ID != user.ID {
			sess.SetUser(user)
		}
		m.sessions.SetDefault(token, sess)
		return sess
	}

	// Get hides an expired entry the sweep has not reached yet. Delete
	// evicts it so its subscriptions are released before it is replaced.
	m.sessions.Delete(token)

	sess := m.factory(token)
	sess.SetUser(user)
	m.sessions.SetDefault(token, sess)
	m.metrics.SessionOpened()
	return sess
}

func (m *Manager) Get(token string) (*Session, bool) {
	v, ok := m.sessions.Get(token)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Close signs the session out and releases it.
func (m *Manager) Close(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.sessions.Get(token); ok {
		v.(*Session).SetUser(nil)
	}
	m.sessions.Delete(token)
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// HandleAuthChange follows sign-in and sign-out events of the auth provider.
func (m *Manager) HandleAuthChange(change auth.StateChange) {
	if change.User == nil {
		m.Close(change.Token)
		return
	}
	m.Ensure(change.Token, change.User)
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
