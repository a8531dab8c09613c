package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// StateChange is passed to auth state listeners. User is nil on sign-out.
type StateChange struct {
	Token string
	User  *model.User
}

// Provider signs users in and out with email and password and notifies
// listeners about every change of a session's signed-in user.
type Provider struct {
	users    *store.UserStore
	sessions *store.SessionStore
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(StateChange)
	nextID    int

	// dummyHash keeps SignIn timing similar for unknown emails.
	dummyHash []byte
}

func NewProvider(users *store.UserStore, sessions *store.SessionStore, ttl time.Duration, logger *slog.Logger) *Provider {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("katalog-dummy-password"), bcrypt.MinCost)
	return &Provider{
		users:     users,
		sessions:  sessions,
		ttl:       ttl,
		logger:    logger,
		listeners: make(map[int]func(StateChange)),
		dummyHash: dummy,
	}
}

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignIn checks the credentials and opens a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	user, err := p.users.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := p.sessions.Create(user.ID, p.ttl)
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	p.logger.Info("user signed in", "user_id", user.ID)
	p.emit(StateChange{Token: sess.Token, User: user})
	return user, sess, nil
}

// SignOut ends the session. Signing out an unknown token is not an error.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := p.sessions.DeleteByToken(token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	p.emit(StateChange{Token: token})
	return nil
}

// Resolve returns the user and session for a token, or nils when the token is
// unknown or expired.
func (p *Provider) Resolve(ctx context.Context, token string) (*model.User, *model.Session, error) {
	if token == "" {
		return nil, nil, nil
	}
	sess, err := p.sessions.GetByToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}
	if sess == nil {
		return nil, nil, nil
	}
	user, err := p.users.GetByID(sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve session user: %w", err)
	}
	if user == nil {
		return nil, nil, nil
	}
	return user, sess, nil
}

// OnAuthStateChanged registers fn for sign-in and sign-out events and returns
// a function that removes it.
func (p *Provider) OnAuthStateChanged(fn func(StateChange)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(change StateChange) {
	p.mu.Lock()
	fns := make([]func(StateChange), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
