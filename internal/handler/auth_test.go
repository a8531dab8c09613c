package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthHandler(t *testing.T) (*fixture, *auth.Provider, *AuthHandler) {
	t.Helper()
	f := setupFixture(t)
	p := auth.NewProvider(f.users, f.sessions, time.Hour, f.logger)
	return f, p, NewAuthHandler(p, time.Hour, f.templates, f.logger)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	f, p, h := setupAuthHandler(t)
	f.newUser(t, "admin@example.com", true)

	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", url.Values{"email": {"Admin@Example.com"}, "password": {"secret"}}))

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	c := sessionCookie(w)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)

	user, _, err := p.Resolve(t.Context(), c.Value)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "admin@example.com", user.Email)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f, _, h := setupAuthHandler(t)
	f.newUser(t, "admin@example.com", true)

	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), msgInvalidLogin)
	assert.Nil(t, sessionCookie(w))
}

func TestLoginRequiresFields(t *testing.T) {
	_, _, h := setupAuthHandler(t)

	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", url.Values{"email": {"admin@example.com"}}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	f, p, h := setupAuthHandler(t)
	f.newUser(t, "admin@example.com", true)

	var signedOut []string
	unsub := p.OnAuthStateChanged(func(c auth.StateChange) {
		if c.User == nil {
			signedOut = append(signedOut, c.Token)
		}
	})
	defer unsub()

	_, sess, err := p.SignIn(t.Context(), "admin@example.com", "secret")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sess.Token})
	w := httptest.NewRecorder()
	h.Logout(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	c := sessionCookie(w)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	assert.Equal(t, []string{sess.Token}, signedOut)

	user, _, err := p.Resolve(t.Context(), sess.Token)
	require.NoError(t, err)
	assert.Nil(t, user)
}
