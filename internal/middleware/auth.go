package middleware

import (
	"context"
	"net/http"

	"github.com/dukerupert/katalog/internal/app"
	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/model"
)

const SessionCookieName = "katalog_session"

// Resolver maps a session token to its user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.User, *model.Session, error)
}

// RequireAuth validates the session cookie, populates AuthContext and
// attaches the browser's app session.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireAuth(resolver Resolver, sessions *app.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			user, sess, err := resolver.Resolve(r.Context(), cookie.Value)
			if err != nil || user == nil {
				redirectToLogin(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Email:     user.Email,
				Name:      user.Name,
				Token:     sess.Token,
				SessionID: sess.ID,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			ctx = app.WithSession(ctx, sessions.Ensure(sess.Token, user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the request's session passed the admin gate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := app.FromContext(r.Context())
		if !ok || !sess.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
