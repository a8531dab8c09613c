package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/middleware"
)

const msgInvalidLogin = "E-Mail oder Passwort ist falsch."

type AuthHandler struct {
	provider  *auth.Provider
	ttl       time.Duration
	templates *Templates
	logger    *slog.Logger
}

func NewAuthHandler(provider *auth.Provider, ttl time.Duration, tmpl *Templates, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, ttl: ttl, templates: tmpl, logger: logger}
}

type loginData struct {
	Email string
	Error string
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.templates.render(w, http.StatusOK, "login", loginData{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.templates.render(w, http.StatusBadRequest, "login", loginData{Email: email, Error: msgInvalidLogin})
		return
	}

	_, sess, err := h.provider.SignIn(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.templates.render(w, http.StatusUnauthorized, "login", loginData{Email: email, Error: msgInvalidLogin})
		return
	}
	if err != nil {
		h.logger.Error("sign in", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the auth session. The sign-out event closes the browser's app
// session and its live collections.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.provider.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Error("sign out", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
