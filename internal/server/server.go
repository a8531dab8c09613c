package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/katalog/internal/app"
	"github.com/dukerupert/katalog/internal/auth"
	"github.com/dukerupert/katalog/internal/backup"
	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/favorites"
	"github.com/dukerupert/katalog/internal/handler"
	"github.com/dukerupert/katalog/internal/metrics"
	"github.com/dukerupert/katalog/internal/middleware"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/push"
	"github.com/dukerupert/katalog/internal/store"
	ws "github.com/dukerupert/katalog/internal/websocket"
)

const (
	sessionSweepInterval = time.Minute
	cleanupInterval      = time.Hour
)

type Options struct {
	SessionTTL     time.Duration
	AllowedOrigins []string
	LoginRateLimit int
	Push           push.Config
	Export         backup.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	docs          *docstore.Store
	provider      *auth.Provider
	sessions      *app.Manager
	authH         *handler.AuthHandler
	pageH         *handler.PageHandler
	catalogH      *handler.CatalogHandler
	pushH         *handler.PushHandler
	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	metrics       *metrics.Metrics
	exporter      *backup.Manager
	pushScheduler *push.Scheduler
	opts          Options
	logger        *slog.Logger

	unsubscribeAuth func()
	cancel          context.CancelFunc
	done            chan struct{}
}

func New(db *sql.DB, m *metrics.Metrics, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	docs := docstore.New(db, m, logger.With("component", "docstore"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	adminStore := store.NewAdminStore(db)
	favStore := favorites.NewStore(store.NewLocalStorage(db), logger.With("component", "favorites"))

	provider := auth.NewProvider(userStore, sessionStore, opts.SessionTTL, logger.With("component", "auth"))

	sessionLogger := logger.With("component", "session")
	factory := func(token string) *app.Session {
		var sess *app.Session
		sess = app.NewSession(app.Config{
			Items:     docs.Collection(model.CollectionItems),
			Regions:   docs.Collection(model.CollectionRegions),
			Entries:   docs.Collection(model.CollectionManualEntries),
			Admins:    adminStore,
			Favorites: favStore,
			Logger:    sessionLogger,
			Metrics:   m,
			OnChange: func() {
				hub.Publish(token, ws.Message{Type: ws.TypeRefresh, Tab: string(sess.Tab())})
			},
		})
		return sess
	}
	sessions := app.NewManager(factory, opts.SessionTTL, m, sessionLogger)

	unsubscribe := provider.OnAuthStateChanged(func(c auth.StateChange) {
		sessions.HandleAuthChange(c)
		if c.User == nil {
			hub.Publish(c.Token, ws.Message{Type: ws.TypeSignedOut})
		}
	})

	tmpl, err := handler.NewTemplates(logger.With("component", "template"))
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("load templates: %w", err)
	}

	exporter := backup.NewManager(opts.Export, docs, store.NewExportStore(db), func(st backup.Status) {
		logger.Info("export status", "state", st.State, "error", st.Error)
	}, logger.With("component", "export"))

	s := &Server{
		db:              db,
		hub:             hub,
		docs:            docs,
		provider:        provider,
		sessions:        sessions,
		authH:           handler.NewAuthHandler(provider, opts.SessionTTL, tmpl, logger.With("component", "auth_handler")),
		pageH:           handler.NewPageHandler(tmpl, logger.With("component", "page")),
		catalogH:        handler.NewCatalogHandler(logger.With("component", "catalog")),
		sessionStore:    sessionStore,
		rateLimiter:     middleware.NewRateLimiter(),
		metrics:         m,
		exporter:        exporter,
		opts:            opts,
		logger:          logger,
		unsubscribeAuth: unsubscribe,
	}

	if opts.Push.Enabled() {
		pushStore := store.NewPushStore(db)
		svc := push.NewService(opts.Push)
		pushLogger := logger.With("component", "push")
		s.pushScheduler = push.NewScheduler(svc, pushStore, docs.Collection(model.CollectionManualEntries), pushLogger)
		s.pushH = handler.NewPushHandler(pushStore, svc, pushLogger)
	}

	return s, nil
}

// Sessions returns the registry of live browser sessions.
func (s *Server) Sessions() *app.Manager {
	return s.sessions
}

// Provider returns the auth provider.
func (s *Server) Provider() *auth.Provider {
	return s.provider
}

// Exporter returns the catalog export manager.
func (s *Server) Exporter() *backup.Manager {
	return s.exporter
}

// Start runs the background jobs: session expiry, stored session and rate
// limiter cleanup, overdue alerts and scheduled exports.
func (s *Server) Start(ctx context.Context) {
	s.sessions.Start(sessionSweepInterval)
	if s.pushScheduler != nil {
		s.pushScheduler.Start(ctx)
	}
	s.exporter.Start(ctx)

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// Stop ends the background jobs and closes every live session.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.exporter.Stop()
	if s.pushScheduler != nil {
		s.pushScheduler.Stop()
	}
	s.sessions.Stop()
	s.unsubscribeAuth()
}

func (s *Server) cleanup() {
	n, err := s.sessionStore.DeleteExpired()
	if err != nil {
		s.logger.Error("delete expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("deleted expired sessions", "count", n)
	}
	s.rateLimiter.Cleanup()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.provider, s.sessions)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"clients":  s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.opts.LoginRateLimit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Full page; runs the admin gate and renders the denied screen itself.
	mux.HandleFunc("GET /{$}", s.pageH.Index)

	// View router
	mux.Handle("GET /tabs/{tab}", admin(s.pageH.SelectTab))
	mux.Handle("GET /partials/active", admin(s.pageH.ActivePartial))
	mux.Handle("GET /partials/{tab}", admin(s.pageH.TabPartial))
	mux.Handle("POST /error/dismiss", admin(s.pageH.DismissError))
	mux.Handle("POST /favorites/toggle", admin(s.pageH.ToggleFavorite))

	// Items
	mux.Handle("POST /items", admin(s.catalogH.CreateItem))
	mux.Handle("POST /items/{id}", admin(s.catalogH.UpdateItem))
	mux.Handle("POST /items/{id}/delete", admin(s.catalogH.DeleteItem))

	// Regions
	mux.Handle("POST /regions", admin(s.catalogH.CreateRegion))
	mux.Handle("POST /regions/{id}", admin(s.catalogH.UpdateRegion))
	mux.Handle("POST /regions/{id}/delete", admin(s.catalogH.DeleteRegion))
	mux.Handle("POST /regions/{id}/items/{item_id}/unassign", admin(s.catalogH.UnassignItem))

	// Manual entries
	mux.Handle("POST /entries", admin(s.catalogH.CreateEntry))
	mux.Handle("POST /entries/{id}", admin(s.catalogH.UpdateEntry))
	mux.Handle("POST /entries/{id}/delete", admin(s.catalogH.DeleteEntry))

	// Push notification API routes
	if s.pushH != nil {
		mux.Handle("POST /api/push/subscribe", admin(s.pushH.Subscribe))
		mux.Handle("DELETE /api/push/subscriptions/{id}", admin(s.pushH.Unsubscribe))
		mux.Handle("GET /api/push/subscriptions", admin(s.pushH.ListSubscriptions))
		mux.Handle("GET /api/push/vapid-key", admin(s.pushH.GetVAPIDKey))
		mux.Handle("POST /api/push/test", admin(s.pushH.TestNotification))
	}

	// WebSocket
	keyOf := func(r *http.Request) string { return auth.SessionToken(r.Context()) }
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, keyOf, s.opts.AllowedOrigins, s.logger.With("component", "websocket")))
}
