package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/katalog/internal/app"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/overdue"
)

// PageHandler renders the tabbed admin UI from the browser's app session.
type PageHandler struct {
	templates *Templates
	now       func() time.Time
	logger    *slog.Logger
}

func NewPageHandler(tmpl *Templates, logger *slog.Logger) *PageHandler {
	return &PageHandler{templates: tmpl, now: time.Now, logger: logger}
}

type pageData struct {
	View       app.View
	Tabs       []app.Tab
	Query      app.Query
	Results    []model.Item
	Empty      model.Item
	EmptyEntry model.ManualEntry
	now        time.Time
}

// IsOverdue marks an entry row in the requests table.
func (d pageData) IsOverdue(e model.ManualEntry) bool {
	return overdue.IsOverdue(e, d.now)
}

type deniedData struct {
	Message string
}

func parseQuery(r *http.Request) app.Query {
	q := r.URL.Query()
	return app.Query{
		Text:          strings.TrimSpace(q.Get("q")),
		RegionID:      q.Get("region"),
		FavoritesOnly: q.Get("favorites") == "1",
	}
}

func (h *PageHandler) data(sess *app.Session, q app.Query) pageData {
	v := sess.View()
	return pageData{
		View:       v,
		Tabs:       app.Tabs,
		Query:      q,
		Results:    v.Search(q),
		EmptyEntry: model.ManualEntry{Status: model.StatusOpen},
		now:        h.now(),
	}
}

// Index renders the full page for the active tab. A full page load re-runs
// the admin gate, so a revoked admin loses access on the next reload.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	sess.Regate()
	if !sess.IsAdmin() {
		h.templates.render(w, http.StatusForbidden, "denied", deniedData{Message: app.MsgAccessDenied})
		return
	}

	h.templates.render(w, http.StatusOK, "layout", h.data(sess, parseQuery(r)))
}

// SelectTab switches the active tab.
func (h *PageHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tab, ok := app.ParseTab(r.PathValue("tab"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess.SelectTab(tab)

	if isHTMX(r) {
		h.templates.renderPartial(w, "panel", h.data(sess, parseQuery(r)))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TabPartial selects a tab and renders only its panel.
func (h *PageHandler) TabPartial(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tab, ok := app.ParseTab(r.PathValue("tab"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	sess.SelectTab(tab)
	h.templates.renderPartial(w, "panel", h.data(sess, parseQuery(r)))
}

// ActivePartial renders the navigation and the panel of the current tab, so
// the overdue indicator follows every snapshot. Browsers fetch it after a
// refresh notification.
func (h *PageHandler) ActivePartial(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.templates.renderPartial(w, "shell", h.data(sess, parseQuery(r)))
}

func (h *PageHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sess.DismissError()
	redirectBack(w, r, "/")
}

func (h *PageHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID := formValue(r, "item_id")
	regionID := formValue(r, "region_id")
	if itemID == "" || regionID == "" {
		http.Error(w, "item_id and region_id are required", http.StatusBadRequest)
		return
	}

	if _, err := sess.ToggleFavorite(itemID, regionID); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	redirectBack(w, r, "/")
}
