package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/katalog/internal/app"
	"github.com/dukerupert/katalog/internal/model"
)

// CatalogHandler turns the item, region and request forms into session
// commands. Store failures surface through the session's error banner, so
// every accepted form redirects back to the page.
type CatalogHandler struct {
	logger *slog.Logger
}

func NewCatalogHandler(logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{logger: logger}
}

func itemFromForm(r *http.Request) model.Item {
	return model.Item{
		Name:          formValue(r, "name"),
		Description:   formValue(r, "description"),
		ArticleNumber: formValue(r, "article_number"),
		Unit:          formValue(r, "unit"),
		RegionIDs:     formList(r, "region_ids"),
	}
}

func regionFromForm(r *http.Request) model.Region {
	return model.Region{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
	}
}

func entryFromForm(r *http.Request) model.ManualEntry {
	e := model.ManualEntry{
		Title:     formValue(r, "title"),
		Customer:  formValue(r, "customer"),
		RegionID:  formValue(r, "region_id"),
		Status:    formValue(r, "status"),
		AbgabeBis: formValue(r, "abgabe_bis"),
		Notes:     formValue(r, "notes"),
	}
	if e.Status == "" {
		e.Status = model.StatusOpen
	}
	return e
}

// finish maps a command result onto the response.
func (h *CatalogHandler) finish(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrNotAdmin):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, app.ErrUnknownItem):
		http.NotFound(w, r)
	default:
		redirectBack(w, r, "/")
	}
}

func session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	sess, ok := app.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return sess, ok
}

func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	item := itemFromForm(r)
	if item.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	h.finish(w, r, sess.AddItem(r.Context(), item))
}

// UpdateItem replaces the whole item; the approval flag is kept from the
// current copy.
func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	item := itemFromForm(r)
	if item.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	item.ID = r.PathValue("id")
	for _, cur := range sess.Items() {
		if cur.ID == item.ID {
			item.Approved = cur.Approved
			break
		}
	}
	h.finish(w, r, sess.UpdateItem(r.Context(), item))
}

func (h *CatalogHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	h.finish(w, r, sess.DeleteItem(r.Context(), r.PathValue("id")))
}

func (h *CatalogHandler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	region := regionFromForm(r)
	if region.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	h.finish(w, r, sess.AddRegion(r.Context(), region))
}

func (h *CatalogHandler) UpdateRegion(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	region := regionFromForm(r)
	if region.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	region.ID = r.PathValue("id")
	h.finish(w, r, sess.UpdateRegion(r.Context(), region))
}

func (h *CatalogHandler) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	h.finish(w, r, sess.DeleteRegion(r.Context(), r.PathValue("id")))
}

// UnassignItem removes a region from an item's regions.
func (h *CatalogHandler) UnassignItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	h.finish(w, r, sess.SetItemRegion(r.Context(), r.PathValue("item_id"), r.PathValue("id"), false))
}

func (h *CatalogHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	entry := entryFromForm(r)
	if entry.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	h.finish(w, r, sess.AddManualEntry(r.Context(), entry))
}

func (h *CatalogHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	entry := entryFromForm(r)
	if entry.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	entry.ID = r.PathValue("id")
	h.finish(w, r, sess.UpdateManualEntry(r.Context(), entry))
}

func (h *CatalogHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	h.finish(w, r, sess.DeleteManualEntry(r.Context(), r.PathValue("id")))
}
