package app

import (
	"strings"

	"github.com/dukerupert/katalog/internal/favorites"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/overdue"
)

// View is a consistent read of a session for rendering.
type View struct {
	User       *model.User
	IsAdmin    bool
	Tab        Tab
	Items      []model.Item
	Regions    []model.Region
	Entries    []model.ManualEntry
	Favorites  favorites.Map
	Error      string
	LoadErrors []string
	HasOverdue bool
}

// SignedIn reports whether a user is signed in.
func (v View) SignedIn() bool {
	return v.User != nil
}

// Region returns the region with the given id.
func (v View) Region(id string) (model.Region, bool) {
	for _, r := range v.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return model.Region{}, false
}

// ItemsInRegion returns the items assigned to a region.
func (v View) ItemsInRegion(regionID string) []model.Item {
	var out []model.Item
	for _, it := range v.Items {
		if it.InRegion(regionID) {
			out = append(out, it)
		}
	}
	return out
}

// View returns the current state. The overdue flag is recomputed against
// the current time.
func (s *Session) View() View {
	items := s.itemsM.Items()
	regions := s.regionsM.Items()
	entries := s.entriesM.Items()
	has := overdue.HasOverdue(entries, s.now())

	var loadErrors []string
	for _, e := range []struct {
		name string
		err  error
	}{
		{model.CollectionItems, s.itemsM.Err()},
		{model.CollectionRegions, s.regionsM.Err()},
		{model.CollectionManualEntries, s.entriesM.Err()},
	} {
		if e.err != nil {
			loadErrors = append(loadErrors, LoadErrorMessage(e.name))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isAdmin {
		s.hasOverdue = has
	}
	return View{
		User:       s.user,
		IsAdmin:    s.isAdmin,
		Tab:        s.tab,
		Items:      items,
		Regions:    regions,
		Entries:    entries,
		Favorites:  s.favorites.Clone(),
		Error:      s.errMsg,
		LoadErrors: loadErrors,
		HasOverdue: s.isAdmin && s.hasOverdue,
	}
}

// Query filters the item search panel.
type Query struct {
	Text          string
	RegionID      string
	FavoritesOnly bool
}

// Search returns the items matching q in their stored order. Text matches
// name, description and article number without regard to case. With
// FavoritesOnly and no region, an item matches when it is a favorite in any
// of its regions.
func (v View) Search(q Query) []model.Item {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	var out []model.Item
	for _, it := range v.Items {
		if q.RegionID != "" && !it.InRegion(q.RegionID) {
			continue
		}
		if text != "" && !matchesText(it, text) {
			continue
		}
		if q.FavoritesOnly && !v.isFavorite(it, q.RegionID) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (v View) isFavorite(it model.Item, regionID string) bool {
	if regionID != "" {
		return v.Favorites.IsFavorite(it.ID, regionID)
	}
	for _, r := range it.RegionIDs {
		if v.Favorites.IsFavorite(it.ID, r) {
			return true
		}
	}
	return false
}

func matchesText(it model.Item, text string) bool {
	for _, field := range []string{it.Name, it.Description, it.ArticleNumber} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}
