// Package app holds the per-browser session state of the admin UI and the
// transitions that change it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/katalog/internal/docstore"
	"github.com/dukerupert/katalog/internal/favorites"
	"github.com/dukerupert/katalog/internal/metrics"
	"github.com/dukerupert/katalog/internal/mirror"
	"github.com/dukerupert/katalog/internal/model"
	"github.com/dukerupert/katalog/internal/overdue"
)

var (
	// ErrNotAdmin is returned by commands issued by a session that did not
	// pass the admin gate.
	ErrNotAdmin = errors.New("admin access required")
	// ErrNotSignedIn is returned by user actions without a signed-in user.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrUnknownItem is returned when an item is not in the local mirror.
	ErrUnknownItem = errors.New("unknown item")
)

// Collection is a writable, subscribable document collection.
type Collection interface {
	Add(ctx context.Context, v any) (string, error)
	Set(ctx context.Context, id string, v any) error
	Delete(ctx context.Context, id string) error
	Subscribe(onSnapshot func([]docstore.Document), onError func(error)) docstore.Unsubscribe
}

// AdminLookup reads the admin allow-list.
type AdminLookup interface {
	Get(userID string) (*model.Admin, error)
}

// FavoritesStore loads and saves a user's favorites without failing.
type FavoritesStore interface {
	Load(userID string) favorites.Map
	Save(userID string, m favorites.Map)
}

type Config struct {
	Items     Collection
	Regions   Collection
	Entries   Collection
	Admins    AdminLookup
	Favorites FavoritesStore
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
	// OnChange is called after any state change, with no session lock held.
	OnChange func()
}

// Session is the state of one browser session. It is only changed through
// its methods and is safe for concurrent use.
type Session struct {
	items   Collection
	regions Collection
	entries Collection

	admins    AdminLookup
	favStore  FavoritesStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	onChange  func()
	itemsM    *mirror.Mirror[model.Item]
	regionsM  *mirror.Mirror[model.Region]
	entriesM  *mirror.Mirror[model.ManualEntry]
	lifecycle sync.Mutex // serializes sign-in, re-gate and close

	mu         sync.Mutex
	user       *model.User
	isAdmin    bool
	favorites  favorites.Map
	errMsg     string
	tab        Tab
	hasOverdue bool
	closed     bool
}

func NewSession(cfg Config) *Session {
	s := &Session{
		items:     cfg.Items,
		regions:   cfg.Regions,
		entries:   cfg.Entries,
		admins:    cfg.Admins,
		favStore:  cfg.Favorites,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		onChange:  cfg.OnChange,
		favorites: favorites.Map{},
		tab:       TabSearch,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.itemsM = mirror.New[model.Item](model.CollectionItems, cfg.Items, s.logger, s.notify)
	s.regionsM = mirror.New[model.Region](model.CollectionRegions, cfg.Regions, s.logger, s.notify)
	s.entriesM = mirror.New[model.ManualEntry](model.CollectionManualEntries, cfg.Entries, s.logger, s.entriesChanged)
	return s
}

// SetUser applies an auth state change: nil signs out. Signing in runs the
// admin gate, loads the user's favorites and, for admins, opens the live
// collections. Any previous user's state is dropped first.
func (s *Session) SetUser(user *model.User) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopMirrors()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.user = user
	s.isAdmin = false
	s.favorites = favorites.Map{}
	s.errMsg = ""
	s.tab = TabSearch
	s.hasOverdue = false
	s.mu.Unlock()

	if user != nil {
		admin := s.checkAdmin(user.ID)
		favs := s.favStore.Load(user.ID)

		s.mu.Lock()
		s.isAdmin = admin
		s.favorites = favs
		s.mu.Unlock()

		if admin {
			s.startMirrors()
		}
	}
	s.notify()
}

// Regate re-reads the admin flag of the signed-in user and opens or
// releases the live collections when it changed.
func (s *Session) Regate() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	user, was, closed := s.user, s.isAdmin, s.closed
	s.mu.Unlock()
	if user == nil || closed {
		return
	}

	admin := s.checkAdmin(user.ID)
	if admin == was {
		return
	}

	s.mu.Lock()
	s.isAdmin = admin
	if !admin {
		s.errMsg = ""
		s.hasOverdue = false
	}
	s.mu.Unlock()

	if admin {
		s.startMirrors()
	} else {
		s.stopMirrors()
	}
	s.notify()
}

// Close releases all subscriptions. A closed session ignores SetUser.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopMirrors()
}

// Closed reports whether Close has released the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) checkAdmin(userID string) bool {
	rec, err := s.admins.Get(userID)
	if err != nil {
		s.logger.Error("admin lookup failed", "user_id", userID, "error", err)
		return false
	}
	return rec != nil && rec.IsAdmin
}

func (s *Session) startMirrors() {
	s.itemsM.Start()
	s.regionsM.Start()
	s.entriesM.Start()
}

func (s *Session) stopMirrors() {
	s.itemsM.Stop()
	s.regionsM.Stop()
	s.entriesM.Stop()
}

func (s *Session) entriesChanged() {
	has := overdue.HasOverdue(s.entriesM.Items(), s.now())
	s.mu.Lock()
	s.hasOverdue = has
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAdmin
}

func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Error returns the message of the last failed command, or "".
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Session) HasOverdue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOverdue
}

// Favorites returns a copy of the user's favorites.
func (s *Session) Favorites() favorites.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Clone()
}

func (s *Session) Items() []model.Item                { return s.itemsM.Items() }
func (s *Session) Regions() []model.Region            { return s.regionsM.Items() }
func (s *Session) ManualEntries() []model.ManualEntry { return s.entriesM.Items() }

func (s *Session) SelectTab(tab Tab) {
	s.mu.Lock()
	changed := s.tab != tab
	s.tab = tab
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) DismissError() {
	s.mu.Lock()
	had := s.errMsg != ""
	s.errMsg = ""
	s.mu.Unlock()
	if had {
		s.notify()
	}
}

// ToggleFavorite flips the favorite state of an item in a region, saves the
// favorites and returns the new state.
func (s *Session) ToggleFavorite(itemID, regionID string) (bool, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return false, ErrNotSignedIn
	}
	next := s.favorites.Toggle(itemID, regionID)
	s.favorites = next
	userID := s.user.ID
	s.mu.Unlock()

	s.favStore.Save(userID, next)
	s.notify()
	return next.IsFavorite(itemID, regionID), nil
}

// command runs one store write for an admitted session and records its
// outcome in the shared error slot.
func (s *Session) command(op, failMsg string, write func() error) error {
	if !s.IsAdmin() {
		return ErrNotAdmin
	}
	err := write()

	s.mu.Lock()
	if err != nil {
		s.errMsg = failMsg
	} else {
		s.errMsg = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("command failed", "op", op, "error", err)
		s.metrics.CommandFailed(op)
	}
	s.notify()
	return err
}

// AddItem creates an approved item.
func (s *Session) AddItem(ctx context.Context, item model.Item) error {
	item.ID = ""
	item.Approved = true
	return s.command("add_item", MsgAddItem, func() error {
		_, err := s.items.Add(ctx, item)
		return err
	})
}

// UpdateItem replaces the item with the same id.
func (s *Session) UpdateItem(ctx context.Context, item model.Item) error {
	return s.command("update_item", MsgUpdateItem, func() error {
		return s.items.Set(ctx, item.ID, item)
	})
}

func (s *Session) DeleteItem(ctx context.Context, id string) error {
	return s.command("delete_item", MsgDeleteItem, func() error {
		return s.items.Delete(ctx, id)
	})
}

func (s *Session) AddRegion(ctx context.Context, region model.Region) error {
	region.ID = ""
	return s.command("add_region", MsgAddRegion, func() error {
		_, err := s.regions.Add(ctx, region)
		return err
	})
}

func (s *Session) UpdateRegion(ctx context.Context, region model.Region) error {
	return s.command("update_region", MsgUpdateRegion, func() error {
		return s.regions.Set(ctx, region.ID, region)
	})
}

func (s *Session) DeleteRegion(ctx context.Context, id string) error {
	return s.command("delete_region", MsgDeleteRegion, func() error {
		return s.regions.Delete(ctx, id)
	})
}

func (s *Session) AddManualEntry(ctx context.Context, entry model.ManualEntry) error {
	entry.ID = ""
	return s.command("add_entry", MsgAddEntry, func() error {
		_, err := s.entries.Add(ctx, entry)
		return err
	})
}

func (s *Session) UpdateManualEntry(ctx context.Context, entry model.ManualEntry) error {
	return s.command("update_entry", MsgUpdateEntry, func() error {
		return s.entries.Set(ctx, entry.ID, entry)
	})
}

func (s *Session) DeleteManualEntry(ctx context.Context, id string) error {
	return s.command("delete_entry", MsgDeleteEntry, func() error {
		return s.entries.Delete(ctx, id)
	})
}

// SetItemRegion adds or removes a region from an item's regions and writes
// the whole item back.
func (s *Session) SetItemRegion(ctx context.Context, itemID, regionID string, assigned bool) error {
	var item model.Item
	found := false
	for _, it := range s.itemsM.Items() {
		if it.ID == itemID {
			item, found = it, true
			break
		}
	}
	if !found {
		return ErrUnknownItem
	}

	has := item.InRegion(regionID)
	switch {
	case assigned && !has:
		item.RegionIDs = append(slices.Clone(item.RegionIDs), regionID)
	case !assigned && has:
		item.RegionIDs = slices.DeleteFunc(slices.Clone(item.RegionIDs), func(id string) bool { return id == regionID })
	default:
		return nil
	}
	return s.UpdateItem(ctx, item)
}
