// Package favorites keeps a user's favorite items per region.
package favorites

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
)

// Map holds, for each region id, the ordered ids of the favorite items in
// that region. Toggle removes a region once its last item is removed; a
// stored region with an empty list is kept as it is.
type Map map[string][]string

// Key returns the storage key of a user's favorites.
func Key(userID string) string {
	return "favorites-" + userID
}

// IsFavorite reports whether the item is a favorite in the region.
func (m Map) IsFavorite(itemID, regionID string) bool {
	return slices.Contains(m[regionID], itemID)
}

// Toggle returns a copy of m with the (item, region) pair flipped. m itself
// is never modified.
func (m Map) Toggle(itemID, regionID string) Map {
	next := m.Clone()
	ids := next[regionID]
	if i := slices.Index(ids, itemID); i >= 0 {
		ids = slices.Delete(slices.Clone(ids), i, i+1)
	} else {
		ids = append(slices.Clone(ids), itemID)
	}
	if len(ids) == 0 {
		delete(next, regionID)
	} else {
		next[regionID] = ids
	}
	return next
}

func (m Map) Clone() Map {
	out := make(Map, len(m))
	for region, ids := range m {
		out[region] = slices.Clone(ids)
	}
	return out
}

// Encode returns the storage form: {"<regionId>": ["<itemId>", ...]}.
func Encode(m Map) (string, error) {
	if m == nil {
		m = Map{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode favorites: %w", err)
	}
	return string(b), nil
}

// Decode parses the storage form. Duplicate ids are dropped keeping the first
// occurrence. Regions with empty lists are kept, so Decode(Encode(m))
// equals m for every duplicate-free m.
func Decode(raw string) (Map, error) {
	var parsed map[string][]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	m := make(Map, len(parsed))
	for region, ids := range parsed {
		unique := make([]string, 0, len(ids))
		for _, id := range ids {
			if !slices.Contains(unique, id) {
				unique = append(unique, id)
			}
		}
		m[region] = unique
	}
	return m, nil
}

// Storage is a string key/value store.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

// Store loads and saves favorites. Failures are logged and never returned:
// a broken entry reads as empty and a failed write keeps the in-memory map.
type Store struct {
	storage Storage
	logger  *slog.Logger
}

func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{storage: storage, logger: logger}
}

// Load returns the stored favorites of a user, or an empty map.
func (s *Store) Load(userID string) Map {
	raw, ok, err := s.storage.GetItem(Key(userID))
	if err != nil {
		s.logger.Error("load favorites", "user_id", userID, "error", err)
		return Map{}
	}
	if !ok {
		return Map{}
	}
	m, err := Decode(raw)
	if err != nil {
		s.logger.Error("parse favorites, resetting", "user_id", userID, "error", err)
		return Map{}
	}
	return m
}

func (s *Store) Save(userID string, m Map) {
	raw, err := Encode(m)
	if err != nil {
		s.logger.Warn("encode favorites", "user_id", userID, "error", err)
		return
	}
	if err := s.storage.SetItem(Key(userID), raw); err != nil {
		s.logger.Warn("save favorites", "user_id", userID, "error", err)
	}
}
