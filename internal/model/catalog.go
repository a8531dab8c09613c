package model

// Collection names in the document store.
const (
	CollectionItems         = "items"
	CollectionRegions       = "regions"
	CollectionManualEntries = "manualEntries"
)

// Manual entry statuses. Any other value is accepted as an open state;
// StatusOfferReceived is terminal.
const (
	StatusOpen          = "offen"
	StatusOfferReceived = "angebot erhalten"
)

// Item is a catalog article. Field names follow the stored document keys.
type Item struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ArticleNumber string   `json:"articleNumber,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	RegionIDs     []string `json:"regionIds,omitempty"`
	Approved      bool     `json:"approved"`
}

// InRegion reports whether the item is offered in the given region.
func (i Item) InRegion(regionID string) bool {
	for _, id := range i.RegionIDs {
		if id == regionID {
			return true
		}
	}
	return false
}

type Region struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ManualEntry is a request tracked by status and optional due date.
type ManualEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Customer  string `json:"customer,omitempty"`
	RegionID  string `json:"regionId,omitempty"`
	Status    string `json:"status"`
	AbgabeBis string `json:"abgabeBis,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Done reports whether the entry reached the terminal status.
func (e ManualEntry) Done() bool {
	return e.Status == StatusOfferReceived
}
