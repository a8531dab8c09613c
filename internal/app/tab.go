package app

// Tab is the panel shown to an admitted user.
type Tab string

const (
	TabSearch        Tab = "search"
	TabManageItems   Tab = "manageItems"
	TabManageRegions Tab = "manageRegions"
	TabManualEntries Tab = "manualEntries"
)

// Tabs lists the panels in navigation order.
var Tabs = []Tab{TabSearch, TabManageItems, TabManageRegions, TabManualEntries}

// ParseTab returns the tab named s.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Label returns the navigation label of the tab.
func (t Tab) Label() string {
	switch t {
	case TabSearch:
		return "Suchen"
	case TabManageItems:
		return "Artikel erstellen"
	case TabManageRegions:
		return "Gebiete verwalten"
	case TabManualEntries:
		return "Anfragen"
	}
	return string(t)
}
