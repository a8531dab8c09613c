package app

import "github.com/dukerupert/katalog/internal/model"

// User-facing messages, in the language of the admin UI.
const (
	MsgAccessDenied = "Zugriff verweigert."

	MsgAddItem    = "Fehler beim Hinzufügen des Artikels zur Datenbank."
	MsgUpdateItem = "Fehler beim Aktualisieren des Artikels in der Datenbank."
	MsgDeleteItem = "Fehler beim Löschen des Artikels aus der Datenbank."

	MsgAddRegion    = "Fehler beim Hinzufügen des Gebiets zur Datenbank."
	MsgUpdateRegion = "Fehler beim Aktualisieren des Gebiets in der Datenbank."
	MsgDeleteRegion = "Fehler beim Löschen des Gebiets aus der Datenbank."

	MsgAddEntry    = "Fehler beim Hinzufügen der Anfrage zur Datenbank."
	MsgUpdateEntry = "Fehler beim Aktualisieren der Anfrage in der Datenbank."
	MsgDeleteEntry = "Fehler beim Löschen der Anfrage aus der Datenbank."
)

var loadErrorMessages = map[string]string{
	model.CollectionItems:         "Fehler beim Laden der Artikel aus der Datenbank.",
	model.CollectionRegions:       "Fehler beim Laden der Gebiete aus der Datenbank.",
	model.CollectionManualEntries: "Fehler beim Laden der Anfragen aus der Datenbank.",
}

// LoadErrorMessage returns the message shown when a collection cannot be loaded.
func LoadErrorMessage(collection string) string {
	return loadErrorMessages[collection]
}
