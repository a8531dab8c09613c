package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/katalog/internal/app"
	"github.com/dukerupert/katalog/internal/favorites"
	"github.com/dukerupert/katalog/internal/overdue"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates renders the embedded HTML templates.
type Templates struct {
	t      *template.Template
	logger *slog.Logger
}

func NewTemplates(logger *slog.Logger) (*Templates, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"isFavorite": func(m favorites.Map, itemID, regionID string) bool {
			return m.IsFavorite(itemID, regionID)
		},
		"hasRegion": func(ids []string, regionID string) bool {
			for _, id := range ids {
				if id == regionID {
					return true
				}
			}
			return false
		},
		"dueDate": func(s string) string {
			t, ok := overdue.ParseDue(s)
			if !ok {
				return s
			}
			return t.Format("02.01.2006")
		},
		"tabLabel": func(t app.Tab) string { return t.Label() },
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			m := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				k, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				m[k] = pairs[i+1]
			}
			return m, nil
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t, logger: logger}, nil
}

func (t *Templates) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.t.ExecuteTemplate(w, name, data); err != nil {
		t.logger.Error("template error", "template", name, "error", err)
	}
}

func (t *Templates) renderPartial(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.t.ExecuteTemplate(w, name, data); err != nil {
		t.logger.Error("template error", "template", name, "error", err)
		fmt.Fprint(w, `<div class="alert alert-error">Template error</div>`)
	}
}
