package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type indexPage struct {
	Endpoints []indexEndpoint
}

type indexEndpoint struct {
	Method      string
	Path        string
	Description string
}

var indexEndpoints = []indexEndpoint{
	{Method: "POST", Path: "/explain", Description: `Explain a transaction. Body: {"tx_hash": "...", "simple_mode": true}`},
	{Method: "GET", Path: "/health", Description: "Liveness check."},
	{Method: "GET", Path: "/debug", Description: "Which provider credentials are loaded (masked)."},
	{Method: "GET", Path: "/metrics", Description: "Prometheus metrics."},
}

// handleIndex serves the API landing page
func handleIndex(renderer *TemplateRenderer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := renderer.Render(w, "index.html", indexPage{Endpoints: indexEndpoints}); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	})
}

// handleFavicon answers browsers' automatic favicon request without a 404.
func handleFavicon() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
