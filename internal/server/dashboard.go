package server

import (
	"net/http"

	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/web"
	"github.com/charmbracelet/log"
)

// PageHandler serves the HTML landing page and dashboard.
type PageHandler struct {
	renderer *web.Renderer
	resolver services.Resolver
	sessions *SessionRefresher
	logger   *log.Logger
}

// NewPageHandler creates a [PageHandler].
func NewPageHandler(renderer *web.Renderer, resolver services.Resolver, sessions *SessionRefresher, logger *log.Logger) *PageHandler {
	return &PageHandler{renderer: renderer, resolver: resolver, sessions: sessions, logger: logger.WithPrefix("pages")}
}

// Routes returns the HTTP routes this handler serves.
func (h *PageHandler) Routes() []string {
	return []string{"GET /{$}", "GET /dashboard"}
}

// ServeHTTP renders the requested page.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/dashboard" {
		h.dashboard(w, r)
		return
	}
	h.render(w, web.PageIndex, web.Index{Title: "Now Playing"})
}

// dashboard resolves the snapshot with the same rules as the JSON route. Visitors without a session
// get a link to /login.
func (h *PageHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	data := web.Dashboard{Title: "Spotify Activity"}

	accessToken, err := h.sessions.AccessToken(w, r)
	if err == nil {
		data.Authenticated = true
		data.Snapshot, err = h.resolver.Resolve(r.Context(), accessToken)
		if err != nil {
			h.logger.Warn("dashboard resolve failed", "error", err)
			data.Error = "Failed to fetch now playing data."
		}
	}

	h.render(w, web.PageDashboard, data)
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.Render(w, page, data); err != nil {
		internalError(w, h.logger, "Failed to render page", err)
	}
}
