package server

import (
	"errors"
	"net/http"

	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/charmbracelet/log"
)

// ArtistHandler serves aggregated artist lookups with app credentials.
type ArtistHandler struct {
	artists services.ArtistLookup
	creds   shared.SpotifyConfig
	logger  *log.Logger
}

// NewArtistHandler creates an [ArtistHandler].
func NewArtistHandler(artists services.ArtistLookup, creds shared.SpotifyConfig, logger *log.Logger) *ArtistHandler {
	return &ArtistHandler{artists: artists, creds: creds, logger: logger.WithPrefix("artist")}
}

// ServeHTTP looks up the artist named by the {name} path value.
func (h *ArtistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, err := services.ValidateArtistName(r.PathValue("name"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Artist name must be between 1 and 100 characters"})
		return
	}
	if err := h.creds.RequireApp(); err != nil {
		h.logger.Error("server configuration error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Spotify credentials not configured"})
		return
	}

	info, err := h.artists.Lookup(r.Context(), name)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *ArtistHandler) fail(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Artist name must be between 1 and 100 characters"})
	case errors.Is(err, shared.ErrMissingCredentials):
		h.logger.Error("server configuration error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Spotify credentials not configured"})
	case errors.Is(err, shared.ErrAppToken):
		h.logger.Error("app token request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to get Spotify access token"})
	case errors.Is(err, shared.ErrArtistNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Artist not found"})
	case errors.Is(err, services.ErrArtistSearch):
		status := providerStatus(err, http.StatusInternalServerError)
		h.logger.Warn("artist search failed", "name", name, "status", status, "error", err)
		writeJSON(w, status, errorBody{Error: "Failed to search for artist"})
	case errors.Is(err, services.ErrArtistData):
		h.logger.Error("artist fan-out failed", "name", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch artist data"})
	default:
		h.logger.Error("artist lookup failed", "name", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch artist data"})
	}
}
