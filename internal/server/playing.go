package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/charmbracelet/log"
)

// historyFailure is the body sent when the recently-played fallback fails.
type historyFailure struct {
	IsPlaying bool   `json:"isPlaying"`
	Error     string `json:"error"`
}

// PlaybackHandler serves the now-playing snapshot for the session in the request cookies.
type PlaybackHandler struct {
	resolver services.Resolver
	sessions *SessionRefresher
	logger   *log.Logger
}

// NewPlaybackHandler creates a [PlaybackHandler].
func NewPlaybackHandler(resolver services.Resolver, sessions *SessionRefresher, logger *log.Logger) *PlaybackHandler {
	return &PlaybackHandler{resolver: resolver, sessions: sessions, logger: logger.WithPrefix("playback")}
}

// Routes returns the HTTP routes this handler serves.
func (h *PlaybackHandler) Routes() []string {
	return []string{"GET /currently-playing"}
}

// ServeHTTP resolves the snapshot. No outbound call is made without a valid access cookie.
func (h *PlaybackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accessToken, err := h.sessions.AccessToken(w, r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Not authenticated"})
		return
	}

	snapshot, err := h.resolver.Resolve(r.Context(), accessToken)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *PlaybackHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrHistoryUnavailable):
		h.logger.Warn("recently played fallback failed", "error", err)
		writeJSON(w, providerStatus(err, http.StatusBadGateway), historyFailure{Error: "Could not fetch recently played"})
	case errors.Is(err, shared.ErrAPIRequest):
		status := providerStatus(err, http.StatusBadGateway)
		h.logger.Warn("currently playing failed", "status", status, "error", err)
		writeJSON(w, status, errorBody{Error: "Spotify API error", Status: status})
	case errors.Is(err, shared.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Not authenticated"})
	default:
		internalError(w, h.logger, "Failed to resolve playback", err)
	}
}

// SessionRefresher reads the access token from the cookies and refreshes it when it is about to expire.
type SessionRefresher struct {
	cookies *CookieManager
	tokens  TokenExchanger
	window  time.Duration
	onDone  func(ok bool)
	logger  *log.Logger
	now     func() time.Time
}

// NewSessionRefresher creates a [SessionRefresher]. onDone, when non-nil, observes every refresh attempt.
func NewSessionRefresher(cookies *CookieManager, tokens TokenExchanger, window time.Duration, onDone func(ok bool), logger *log.Logger) *SessionRefresher {
	return &SessionRefresher{
		cookies: cookies,
		tokens:  tokens,
		window:  window,
		onDone:  onDone,
		logger:  logger.WithPrefix("session"),
		now:     time.Now,
	}
}

// AccessToken returns the usable access token for r, writing fresh cookies to w after a refresh.
//
// A failed refresh is logged and the current token is returned.
func (s *SessionRefresher) AccessToken(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := s.cookies.Tokens(r)
	if err != nil {
		return "", err
	}
	if session.RefreshToken == "" || !session.ExpiresWithin(s.now(), s.window) {
		return session.AccessToken, nil
	}

	pair, err := s.refresh(r.Context(), session.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed, using current token", "error", err)
		return session.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = session.RefreshToken
	}
	if err := s.cookies.SetTokens(w, pair); err != nil {
		s.logger.Warn("failed to store refreshed tokens", "error", err)
	}
	return pair.AccessToken, nil
}

func (s *SessionRefresher) refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	pair, err := s.tokens.Refresh(ctx, refreshToken)
	if err == nil {
		err = pair.Validate()
	}
	if s.onDone != nil {
		s.onDone(err == nil)
	}
	return pair, err
}
