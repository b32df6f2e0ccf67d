package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// AuthHandler serves the browser side of the authorization code flow: login, callback and logout.
//
// Implements the [Handler] interface for registration with a [Router].
type AuthHandler struct {
	creds         shared.SpotifyConfig
	publicBaseURL string
	stateTTL      time.Duration
	tokens        TokenExchanger
	states        StateStore
	cookies       *CookieManager
	logger        *log.Logger
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(cfg *shared.Config, tokens TokenExchanger, states StateStore, cookies *CookieManager, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		creds:         cfg.Credentials.Spotify,
		publicBaseURL: cfg.Server.PublicBaseURL,
		stateTTL:      cfg.Session.StateTTL.Duration,
		tokens:        tokens,
		states:        states,
		cookies:       cookies,
		logger:        logger.WithPrefix("auth"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback", "GET /logout"}
}

// ServeHTTP dispatches to the login, callback or logout step.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.logout(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login stores a fresh state nonce and redirects to the provider's consent page.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.RequireLogin(); err != nil {
		configError(w, h.logger, err)
		return
	}

	nonce := oauth2.GenerateVerifier()
	if _, err := h.states.Create(r.Context(), nonce, h.stateTTL); err != nil {
		internalError(w, h.logger, "Failed to initiate redirection to Spotify.", err)
		return
	}
	if err := h.cookies.SetState(w, nonce); err != nil {
		internalError(w, h.logger, "Failed to initiate redirection to Spotify.", err)
		return
	}

	authURL := h.tokens.AuthCodeURL(nonce)
	h.logger.Debug("redirecting to spotify", "url", authURL)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback validates the state, exchanges the code and stores the token cookies.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.RequireExchange(); err != nil {
		configError(w, h.logger, err)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied", "error", fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam), "description", query.Get("error_description"))
		writeText(w, http.StatusBadRequest, "Authorization Error: "+errParam)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "Authorization Error: Authorization code not found in callback from Spotify.")
		return
	}

	if err := h.checkState(r, query.Get("state")); err != nil {
		h.logger.Warn("rejected callback", "error", err)
		h.cookies.ClearState(w)
		writeText(w, http.StatusBadRequest, "Authorization Error: invalid state")
		return
	}
	h.cookies.ClearState(w)

	pair, err := h.tokens.Exchange(r.Context(), code)
	if err != nil {
		if pe, ok := shared.AsProviderError(err); ok {
			h.logger.Error("token exchange rejected", "status", pe.StatusCode, "body", string(pe.Body))
			writeJSON(w, providerStatus(err, http.StatusBadGateway), errorBody{
				Error:   "Spotify API error",
				Message: providerDescription(pe, "Failed to fetch access token from Spotify."),
				Details: providerDetails(pe),
			})
			return
		}
		internalError(w, h.logger, "An unexpected error occurred during the Spotify callback process.", err)
		return
	}

	if err := h.cookies.SetTokens(w, pair); err != nil {
		internalError(w, h.logger, "An unexpected error occurred during the Spotify callback process.", err)
		return
	}

	h.logger.Info("login complete", "expires_in", pair.ExpiresIn)
	http.Redirect(w, r, h.publicBaseURL+"/dashboard", http.StatusFound)
}

// checkState requires the query state to match the sealed cookie and to be consumable exactly once.
func (h *AuthHandler) checkState(r *http.Request, state string) error {
	if state == "" {
		return errors.Join(shared.ErrInvalidState, errors.New("state parameter missing"))
	}

	nonce, err := h.cookies.State(r)
	if err != nil {
		return err
	}
	if nonce != state {
		return errors.Join(shared.ErrInvalidState, errors.New("state does not match cookie"))
	}

	_, err = h.states.Consume(r.Context(), nonce)
	return err
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	h.cookies.ClearState(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
