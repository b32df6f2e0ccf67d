package server

import (
	"context"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	"golang.org/x/oauth2"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                         // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, extra ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                              // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request)                     // ServeHTTP implements http.Handler for the entire router
}

// TokenExchanger performs the user-facing token grants.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// AppTokens issues client-credentials tokens for catalog calls.
type AppTokens interface {
	AppToken(ctx context.Context) (*oauth2.Token, error)
}

// StateStore persists login state nonces until the callback consumes them.
type StateStore interface {
	Create(ctx context.Context, nonce string, ttl time.Duration) (*models.OAuthState, error)
	Consume(ctx context.Context, nonce string) (*models.OAuthState, error)
}
