package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrMissingCode      = errors.New("authorization code not found")
	ErrInvalidState     = errors.New("invalid oauth state")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrAppToken         = errors.New("failed to obtain app access token")

	// API and service errors
	ErrAPIRequest     = errors.New("API request failed")
	ErrArtistNotFound = errors.New("artist not found")

	// Input validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// ProviderError is a non-success response from Spotify.
//
// StatusCode and Body are kept verbatim so handlers can pass them through.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *ProviderError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s: spotify returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: spotify returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets callers match provider failures with [ErrAPIRequest].
func (e *ProviderError) Unwrap() error {
	return ErrAPIRequest
}

// AsProviderError reports whether err carries a [ProviderError] and returns it.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
