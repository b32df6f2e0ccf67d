// API client for the proxy's own HTTP surface, used by the terminal commands
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/321david123/spotify-feature/internal/models"
)

const defaultProxyURL = "http://127.0.0.1:3000"

// APIService provides methods for calling the proxy the way a browser widget would.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	cookie     string
}

// NewAPIService creates a new API service instance for the proxy at baseURL.
// cookie is sent verbatim as the Cookie header and carries the session.
func NewAPIService(baseURL string, client *http.Client, cookie string) *APIService {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		cookie:     cookie,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
}

// StatusError is a non-2xx answer from the proxy.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("proxy returned %d: %s", e.StatusCode, e.Message)
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.cookie != "" {
		req.Header.Set("Cookie", a.cookie)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		IsJSON:     json.Valid(body),
	}, nil
}

// getJSON performs a GET and decodes a 2xx JSON body into v.
func (a *APIService) getJSON(ctx context.Context, path string, v any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		if resp.IsJSON {
			var body struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(resp.Body, &body) == nil {
				se.Message = body.Error
			}
		}
		return se
	}

	if !resp.IsJSON {
		return fmt.Errorf("failed to decode response: body is not JSON")
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CurrentlyPlaying fetches the playback snapshot.
func (a *APIService) CurrentlyPlaying(ctx context.Context) (models.PlaybackSnapshot, error) {
	var snapshot models.PlaybackSnapshot
	if err := a.getJSON(ctx, "/currently-playing", &snapshot); err != nil {
		return models.PlaybackSnapshot{}, err
	}
	if snapshot.Kind == "" {
		snapshot.Kind = inferKind(snapshot)
	}
	return snapshot, nil
}

// Artist fetches the aggregated artist lookup for name.
func (a *APIService) Artist(ctx context.Context, name string) (*models.ArtistInfo, error) {
	var info models.ArtistInfo
	if err := a.getJSON(ctx, "/artist/"+url.PathEscape(name), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// inferKind tags snapshots from servers that do not send kind.
func inferKind(s models.PlaybackSnapshot) models.PlaybackKind {
	switch {
	case s.Track == nil:
		return models.KindEmpty
	case s.LastPlayed != nil:
		return models.KindLastPlayed
	default:
		return models.KindPlaying
	}
}
