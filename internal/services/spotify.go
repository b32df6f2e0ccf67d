// Spotify Web API client for the user-scoped playback endpoints.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// ProfileURL returns the public profile link, or nil when the profile has none.
func (u *SpotifyUser) ProfileURL() *string {
	if u == nil {
		return nil
	}
	if link := u.ExternalURLs["spotify"]; link != "" {
		return &link
	}
	return nil
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Images       []SpotifyImage    `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []SpotifyArtist   `json:"artists"`
	Album        SpotifyAlbum      `json:"album"`
	DurationMS   int               `json:"duration_ms"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// SpotifyPlayback is the currently-playing payload.
type SpotifyPlayback struct {
	IsPlaying            bool          `json:"is_playing"`
	ProgressMS           int           `json:"progress_ms"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
	Item                 *SpotifyTrack `json:"item"`
}

// SpotifyPlayHistory is one recently-played entry. PlayedAt is kept as sent.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// ToTrack maps a Spotify track onto the snapshot [models.Track] with the given progress.
func (t *SpotifyTrack) ToTrack(progressMS int) models.Track {
	track := models.Track{
		Title:       t.Name,
		ProgressMs:  progressMS,
		DurationMs:  t.DurationMS,
		TrackURL:    t.ExternalURLs["spotify"],
		AlbumURL:    t.Album.ExternalURLs["spotify"],
		ArtistNames: make([]string, 0, len(t.Artists)),
		ArtistURLs:  make([]string, 0, len(t.Artists)),
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArtURL = t.Album.Images[0].URL
	}
	for _, a := range t.Artists {
		track.ArtistNames = append(track.ArtistNames, a.Name)
		track.ArtistURLs = append(track.ArtistURLs, a.ExternalURLs["spotify"])
	}
	track.Artist = strings.Join(track.ArtistNames, ", ")
	return track
}

// SpotifyService implements [PlaybackService] over raw HTTP.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a client for the Web API at baseURL (defaults to the public API).
func NewSpotifyService(baseURL string, client *http.Client) *SpotifyService {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SpotifyService{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// doRequest performs an authenticated GET against the Web API.
//
// The body is fully buffered so callers can tell 204 and empty 200 responses apart from
// populated ones. It returns the raw body, or a [shared.ProviderError] for non-2xx statuses.
func (s *SpotifyService) doRequest(ctx context.Context, op, endpoint, accessToken string) ([]byte, error) {
	if accessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &shared.ProviderError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	return bytes.TrimSpace(body), nil
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyService) Me(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	body, err := s.doRequest(ctx, "profile", "/me", accessToken)
	if err != nil {
		return nil, err
	}

	var user SpotifyUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &user, nil
}

// CurrentlyPlaying retrieves the user's current playback.
//
// 204, an empty body and a payload without an item all mean nothing is playing and yield nil.
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context, accessToken string) (*SpotifyPlayback, error) {
	body, err := s.doRequest(ctx, "currently playing", "/me/player/currently-playing", accessToken)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var playback SpotifyPlayback
	if err := json.Unmarshal(body, &playback); err != nil {
		return nil, fmt.Errorf("failed to decode currently playing: %w", err)
	}
	if playback.Item == nil {
		return nil, nil
	}
	return &playback, nil
}

// RecentlyPlayed retrieves the user's play history. limit is clamped to 1..50.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]SpotifyPlayHistory, error) {
	limit = max(1, min(limit, 50))

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	body, err := s.doRequest(ctx, "recently played", "/me/player/recently-played?"+q.Encode(), accessToken)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var response struct {
		Items []SpotifyPlayHistory `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode recently played: %w", err)
	}
	return response.Items, nil
}
