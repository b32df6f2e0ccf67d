// package services defines the clients used to talk to Spotify and to the proxy itself
package services

import (
	"context"

	"github.com/321david123/spotify-feature/internal/models"
)

// PlaybackService is the subset of the Spotify Web API the now-playing resolver needs.
//
// Every call is authorized with the user's access token; implementations keep no per-user state.
type PlaybackService interface {
	// Me returns the user's profile.
	Me(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// CurrentlyPlaying returns the current playback, or nil when nothing is playing.
	CurrentlyPlaying(ctx context.Context, accessToken string) (*SpotifyPlayback, error)

	// RecentlyPlayed returns up to limit items of the user's play history, newest first.
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]SpotifyPlayHistory, error)
}

// Resolver produces playback snapshots for an access token.
type Resolver interface {
	Resolve(ctx context.Context, accessToken string) (models.PlaybackSnapshot, error)
}

// ArtistLookup aggregates catalog data for an artist name.
type ArtistLookup interface {
	Lookup(ctx context.Context, name string) (*models.ArtistInfo, error)
}
