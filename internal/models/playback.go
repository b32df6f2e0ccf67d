package models

import "fmt"

// PlaybackKind tags the variant carried by a [PlaybackSnapshot].
type PlaybackKind string

const (
	KindEmpty      PlaybackKind = "empty"
	KindPlaying    PlaybackKind = "playing"
	KindLastPlayed PlaybackKind = "last_played"
)

// Track is the track metadata and timing carried by playing and last-played snapshots.
type Track struct {
	AlbumArtURL string   `json:"albumArtUrl"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	ProgressMs  int      `json:"progressMs"`
	DurationMs  int      `json:"durationMs"`
	TrackURL    string   `json:"trackUrl"`
	AlbumURL    string   `json:"albumUrl"`
	ArtistNames []string `json:"artistNames"`
	ArtistURLs  []string `json:"artistUrls"`
}

// clamp keeps ProgressMs within [0, DurationMs].
func (t *Track) clamp() {
	if t.DurationMs < 0 {
		t.DurationMs = 0
	}
	t.ProgressMs = max(0, min(t.ProgressMs, t.DurationMs))
}

// PlaybackSnapshot is a point-in-time description of the user's playback.
//
// Track is nil for [KindEmpty]. LastPlayed is only set for [KindLastPlayed] and holds the
// provider's played_at timestamp unmodified.
type PlaybackSnapshot struct {
	Kind      PlaybackKind `json:"kind"`
	IsPlaying bool         `json:"isPlaying"`
	*Track
	LastPlayed *string `json:"lastPlayed"`
	ProfileURL *string `json:"profileUrl"`
}

// NewPlayingSnapshot builds a [KindPlaying] snapshot. isPlaying mirrors the provider flag, so a paused
// track is still reported as the current one.
func NewPlayingSnapshot(t Track, isPlaying bool, profileURL *string) PlaybackSnapshot {
	t.clamp()
	return PlaybackSnapshot{Kind: KindPlaying, IsPlaying: isPlaying, Track: &t, ProfileURL: profileURL}
}

// NewLastPlayedSnapshot builds a [KindLastPlayed] snapshot with progress pinned to the end of the track.
func NewLastPlayedSnapshot(t Track, playedAt string, profileURL *string) PlaybackSnapshot {
	t.ProgressMs = t.DurationMs
	t.clamp()
	return PlaybackSnapshot{Kind: KindLastPlayed, Track: &t, LastPlayed: &playedAt, ProfileURL: profileURL}
}

// NewEmptySnapshot builds a [KindEmpty] snapshot.
func NewEmptySnapshot(profileURL *string) PlaybackSnapshot {
	return PlaybackSnapshot{Kind: KindEmpty, ProfileURL: profileURL}
}

// HasTrack reports whether the snapshot carries something to display.
func (s PlaybackSnapshot) HasTrack() bool {
	return s.Track != nil && s.Kind != KindEmpty
}

// Validate checks the variant tag against its payload and the progress bounds.
func (s PlaybackSnapshot) Validate() error {
	switch s.Kind {
	case KindEmpty:
		if s.Track != nil || s.IsPlaying {
			return fmt.Errorf("%w: empty snapshot carries a track", ErrInvalidModel)
		}
		return nil
	case KindPlaying, KindLastPlayed:
		if s.Track == nil {
			return fmt.Errorf("%w: %s snapshot without track", ErrInvalidModel, s.Kind)
		}
		if s.ProgressMs < 0 || s.ProgressMs > s.DurationMs {
			return fmt.Errorf("%w: progress %d outside [0, %d]", ErrInvalidModel, s.ProgressMs, s.DurationMs)
		}
		if s.Kind == KindLastPlayed && (s.LastPlayed == nil || s.IsPlaying) {
			return fmt.Errorf("%w: last played snapshot without timestamp", ErrInvalidModel)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidModel, s.Kind)
	}
}
