package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ErrHistoryUnavailable marks a failed recently-played fallback.
var ErrHistoryUnavailable = errors.New("could not fetch recently played")

// NowPlayingResolver turns the current playback, or the latest play history entry, into a snapshot.
type NowPlayingResolver struct {
	spotify PlaybackService
	logger  *log.Logger
}

// NewNowPlayingResolver creates a resolver over svc.
func NewNowPlayingResolver(svc PlaybackService, logger *log.Logger) *NowPlayingResolver {
	if logger == nil {
		logger = log.Default()
	}
	return &NowPlayingResolver{spotify: svc, logger: logger}
}

// Resolve queries current playback and falls back to the most recent play when nothing is playing.
//
// The user's profile is fetched alongside; when that fails the snapshot simply has no profile URL.
// Provider failures are returned as [shared.ProviderError]; a failed fallback is additionally
// wrapped with [ErrHistoryUnavailable].
func (r *NowPlayingResolver) Resolve(ctx context.Context, accessToken string) (models.PlaybackSnapshot, error) {
	var (
		g          errgroup.Group
		profileURL *string
	)
	g.Go(func() error {
		user, err := r.spotify.Me(ctx, accessToken)
		if err != nil {
			r.logger.Warn("profile lookup failed", "error", err)
			return nil
		}
		profileURL = user.ProfileURL()
		return nil
	})

	snapshot, err := r.resolve(ctx, accessToken)
	_ = g.Wait()
	if err != nil {
		return models.PlaybackSnapshot{}, err
	}

	snapshot.ProfileURL = profileURL
	return snapshot, nil
}

func (r *NowPlayingResolver) resolve(ctx context.Context, accessToken string) (models.PlaybackSnapshot, error) {
	playback, err := r.spotify.CurrentlyPlaying(ctx, accessToken)
	if err != nil {
		return models.PlaybackSnapshot{}, err
	}
	if playback != nil {
		return models.NewPlayingSnapshot(playback.Item.ToTrack(playback.ProgressMS), playback.IsPlaying, nil), nil
	}

	history, err := r.spotify.RecentlyPlayed(ctx, accessToken, 1)
	if err != nil {
		return models.PlaybackSnapshot{}, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	if len(history) == 0 {
		return models.NewEmptySnapshot(nil), nil
	}

	last := history[0]
	return models.NewLastPlayedSnapshot(last.Track.ToTrack(last.Track.DurationMS), last.PlayedAt, nil), nil
}
