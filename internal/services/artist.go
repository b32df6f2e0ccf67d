package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const maxArtistNameLen = 100

var (
	// ErrArtistSearch marks a failed catalog search.
	ErrArtistSearch = errors.New("failed to search for artist")
	// ErrArtistData marks a failure of one of the required fan-out branches.
	ErrArtistData = errors.New("failed to fetch artist data")
)

// AppTokenSource issues app-level access tokens.
type AppTokenSource interface {
	AppToken(ctx context.Context) (*oauth2.Token, error)
}

// ArtistOptions configures an [ArtistService].
type ArtistOptions struct {
	BaseURL    string        // Web API root, defaults to the public API
	Market     string        // market for top tracks and albums, defaults to US
	CacheTTL   time.Duration // zero disables caching
	HTTPClient *http.Client
	OnCache    func(hit bool)
	Logger     *log.Logger
}

// ArtistService aggregates an artist's details, top tracks and latest release using app credentials.
type ArtistService struct {
	tokens     AppTokenSource
	baseURL    string
	market     string
	httpClient *http.Client
	cache      *cache.Cache
	onCache    func(bool)
	logger     *log.Logger
}

// NewArtistService creates a new [ArtistService].
func NewArtistService(tokens AppTokenSource, opts ArtistOptions) *ArtistService {
	s := &ArtistService{
		tokens:     tokens,
		baseURL:    opts.BaseURL,
		market:     opts.Market,
		httpClient: opts.HTTPClient,
		onCache:    opts.OnCache,
		logger:     opts.Logger,
	}
	if s.baseURL == "" {
		s.baseURL = spotifyBaseURL
	}
	if !strings.HasSuffix(s.baseURL, "/") {
		s.baseURL += "/"
	}
	if s.market == "" {
		s.market = "US"
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// ValidateArtistName trims name and checks it is between 1 and 100 characters.
func ValidateArtistName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n == 0 || n > maxArtistNameLen {
		return "", fmt.Errorf("%w: artist name must be 1 to %d characters", shared.ErrInvalidInput, maxArtistNameLen)
	}
	return trimmed, nil
}

// Lookup searches for name and aggregates the best match.
//
// Artist details and top tracks are required; the latest release is optional and is left nil
// when its lookup fails.
func (s *ArtistService) Lookup(ctx context.Context, name string) (*models.ArtistInfo, error) {
	name, err := ValidateArtistName(name)
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(name)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			s.recordCache(true)
			return v.(*models.ArtistInfo), nil
		}
		s.recordCache(false)
	}

	tok, err := s.tokens.AppToken(ctx)
	if err != nil {
		return nil, err
	}
	client := spotify.New(s.authorized(tok), spotify.WithBaseURL(s.baseURL))

	res, err := client.Search(ctx, name, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtistSearch, catalogError("artist search", err))
	}
	if res.Artists == nil || len(res.Artists.Artists) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrArtistNotFound, name)
	}
	id := res.Artists.Artists[0].ID

	var (
		artist *spotify.FullArtist
		top    []spotify.FullTrack
		album  *spotify.SimpleAlbum
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := client.GetArtist(gctx, id)
		if err != nil {
			return catalogError("artist", err)
		}
		artist = a
		return nil
	})
	g.Go(func() error {
		tracks, err := client.GetArtistsTopTracks(gctx, id, s.market)
		if err != nil {
			return catalogError("top tracks", err)
		}
		top = tracks
		return nil
	})
	g.Go(func() error {
		page, err := client.GetArtistAlbums(gctx, id,
			[]spotify.AlbumType{spotify.AlbumTypeAlbum, spotify.AlbumTypeSingle},
			spotify.Market(s.market), spotify.Limit(1),
		)
		if err != nil {
			s.logger.Warn("artist albums lookup failed", "artist", id, "error", err)
			return nil
		}
		if len(page.Albums) > 0 {
			album = &page.Albums[0]
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtistData, err)
	}

	info := toArtistInfo(artist, top)
	if album != nil {
		info.LatestAlbum = s.latestAlbum(ctx, client, album)
	}

	if s.cache != nil {
		s.cache.Set(key, info, cache.DefaultExpiration)
	}
	return info, nil
}

func (s *ArtistService) latestAlbum(ctx context.Context, client *spotify.Client, album *spotify.SimpleAlbum) *models.LatestAlbum {
	page, err := client.GetAlbumTracks(ctx, album.ID, spotify.Market(s.market))
	if err != nil {
		s.logger.Warn("album tracks lookup failed", "album", album.ID, "error", err)
		return nil
	}

	latest := &models.LatestAlbum{
		Name:         album.Name,
		Images:       toImages(album.Images),
		ExternalURLs: album.ExternalURLs,
		Tracks:       make([]models.ArtistTrack, 0, len(page.Tracks)),
	}
	ref := latest.Ref()
	for _, t := range page.Tracks {
		latest.Tracks = append(latest.Tracks, models.ArtistTrack{
			ID:           string(t.ID),
			Name:         t.Name,
			Album:        ref,
			ExternalURLs: t.ExternalURLs,
			DurationMs:   int(t.Duration),
			PreviewURL:   optional(t.PreviewURL),
		})
	}
	return latest
}

// authorized returns a client that sends tok on every request over the configured transport.
func (s *ArtistService) authorized(tok *oauth2.Token) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: s.httpClient.Transport},
		Timeout:   s.httpClient.Timeout,
	}
}

func (s *ArtistService) recordCache(hit bool) {
	if s.onCache != nil {
		s.onCache(hit)
	}
}

func toArtistInfo(a *spotify.FullArtist, top []spotify.FullTrack) *models.ArtistInfo {
	info := &models.ArtistInfo{
		ID:           string(a.ID),
		Name:         a.Name,
		Images:       toImages(a.Images),
		ExternalURLs: a.ExternalURLs,
		Followers:    models.Followers{Total: int(a.Followers.Count)},
		Genres:       a.Genres,
		Popularity:   int(a.Popularity),
		TopTracks:    make([]models.ArtistTrack, 0, len(top)),
	}
	if info.Genres == nil {
		info.Genres = []string{}
	}

	for _, t := range top {
		info.TopTracks = append(info.TopTracks, models.ArtistTrack{
			ID:   string(t.ID),
			Name: t.Name,
			Album: models.AlbumRef{
				Name:         t.Album.Name,
				Images:       toImages(t.Album.Images),
				ExternalURLs: t.Album.ExternalURLs,
			},
			ExternalURLs: t.ExternalURLs,
			DurationMs:   int(t.Duration),
			Popularity:   int(t.Popularity),
			PreviewURL:   optional(t.PreviewURL),
		})
	}
	return info
}

func toImages(images []spotify.Image) []models.Image {
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		out = append(out, models.Image{URL: img.URL, Height: int(img.Height), Width: int(img.Width)})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// catalogError maps a zmb3 client error onto a [shared.ProviderError].
func catalogError(op string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return &shared.ProviderError{Op: op, StatusCode: statusOr(se.Status, http.StatusBadGateway), Body: []byte(se.Message)}
	}
	var sp *spotify.Error
	if errors.As(err, &sp) {
		return &shared.ProviderError{Op: op, StatusCode: statusOr(sp.Status, http.StatusBadGateway), Body: []byte(sp.Message)}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
