package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/metrics"
	"github.com/321david123/spotify-feature/internal/repositories"
	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/321david123/spotify-feature/internal/web"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	providerTimeout = 15 * time.Second
)

// statePurger is implemented by state stores that can drop expired nonces.
type statePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Options are the collaborators of an [App].
type Options struct {
	Config   *shared.Config
	Tokens   TokenExchanger
	States   StateStore
	Resolver services.Resolver
	Artists  services.ArtistLookup
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// App is the proxy's HTTP surface.
type App struct {
	config  *shared.Config
	router  *BasicRouter
	cookies *CookieManager
	states  StateStore
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewApp builds the router and registers every route.
func NewApp(opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	sealer, err := newSealer(cfg.Session, logger)
	if err != nil {
		return nil, err
	}
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	cookies := NewCookieManager(sealer, cfg.Server.Production, cfg.Session.StateTTL.Duration)
	sessions := NewSessionRefresher(cookies, opts.Tokens, cfg.Session.RefreshWindow.Duration, m.RecordRefresh, logger)

	a := &App{
		config:  cfg,
		router:  NewBasicRouter(),
		cookies: cookies,
		states:  opts.States,
		metrics: m,
		logger:  logger,
	}

	a.router.Use(Recover(logger), Logging(logger.WithPrefix("http")), Instrument(m))
	a.router.Handler(NewAuthHandler(cfg, opts.Tokens, opts.States, cookies, logger))
	a.router.Handler(NewPlaybackHandler(opts.Resolver, sessions, logger))
	a.router.Handler(NewPageHandler(renderer, opts.Resolver, sessions, logger))

	limiter := rate.NewLimiter(artistLimit(cfg.Artist.RateLimit), max(1, cfg.Artist.Burst))
	onReject := func(r *http.Request) { m.RecordRateLimitHit(routeLabel(r)) }
	a.router.Handle(http.MethodGet, "/artist/{name}",
		NewArtistHandler(opts.Artists, cfg.Credentials.Spotify, logger),
		RateLimit(limiter, onReject),
	)
	a.router.Handle(http.MethodGet, "/metrics", m.Handler())

	return a, nil
}

func artistLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// newSealer decodes the configured keys, generating random ones when they are not set.
func newSealer(cfg shared.SessionConfig, logger *log.Logger) (*Sealer, error) {
	key := func(name, encoded string) ([]byte, error) {
		if encoded == "" {
			logger.Warn("no session key configured, generating a random one; sessions will not survive a restart", "key", name)
			return GenerateKey()
		}
		k, err := DecodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrInvalidConfig, name, err)
		}
		return k, nil
	}

	encryptKey, err := key("encrypt_key", cfg.EncryptKey)
	if err != nil {
		return nil, err
	}
	signKey, err := key("sign_key", cfg.SignKey)
	if err != nil {
		return nil, err
	}
	return NewSealer(encryptKey, signKey)
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (a *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	go a.purgeStates(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", srv.Addr, "public", a.config.Server.PublicBaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// purgeStates drops expired login nonces once per state TTL.
func (a *App) purgeStates(ctx context.Context) {
	purger, ok := a.states.(statePurger)
	ttl := a.config.Session.StateTTL.Duration
	if !ok || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("failed to purge expired states", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("purged expired states", "count", n)
			}
		}
	}
}

// NewFromConfig wires the production collaborators: instrumented Spotify clients over db.
func NewFromConfig(cfg *shared.Config, db *sql.DB, logger *log.Logger) (*App, error) {
	m := metrics.New()
	client := m.Client(providerTimeout)

	tokens := services.NewTokenClient(cfg.Credentials.Spotify, services.WithHTTPClient(client))
	resolver := services.NewNowPlayingResolver(services.NewSpotifyService("", client), logger.WithPrefix("resolver"))
	artists := services.NewArtistService(tokens, services.ArtistOptions{
		Market:     cfg.Artist.Market,
		CacheTTL:   cfg.Artist.CacheTTL.Duration,
		HTTPClient: client,
		OnCache:    m.RecordCache,
		Logger:     logger.WithPrefix("catalog"),
	})

	return NewApp(Options{
		Config:   cfg,
		Tokens:   tokens,
		States:   repositories.NewStateRepository(db),
		Resolver: resolver,
		Artists:  artists,
		Metrics:  m,
		Logger:   logger,
	})
}
