package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/321david123/spotify-feature/internal/metrics"
	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/repositories"
	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	th "github.com/321david123/spotify-feature/internal/testing"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	testClientID = "client-id"
	testSecret   = "client-secret"

	routeToken   = "POST /api/token"
	routeMe      = "GET /me"
	routePlaying = "GET /me/player/currently-playing"
	routeHistory = "GET /me/player/recently-played"
	routeSearch  = "GET /search"
)

var (
	testEncryptKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, KeySize))
	testSignKey    = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, KeySize))
)

const playingBody = `{
  "is_playing": true,
  "progress_ms": 42000,
  "item": {
    "id": "t1",
    "name": "Song",
    "duration_ms": 180000,
    "external_urls": {"spotify": "https://open.spotify.com/track/t1"},
    "album": {
      "name": "Album",
      "images": [{"url": "https://i.scdn.co/image/1", "height": 640, "width": 640}],
      "external_urls": {"spotify": "https://open.spotify.com/album/al1"}
    },
    "artists": [{"name": "Artist", "external_urls": {"spotify": "https://open.spotify.com/artist/a1"}}]
  }
}`

// tokenEndpoint answers every grant type the proxy uses and counts them.
type tokenEndpoint struct {
	t     *testing.T
	calls map[string]*atomic.Int32
	fail  http.HandlerFunc
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	return &tokenEndpoint{t: t, calls: map[string]*atomic.Int32{
		"authorization_code": {},
		"refresh_token":      {},
		"client_credentials": {},
	}}
}

func (e *tokenEndpoint) count(grant string) int {
	return int(e.calls[grant].Load())
}

func (e *tokenEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		e.t.Errorf("bad token form: %v", err)
	}
	grant := r.PostForm.Get("grant_type")
	if c, ok := e.calls[grant]; ok {
		c.Add(1)
	}
	if e.fail != nil {
		e.fail(w, r)
		return
	}

	var body map[string]any
	switch grant {
	case "authorization_code":
		body = map[string]any{"access_token": "AT", "refresh_token": "RT", "expires_in": 3600, "token_type": "Bearer"}
	case "refresh_token":
		body = map[string]any{"access_token": "AT2", "expires_in": 3600, "token_type": "Bearer"}
	case "client_credentials":
		body = map[string]any{"access_token": "APP", "expires_in": 3600, "token_type": "Bearer"}
	default:
		e.t.Errorf("unexpected grant %q", grant)
	}
	th.TokenHandler(e.t, testClientID, testSecret, body)(w, r)
}

type fixture struct {
	app     *App
	stub    *th.Stub
	tokens  *tokenEndpoint
	states  *repositories.StateRepository
	metrics *metrics.Metrics
	config  *shared.Config
}

func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify = shared.SpotifyConfig{
		ClientID:     testClientID,
		ClientSecret: testSecret,
		RedirectURI:  "http://127.0.0.1:3000/callback",
	}
	cfg.Server.PublicBaseURL = "http://127.0.0.1:3000"
	cfg.Session.EncryptKey = testEncryptKey
	cfg.Session.SignKey = testSignKey
	cfg.Artist.RateLimit = 0
	return cfg
}

func newFixture(t *testing.T, routes map[string]http.HandlerFunc, configure ...func(*shared.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	f := &fixture{tokens: newTokenEndpoint(t), metrics: metrics.New(), config: cfg}
	if routes == nil {
		routes = map[string]http.HandlerFunc{}
	}
	routes[routeToken] = f.tokens.handler
	f.stub = th.NewStub(t, routes)

	db, err := shared.OpenDatabase(context.Background(), shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	f.states = repositories.NewStateRepository(db)

	logger := log.New(io.Discard)
	client := f.stub.Client()
	tokens := services.NewTokenClient(cfg.Credentials.Spotify,
		services.WithEndpoint(f.stub.URL+"/authorize", f.stub.URL+"/api/token"),
		services.WithHTTPClient(client),
	)

	f.app, err = NewApp(Options{
		Config:   cfg,
		Tokens:   tokens,
		States:   f.states,
		Resolver: services.NewNowPlayingResolver(services.NewSpotifyService(f.stub.URL, client), logger),
		Artists: services.NewArtistService(tokens, services.ArtistOptions{
			BaseURL:    f.stub.URL,
			HTTPClient: client,
			CacheTTL:   time.Minute,
			OnCache:    f.metrics.RecordCache,
			Logger:     logger,
		}),
		Metrics: f.metrics,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return f
}

func (f *fixture) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

// session returns sealed token cookies for pair.
func (f *fixture) session(t *testing.T, pair models.TokenPair) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := f.app.cookies.SetTokens(rec, pair); err != nil {
		t.Fatalf("SetTokens failed: %v", err)
	}
	return rec.Result().Cookies()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return body
}

// login runs GET /login and returns the state nonce and the state cookie.
func (f *fixture) login(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := f.get("/login")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302 from /login, got %d: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	cookie := findCookie(rec.Result().Cookies(), StateCookie)
	if cookie == nil {
		t.Fatal("login did not set the state cookie")
	}
	return loc.Query().Get("state"), cookie
}

func TestLogin(t *testing.T) {
	t.Run("redirects to the authorize URL", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.get("/login")

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("bad Location: %v", err)
		}
		if !strings.HasPrefix(loc.String(), f.stub.URL+"/authorize") {
			t.Errorf("unexpected authorize URL %s", loc)
		}

		q := loc.Query()
		checks := map[string]string{
			"response_type": "code",
			"client_id":     testClientID,
			"redirect_uri":  "http://127.0.0.1:3000/callback",
			"scope":         "user-read-currently-playing user-read-recently-played",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		if q.Get("state") == "" {
			t.Error("expected a state parameter")
		}

		c := findCookie(rec.Result().Cookies(), StateCookie)
		if c == nil {
			t.Fatal("expected oauth_state cookie")
		}
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Secure {
			t.Errorf("unexpected state cookie flags: %+v", c)
		}
		if c.MaxAge != 600 {
			t.Errorf("expected state Max-Age 600, got %d", c.MaxAge)
		}

		n, err := f.states.Count(context.Background())
		if err != nil || n != 1 {
			t.Errorf("expected one stored state, got %d (%v)", n, err)
		}
	})

	t.Run("configuration error", func(t *testing.T) {
		for name, configure := range map[string]func(*shared.Config){
			"no client id":    func(c *shared.Config) { c.Credentials.Spotify.ClientID = "" },
			"no redirect uri": func(c *shared.Config) { c.Credentials.Spotify.RedirectURI = "" },
		} {
			t.Run(name, func(t *testing.T) {
				f := newFixture(t, nil, configure)
				rec := f.get("/login")

				if rec.Code != http.StatusInternalServerError {
					t.Fatalf("expected 500, got %d", rec.Code)
				}
				if loc := rec.Header().Get("Location"); loc != "" {
					t.Errorf("expected no Location header, got %q", loc)
				}
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
					t.Errorf("expected text/plain, got %q", ct)
				}
				if !strings.HasPrefix(rec.Body.String(), "Server Configuration Error:") {
					t.Errorf("unexpected body %q", rec.Body.String())
				}
			})
		}
	})

	t.Run("secure cookies in production", func(t *testing.T) {
		f := newFixture(t, nil, func(c *shared.Config) { c.Server.Production = true })
		_, c := f.login(t)
		if !c.Secure {
			t.Error("expected Secure state cookie in production")
		}
	})
}

func TestCallback(t *testing.T) {
	t.Run("exchanges the code and sets session cookies", func(t *testing.T) {
		f := newFixture(t, nil)
		state, stateCookie := f.login(t)

		rec := f.get("/callback?code=abc&state="+url.QueryEscape(state), stateCookie)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "http://127.0.0.1:3000/dashboard" {
			t.Errorf("unexpected redirect %q", loc)
		}
		if got := f.tokens.count("authorization_code"); got != 1 {
			t.Errorf("expected one exchange, got %d", got)
		}

		cookies := rec.Result().Cookies()
		access := findCookie(cookies, AccessCookie)
		refresh := findCookie(cookies, RefreshCookie)
		if access == nil || refresh == nil {
			t.Fatalf("expected both token cookies, got %v", cookies)
		}
		if access.MaxAge != 3600 {
			t.Errorf("expected access Max-Age 3600, got %d", access.MaxAge)
		}
		if refresh.MaxAge != 0 {
			t.Errorf("expected refresh cookie without Max-Age, got %d", refresh.MaxAge)
		}
		for _, c := range []*http.Cookie{access, refresh} {
			if !c.HttpOnly || c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
				t.Errorf("unexpected flags on %s: %+v", c.Name, c)
			}
			if c.Value == "AT" || c.Value == "RT" {
				t.Errorf("%s cookie holds the raw token", c.Name)
			}
		}
		if c := findCookie(cookies, StateCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("expected state cookie to be cleared, got %+v", c)
		}

		req := httptest.NewRequest(http.MethodGet, "/currently-playing", nil)
		req.AddCookie(access)
		req.AddCookie(refresh)
		session, err := f.app.cookies.Tokens(req)
		if err != nil {
			t.Fatalf("Tokens failed: %v", err)
		}
		if session.AccessToken != "AT" || session.RefreshToken != "RT" {
			t.Errorf("unexpected session %+v", session)
		}
	})

	t.Run("provider error parameter", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.get("/callback?error=access_denied")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if got := rec.Body.String(); got != "Authorization Error: access_denied" {
			t.Errorf("unexpected body %q", got)
		}
		if f.stub.Total() != 0 {
			t.Error("expected no outbound requests")
		}
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.get("/callback")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Body.String(), "Authorization Error: Authorization code not found") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("configuration error", func(t *testing.T) {
		f := newFixture(t, nil, func(c *shared.Config) { c.Credentials.Spotify.ClientSecret = "" })
		rec := f.get("/callback?code=abc")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Body.String(), "Server Configuration Error:") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("rejects bad state before exchanging", func(t *testing.T) {
		f := newFixture(t, nil)
		state, stateCookie := f.login(t)

		tests := []struct {
			name    string
			target  string
			cookies []*http.Cookie
		}{
			{"no state", "/callback?code=abc", []*http.Cookie{stateCookie}},
			{"mismatch", "/callback?code=abc&state=other", []*http.Cookie{stateCookie}},
			{"no cookie", "/callback?code=abc&state=" + url.QueryEscape(state), nil},
			{"tampered cookie", "/callback?code=abc&state=" + url.QueryEscape(state),
				[]*http.Cookie{{Name: StateCookie, Value: stateCookie.Value + "x"}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.get(tt.target, tt.cookies...)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d", rec.Code)
				}
				if rec.Body.String() != "Authorization Error: invalid state" {
					t.Errorf("unexpected body %q", rec.Body.String())
				}
			})
		}
		if got := f.tokens.count("authorization_code"); got != 0 {
			t.Errorf("expected no exchange, got %d", got)
		}
	})

	t.Run("rejects a replayed state", func(t *testing.T) {
		f := newFixture(t, nil)
		state, stateCookie := f.login(t)
		target := "/callback?code=abc&state=" + url.QueryEscape(state)

		if rec := f.get(target, stateCookie); rec.Code != http.StatusFound {
			t.Fatalf("expected first callback to succeed, got %d", rec.Code)
		}
		if rec := f.get(target, stateCookie); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected replay to fail, got %d", rec.Code)
		}
		if got := f.tokens.count("authorization_code"); got != 1 {
			t.Errorf("expected one exchange, got %d", got)
		}
	})

	t.Run("passes provider failures through", func(t *testing.T) {
		f := newFixture(t, nil)
		f.tokens.fail = th.JSON(http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid authorization code",
		})
		state, stateCookie := f.login(t)

		rec := f.get("/callback?code=bad&state="+url.QueryEscape(state), stateCookie)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "Spotify API error" || body["message"] != "Invalid authorization code" {
			t.Errorf("unexpected body %v", body)
		}
		details, ok := body["details"].(map[string]any)
		if !ok || details["error"] != "invalid_grant" {
			t.Errorf("expected provider payload in details, got %v", body["details"])
		}
		if findCookie(rec.Result().Cookies(), AccessCookie) != nil {
			t.Error("no session cookie should be set on failure")
		}
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get("/logout")

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := findCookie(rec.Result().Cookies(), name)
		if c == nil || c.MaxAge >= 0 {
			t.Errorf("expected %s to be cleared, got %+v", name, c)
		}
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	pair := models.TokenPair{AccessToken: "AT", RefreshToken: "RT", ExpiresIn: 3600}

	t.Run("unauthenticated requests make no outbound calls", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{routePlaying: th.Raw(http.StatusOK, playingBody)})
		valid := f.session(t, pair)
		_, state := f.login(t)

		tests := []struct {
			name    string
			cookies []*http.Cookie
		}{
			{"no cookies", nil},
			{"refresh only", []*http.Cookie{findCookie(valid, RefreshCookie)}},
			{"tampered", []*http.Cookie{{Name: AccessCookie, Value: findCookie(valid, AccessCookie).Value[1:]}}},
			{"raw token", []*http.Cookie{{Name: AccessCookie, Value: "AT"}}},
			{"relabelled state cookie", []*http.Cookie{{Name: AccessCookie, Value: state.Value}}},
			{"relabelled refresh cookie", []*http.Cookie{{Name: AccessCookie, Value: findCookie(valid, RefreshCookie).Value}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.get("/currently-playing", tt.cookies...)
				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected 401, got %d", rec.Code)
				}
				if body := decodeBody(t, rec); body["error"] != "Not authenticated" {
					t.Errorf("unexpected body %v", body)
				}
			})
		}
		if f.stub.Total() != 0 {
			t.Errorf("expected no outbound requests, got %d", f.stub.Total())
		}
	})

	t.Run("playing", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{
			routePlaying: func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer AT" {
					t.Errorf("unexpected Authorization %q", got)
				}
				th.Raw(http.StatusOK, playingBody)(w, r)
			},
			routeMe: th.Raw(http.StatusOK, `{"id":"u1","external_urls":{"spotify":"https://open.spotify.com/user/u1"}}`),
		})

		rec := f.get("/currently-playing", f.session(t, pair)...)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var snap models.PlaybackSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("bad snapshot: %v", err)
		}
		if snap.Kind != models.KindPlaying || !snap.IsPlaying || snap.Title != "Song" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if snap.ProgressMs != 42000 || snap.DurationMs != 180000 {
			t.Errorf("unexpected timing %d/%d", snap.ProgressMs, snap.DurationMs)
		}
		if snap.ProfileURL == nil || *snap.ProfileURL != "https://open.spotify.com/user/u1" {
			t.Errorf("unexpected profile %v", snap.ProfileURL)
		}
		if f.stub.Hits(routeHistory) != 0 {
			t.Error("history should not be queried while playing")
		}
	})

	t.Run("refreshes a token close to expiry", func(t *testing.T) {
		var seen atomic.Value
		f := newFixture(t, map[string]http.HandlerFunc{
			routePlaying: func(w http.ResponseWriter, r *http.Request) {
				seen.Store(r.Header.Get("Authorization"))
				th.Raw(http.StatusOK, playingBody)(w, r)
			},
		})
		near := models.TokenPair{AccessToken: "AT", RefreshToken: "RT", ExpiresIn: 60}

		rec := f.get("/currently-playing", f.session(t, near)...)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := f.tokens.count("refresh_token"); got != 1 {
			t.Errorf("expected one refresh, got %d", got)
		}
		if got := seen.Load(); got != "Bearer AT2" {
			t.Errorf("expected refreshed token upstream, got %v", got)
		}

		cookies := rec.Result().Cookies()
		access := findCookie(cookies, AccessCookie)
		refresh := findCookie(cookies, RefreshCookie)
		if access == nil || access.MaxAge != 3600 {
			t.Fatalf("expected a renewed access cookie, got %+v", access)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(access)
		req.AddCookie(refresh)
		session, err := f.app.cookies.Tokens(req)
		if err != nil || session.AccessToken != "AT2" || session.RefreshToken != "RT" {
			t.Errorf("unexpected renewed session %+v (%v)", session, err)
		}
		if got := testutil.ToFloat64(f.metrics.TokenRefreshes.WithLabelValues("success")); got != 1 {
			t.Errorf("expected one successful refresh metric, got %v", got)
		}
	})

	t.Run("refresh failure keeps the current token", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{routePlaying: th.Raw(http.StatusOK, playingBody)})
		f.tokens.fail = th.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		near := models.TokenPair{AccessToken: "AT", RefreshToken: "RT", ExpiresIn: 60}

		rec := f.get("/currently-playing", f.session(t, near)...)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if findCookie(rec.Result().Cookies(), AccessCookie) != nil {
			t.Error("no cookie should be written after a failed refresh")
		}
		if got := testutil.ToFloat64(f.metrics.TokenRefreshes.WithLabelValues("failure")); got != 1 {
			t.Errorf("expected one failed refresh metric, got %v", got)
		}
	})

	t.Run("no refresh outside the window", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{routePlaying: th.Raw(http.StatusOK, playingBody)})
		f.get("/currently-playing", f.session(t, pair)...)
		if got := f.tokens.count("refresh_token"); got != 0 {
			t.Errorf("expected no refresh, got %d", got)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{
			routePlaying: th.Status(http.StatusNoContent),
			routeHistory: th.Raw(http.StatusOK, `{"items":[]}`),
		})

		rec := f.get("/currently-playing", f.session(t, pair)...)
		body := decodeBody(t, rec)
		if rec.Code != http.StatusOK || body["kind"] != "empty" || body["isPlaying"] != false {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
		if v, ok := body["lastPlayed"]; !ok || v != nil {
			t.Errorf("expected lastPlayed null, got %v", v)
		}
	})

	t.Run("history failure passes the status through", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{
			routePlaying: th.Status(http.StatusNoContent),
			routeHistory: th.Raw(http.StatusForbidden, `{"error":{"status":403,"message":"Insufficient client scope"}}`),
		})

		rec := f.get("/currently-playing", f.session(t, pair)...)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["isPlaying"] != false || body["error"] != "Could not fetch recently played" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("provider failure passes the status through", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{
			routePlaying: th.Raw(http.StatusTooManyRequests, `{"error":{"status":429,"message":"slow down"}}`),
		})

		rec := f.get("/currently-playing", f.session(t, pair)...)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "Spotify API error" || body["status"] != float64(http.StatusTooManyRequests) {
			t.Errorf("unexpected body %v", body)
		}
	})
}

func TestArtist(t *testing.T) {
	searchFound := th.Raw(http.StatusOK, `{"artists":{"items":[{"id":"a1","name":"Artist"}],"total":1}}`)
	catalog := func() map[string]http.HandlerFunc {
		return map[string]http.HandlerFunc{
			routeSearch: searchFound,
			"GET /artists/a1": th.Raw(http.StatusOK, `{"id":"a1","name":"Artist","genres":["pop"],"popularity":80,
				"followers":{"total":1000},"images":[],"external_urls":{"spotify":"https://open.spotify.com/artist/a1"}}`),
			"GET /artists/a1/top-tracks": th.Raw(http.StatusOK, `{"tracks":[]}`),
			"GET /artists/a1/albums":     th.Raw(http.StatusOK, `{"items":[]}`),
		}
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, catalog())
		rec := f.get("/artist/Artist")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["id"] != "a1" || body["latestAlbum"] != nil {
			t.Errorf("unexpected body %v", body)
		}
		if got := f.tokens.count("client_credentials"); got != 1 {
			t.Errorf("expected one app token request, got %d", got)
		}
	})

	t.Run("cached within TTL", func(t *testing.T) {
		f := newFixture(t, catalog())
		f.get("/artist/Artist")
		f.get("/artist/%20artist%20")

		if got := f.stub.Hits(routeSearch); got != 1 {
			t.Errorf("expected one search, got %d", got)
		}
		if got := testutil.ToFloat64(f.metrics.ArtistCache.WithLabelValues("hit")); got != 1 {
			t.Errorf("expected one cache hit, got %v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		routes := catalog()
		routes[routeSearch] = th.Raw(http.StatusOK, `{"artists":{"items":[],"total":0}}`)
		f := newFixture(t, routes)

		rec := f.get("/artist/nobody")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Artist not found" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newFixture(t, catalog())
		rec := f.get("/artist/" + strings.Repeat("a", 101))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if f.stub.Total() != 0 {
			t.Error("expected no outbound requests")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t, catalog(), func(c *shared.Config) { c.Credentials.Spotify.ClientSecret = "" })
		rec := f.get("/artist/Artist")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Spotify credentials not configured" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("app token failure", func(t *testing.T) {
		f := newFixture(t, catalog())
		f.tokens.fail = th.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

		rec := f.get("/artist/Artist")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Failed to get Spotify access token" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("search failure passes the status through", func(t *testing.T) {
		routes := catalog()
		routes[routeSearch] = th.Raw(http.StatusServiceUnavailable, `{"error":{"status":503,"message":"down"}}`)
		f := newFixture(t, routes)

		rec := f.get("/artist/Artist")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Failed to search for artist" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("required branch failure", func(t *testing.T) {
		routes := catalog()
		routes["GET /artists/a1/top-tracks"] = th.Raw(http.StatusInternalServerError, `{"error":{"status":500,"message":"boom"}}`)
		f := newFixture(t, routes)

		rec := f.get("/artist/Artist")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Failed to fetch artist data" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, catalog(), func(c *shared.Config) {
			c.Artist.RateLimit = 0.001
			c.Artist.Burst = 1
		})

		if rec := f.get("/artist/Artist"); rec.Code != http.StatusOK {
			t.Fatalf("expected first request to pass, got %d", rec.Code)
		}
		rec := f.get("/artist/Artist")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
		if got := testutil.ToFloat64(f.metrics.RateLimitHits.WithLabelValues("GET /artist/{name}")); got != 1 {
			t.Errorf("expected one rate limit hit, got %v", got)
		}
	})
}

func TestDashboard(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.get("/dashboard")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `href="/login"`) {
			t.Error("expected a login link")
		}
		if f.stub.Total() != 0 {
			t.Error("expected no outbound requests")
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		f := newFixture(t, map[string]http.HandlerFunc{routePlaying: th.Raw(http.StatusOK, playingBody)})
		rec := f.get("/dashboard", f.session(t, models.TokenPair{AccessToken: "AT", ExpiresIn: 3600})...)

		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "Listening to Spotify") {
			t.Errorf("expected playing snapshot, got %s", rec.Body.String())
		}
	})

	t.Run("index", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.get("/"); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec := f.get("/nope"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	f.get("/currently-playing")

	rec := f.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `spotify_feature_http_requests_total{code="401",route="GET /currently-playing"} 1`) {
		t.Errorf("expected request counter in exposition:\n%s", rec.Body.String())
	}
}

func TestNewApp(t *testing.T) {
	t.Run("generates keys when unset", func(t *testing.T) {
		cfg := testConfig()
		cfg.Session.EncryptKey = ""
		cfg.Session.SignKey = ""
		if _, err := NewApp(Options{Config: cfg, Logger: log.New(io.Discard)}); err != nil {
			t.Fatalf("NewApp failed: %v", err)
		}
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		cfg := testConfig()
		cfg.Session.SignKey = base64.StdEncoding.EncodeToString([]byte("short"))
		_, err := NewApp(Options{Config: cfg, Logger: log.New(io.Discard)})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
