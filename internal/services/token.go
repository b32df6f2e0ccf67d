package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 15 * time.Second

// Scopes requested during login.
var Scopes = []string{"user-read-currently-playing", "user-read-recently-played"}

// TokenClient performs the token endpoint exchanges: authorization code, refresh and client credentials.
type TokenClient struct {
	config     *oauth2.Config
	app        *clientcredentials.Config
	appSource  oauth2.TokenSource
	httpClient *http.Client
	refreshes  singleflight.Group
	now        func() time.Time
}

// TokenOption configures a [TokenClient].
type TokenOption func(*TokenClient)

// WithEndpoint points the client at alternative authorize and token URLs.
func WithEndpoint(authURL, tokenURL string) TokenOption {
	return func(c *TokenClient) {
		c.config.Endpoint.AuthURL = authURL
		c.config.Endpoint.TokenURL = tokenURL
		c.app.TokenURL = tokenURL
	}
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(client *http.Client) TokenOption {
	return func(c *TokenClient) { c.httpClient = client }
}

// NewTokenClient creates a new [TokenClient]. Credentials are sent as a Basic auth header.
func NewTokenClient(creds shared.SpotifyConfig, opts ...TokenOption) *TokenClient {
	c := &TokenClient{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		app: &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     spotifyTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: http.DefaultClient,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.appSource = c.app.TokenSource(c.context(context.Background()))
	return c
}

func (c *TokenClient) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL returns the provider authorization URL carrying state.
func (c *TokenClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair.
//
// A non-2xx answer from the token endpoint is returned as a [shared.ProviderError] with the
// provider's status and body.
func (c *TokenClient) Exchange(ctx context.Context, code string) (models.TokenPair, error) {
	if code == "" {
		return models.TokenPair{}, shared.ErrMissingCode
	}

	tok, err := c.config.Exchange(c.context(ctx), code)
	if err != nil {
		return models.TokenPair{}, tokenError("token exchange", err)
	}
	return c.pair(tok), nil
}

// Refresh obtains a new access token. Concurrent calls for the same refresh token share one request,
// which runs detached from any single caller's context and is bounded by refreshTimeout.
// A caller whose ctx ends first returns ctx.Err() while the shared request carries on for the others.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
	}

	ch := c.refreshes.DoChan(refreshToken, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		src := c.config.TokenSource(c.context(flightCtx), &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return nil, tokenError("token refresh", err)
		}
		return c.pair(tok), nil
	})

	select {
	case <-ctx.Done():
		return models.TokenPair{}, errors.Join(shared.ErrRefreshFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.TokenPair{}, errors.Join(shared.ErrRefreshFailed, res.Err)
		}
		return res.Val.(models.TokenPair), nil
	}
}

// AppToken returns an app-level access token from the client credentials grant, reusing it until it expires.
func (c *TokenClient) AppToken(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.app.ClientID == "" || c.app.ClientSecret == "" {
		return nil, fmt.Errorf("%w: CLIENT_ID, CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	tok, err := c.appSource.Token()
	if err != nil {
		return nil, errors.Join(shared.ErrAppToken, tokenError("client credentials", err))
	}
	return tok, nil
}

// pair converts an oauth2 token, preferring the expires_in the provider actually sent.
func (c *TokenClient) pair(tok *oauth2.Token) models.TokenPair {
	pair := models.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IssuedAt:     c.now(),
	}

	switch {
	case tok.ExpiresIn > 0:
		pair.ExpiresIn = int(tok.ExpiresIn)
	case tok.Extra("expires_in") != nil:
		if v, ok := tok.Extra("expires_in").(float64); ok {
			pair.ExpiresIn = int(v)
		}
	case !tok.Expiry.IsZero():
		pair.ExpiresIn = int(tok.Expiry.Sub(pair.IssuedAt).Round(time.Second).Seconds())
	}
	pair.ExpiresIn = max(0, pair.ExpiresIn)

	return pair
}

// tokenError maps an oauth2 retrieval failure onto a [shared.ProviderError].
func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &shared.ProviderError{Op: op, StatusCode: re.Response.StatusCode, Body: re.Body}
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
