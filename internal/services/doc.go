// Package services implements the outbound side of the proxy: Spotify clients and the proxy's own API client.
//
// # Playback
//
// [SpotifyService] is a raw Web API client for the user-scoped endpoints (/me, currently-playing,
// recently-played). Every call takes the user's access token; nothing is cached per user.
//
// [NowPlayingResolver] builds a [models.PlaybackSnapshot] from it: current playback when there is an
// item, otherwise the latest play history entry, otherwise an empty snapshot.
//
// # Tokens
//
// [TokenClient] wraps [oauth2.Config] for the authorization-code and refresh grants, and
// [clientcredentials.Config] for app tokens. Refreshes are deduplicated per refresh token.
//
// # Catalog
//
// [ArtistService] uses github.com/zmb3/spotify/v2 with an app token to search for an artist and fan out
// to details, top tracks and the latest release.
//
// # Error Handling
//
// Non-2xx answers from Spotify surface as [shared.ProviderError] carrying the status and body, so
// handlers can pass them through. Resolver and catalog failures add context sentinels:
//   - [ErrHistoryUnavailable] : recently-played fallback failed
//   - [ErrArtistSearch] : catalog search failed
//   - [ErrArtistData] : a required fan-out branch failed
//
// # Proxy client
//
// [APIService] calls the proxy's own endpoints with a session cookie; the terminal commands use it.
package services
