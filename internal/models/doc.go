// Package models defines the domain types exchanged between the proxy, its persistence layer and the display client.
//
// The package contains three categories of types:
//
// 1. Session types: credentials that move through the authorization flow
//   - [TokenPair] : Access and refresh tokens with their lifetime
//   - [OAuthState] : Single-use login nonce persisted until the callback
//
// 2. Playback types: what the now-playing endpoint emits
//   - [PlaybackSnapshot] : Tagged variant over [KindEmpty], [KindPlaying] and [KindLastPlayed]
//   - [Track] : Track metadata and timing carried by non-empty snapshots
//
// 3. Catalog types: the aggregated artist lookup
//   - [ArtistInfo] : Artist details with top tracks and the latest release
//   - [ArtistTrack], [AlbumRef], [LatestAlbum], [Image] : Nested catalog entries
//
// JSON field names follow the wire format consumed by existing widgets.
package models
