package models

// Image is a catalog artwork entry.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Followers wraps the follower count the way the catalog reports it.
type Followers struct {
	Total int `json:"total"`
}

// AlbumRef is the album summary attached to a track.
type AlbumRef struct {
	Name         string            `json:"name"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// ArtistTrack is a top track or a track of the latest release.
type ArtistTrack struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Album        AlbumRef          `json:"album"`
	ExternalURLs map[string]string `json:"external_urls"`
	DurationMs   int               `json:"duration_ms"`
	Popularity   int               `json:"popularity"` // zero for album tracks
	PreviewURL   *string           `json:"preview_url"`
}

// LatestAlbum is the artist's most recent album or single with its track listing.
type LatestAlbum struct {
	Name         string            `json:"name"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
	Tracks       []ArtistTrack     `json:"tracks"`
}

// Ref returns the album summary used on each of its tracks.
func (a *LatestAlbum) Ref() AlbumRef {
	return AlbumRef{Name: a.Name, Images: a.Images, ExternalURLs: a.ExternalURLs}
}

// ArtistInfo is the aggregated artist lookup.
type ArtistInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Images       []Image           `json:"images"`
	ExternalURLs map[string]string `json:"external_urls"`
	Followers    Followers         `json:"followers"`
	Genres       []string          `json:"genres"`
	Popularity   int               `json:"popularity"`
	TopTracks    []ArtistTrack     `json:"topTracks"`
	LatestAlbum  *LatestAlbum      `json:"latestAlbum"`
}

// SpotifyURL returns the artist's public page, or "" when unknown.
func (a *ArtistInfo) SpotifyURL() string {
	return a.ExternalURLs["spotify"]
}
