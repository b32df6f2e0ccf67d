// package formatter renders playback snapshots and artist lookups as text, Markdown and CSV
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/321david123/spotify-feature/internal/models"
)

// FormatTime renders milliseconds as m:ss with zero-padded seconds. Negative values render as 0:00.
func FormatTime(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatPlayedAt renders a provider played_at timestamp relative to now, e.g. "5 minutes ago".
//
// Unparseable values are returned unchanged.
func FormatPlayedAt(playedAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, playedAt)
	if err != nil {
		return playedAt
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// Headline returns the status line shown above a snapshot.
func Headline(s models.PlaybackSnapshot) string {
	switch {
	case !s.HasTrack():
		return "Nothing playing right now."
	case s.Kind == models.KindLastPlayed:
		return "Last played on Spotify"
	default:
		return "Listening to Spotify"
	}
}

// SnapshotToText converts a snapshot to a short plain text block.
func SnapshotToText(s models.PlaybackSnapshot, now time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString(Headline(s) + "\n")
	if !s.HasTrack() {
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "%s - %s\n", s.Title, s.Artist)
	fmt.Fprintf(&buf, "%s / %s", FormatTime(s.ProgressMs), FormatTime(s.DurationMs))
	if s.Kind == models.KindPlaying && !s.IsPlaying {
		buf.WriteString(" (paused)")
	}
	buf.WriteString("\n")
	if s.LastPlayed != nil {
		fmt.Fprintf(&buf, "Played %s\n", FormatPlayedAt(*s.LastPlayed, now))
	}
	if s.TrackURL != "" {
		fmt.Fprintf(&buf, "%s\n", s.TrackURL)
	}
	return buf.Bytes()
}

// SnapshotToMarkdown converts a snapshot to Markdown with album art and links.
func SnapshotToMarkdown(s models.PlaybackSnapshot, now time.Time) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "## %s\n\n", Headline(s))
	if !s.HasTrack() {
		return buf.Bytes()
	}

	if s.AlbumArtURL != "" {
		fmt.Fprintf(&buf, "![Album art](%s)\n\n", s.AlbumArtURL)
	}
	fmt.Fprintf(&buf, "**%s** by %s\n\n", link(s.Title, s.TrackURL), artistLinks(s.ArtistNames, s.ArtistURLs, s.Artist))
	fmt.Fprintf(&buf, "`%s / %s`\n", FormatTime(s.ProgressMs), FormatTime(s.DurationMs))
	if s.LastPlayed != nil {
		fmt.Fprintf(&buf, "\n_Played %s_\n", FormatPlayedAt(*s.LastPlayed, now))
	}
	return buf.Bytes()
}

func link(text, url string) string {
	if url == "" {
		return text
	}
	return fmt.Sprintf("[%s](%s)", text, url)
}

func artistLinks(names, urls []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}
	parts := make([]string, len(names))
	for i, name := range names {
		url := ""
		if i < len(urls) {
			url = urls[i]
		}
		parts[i] = link(name, url)
	}
	return strings.Join(parts, ", ")
}

// ArtistToText converts an artist lookup to plain text.
func ArtistToText(info *models.ArtistInfo) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Artist: %s\n", info.Name)
	fmt.Fprintf(&buf, "Followers: %d\n", info.Followers.Total)
	fmt.Fprintf(&buf, "Popularity: %d\n", info.Popularity)
	if len(info.Genres) > 0 {
		fmt.Fprintf(&buf, "Genres: %s\n", strings.Join(info.Genres, ", "))
	}

	fmt.Fprintf(&buf, "\nTop tracks: %d\n", len(info.TopTracks))
	for i, t := range info.TopTracks {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, t.Name, FormatTime(t.DurationMs))
	}

	if info.LatestAlbum != nil {
		fmt.Fprintf(&buf, "\nLatest release: %s (%d tracks)\n", info.LatestAlbum.Name, len(info.LatestAlbum.Tracks))
	}
	return buf.Bytes()
}

// ArtistToMarkdown converts an artist lookup to Markdown with an optional cover image.
func ArtistToMarkdown(info *models.ArtistInfo, imageFilename string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", link(info.Name, info.SpotifyURL()))
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Followers**: %d\n", info.Followers.Total)
	fmt.Fprintf(&buf, "**Popularity**: %d\n", info.Popularity)
	if len(info.Genres) > 0 {
		fmt.Fprintf(&buf, "**Genres**: %s\n", strings.Join(info.Genres, ", "))
	}

	buf.WriteString("\n## Top Tracks\n\n")
	for i, t := range info.TopTracks {
		fmt.Fprintf(&buf, "%d. %s (%s) [%s]\n", i+1, link(t.Name, t.ExternalURLs["spotify"]), t.Album.Name, FormatTime(t.DurationMs))
	}

	if album := info.LatestAlbum; album != nil {
		fmt.Fprintf(&buf, "\n## Latest Release: %s\n\n", link(album.Name, album.ExternalURLs["spotify"]))
		for i, t := range album.Tracks {
			fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, t.Name, FormatTime(t.DurationMs))
		}
	}
	return buf.Bytes()
}

// ArtistToCSV converts the top tracks to CSV with columns: ID, Name, Album, Duration, Popularity, URL
func ArtistToCSV(info *models.ArtistInfo) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Album", "Duration", "Popularity", "URL"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range info.TopTracks {
		record := []string{
			t.ID,
			t.Name,
			t.Album.Name,
			FormatTime(t.DurationMs),
			strconv.Itoa(t.Popularity),
			t.ExternalURLs["spotify"],
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// MarkdownExportResult contains information about files created by [WriteArtistExport].
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteArtistExport writes {dir}/README.md, {dir}/top_tracks.csv and, when the artist has artwork,
// {dir}/cover.jpg. The directory defaults to the artist ID.
//
// A failed cover download is reported through warn and does not fail the export.
func WriteArtistExport(ctx context.Context, client *http.Client, info *models.ArtistInfo, outputDir string, warn func(error)) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = info.ID
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var cover string
	if len(info.Images) > 0 {
		data, err := DownloadImage(ctx, client, info.Images[0].URL)
		if err == nil {
			path := filepath.Join(outputDir, "cover.jpg")
			if err = os.WriteFile(path, data, 0644); err == nil {
				cover = "cover.jpg"
				result.CoverImage = path
				result.Files = append(result.Files, path)
			}
		}
		if err != nil && warn != nil {
			warn(fmt.Errorf("cover image skipped: %w", err))
		}
	}

	csvData, err := ArtistToCSV(info)
	if err != nil {
		return nil, err
	}
	csvFile := filepath.Join(outputDir, "top_tracks.csv")
	if err := os.WriteFile(csvFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}
	result.Files = append(result.Files, csvFile)

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, ArtistToMarkdown(info, cover), 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}
