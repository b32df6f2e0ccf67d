package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/321david123/spotify-feature/internal/formatter"
	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/server"
	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/321david123/spotify-feature/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// session is the proxy location and cookie resolved from the session flags.
type session struct {
	server string
	cookie string
}

// resolveSession reads --cookie, --curl or --curl-file. A captured cURL command also provides the server origin.
func (r *Runner) resolveSession(cmd *cli.Command) (session, error) {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	if curlCmd != "" && curlFile != "" {
		return session{}, fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidInput)
	}

	s := session{server: cmd.String("server"), cookie: normalizeCookie(cmd.String("cookie"))}

	var req *shared.CurlRequest
	var err error
	switch {
	case curlFile != "":
		if req, err = shared.ParseCurlFile(curlFile); err != nil {
			return session{}, fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Debug("parsed cURL from file", "file", curlFile)
	case curlCmd != "":
		if req, err = shared.ParseCurlCommand(curlCmd); err != nil {
			return session{}, fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Debug("parsed cURL command")
	}

	if req != nil {
		if s.cookie == "" {
			if s.cookie, err = captureCookie(req); err != nil {
				return session{}, err
			}
		}
		if s.server == "" {
			s.server = req.Origin()
		}
	}
	if s.server == "" {
		s.server = r.config.Client.ServerURL
	}
	return s, nil
}

// captureCookie keeps only the proxy's session cookies from a captured request, dropping whatever else
// the browser sent for that origin.
func captureCookie(req *shared.CurlRequest) (string, error) {
	access := req.CookieValue(server.AccessCookie)
	if access == "" {
		return "", fmt.Errorf("%w: cURL capture has no %s cookie", shared.ErrInvalidInput, server.AccessCookie)
	}
	cookie := server.AccessCookie + "=" + access
	if refresh := req.CookieValue(server.RefreshCookie); refresh != "" {
		cookie += "; " + server.RefreshCookie + "=" + refresh
	}
	return cookie, nil
}

// normalizeCookie accepts either a full Cookie header or a bare access token.
func normalizeCookie(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.Contains(v, "=") {
		return v
	}
	return server.AccessCookie + "=" + v
}

func (r *Runner) proxyClient(cmd *cli.Command) (*services.APIService, error) {
	s, err := r.resolveSession(cmd)
	if err != nil {
		return nil, err
	}
	if s.cookie == "" {
		r.logger.Warn("no session cookie given; run login, then pass --cookie or --curl")
	}
	return services.NewAPIService(s.server, r.httpClient, s.cookie), nil
}

// Login opens the proxy's /login route so the browser completes the authorization flow.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	base := cmd.String("server")
	if base == "" {
		base = r.config.Client.ServerURL
	}
	loginURL := strings.TrimRight(base, "/") + "/login"

	r.logger.Info("opening browser", "url", loginURL)
	if err := r.openBrowser(loginURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		return r.writePlain("Open this URL to sign in:\n%s\n", loginURL)
	}
	return r.writePlain("✓ Continue in your browser, then copy a request to %s as cURL for the now and watch commands\n", base)
}

// Now fetches the playback snapshot once.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	api, err := r.proxyClient(cmd)
	if err != nil {
		return err
	}

	snapshot, err := api.CurrentlyPlaying(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(snapshot, cmd.Bool("pretty"))
	case "markdown", "md":
		return r.writeBytes(formatter.SnapshotToMarkdown(snapshot, r.now()))
	case "text", "":
		return r.writeBytes(formatter.SnapshotToText(snapshot, r.now()))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// Watch runs the live display until the user quits.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	api, err := r.proxyClient(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	r.SetLogger(fileLogger)

	fetcher := &loggingFetcher{next: api, logger: shared.WithLogger(fileLogger, "component", "watch")}
	model := ui.NewModel(ctx, fetcher, r.config.Client.PollInterval.Duration, r.config.Client.FrameInterval.Duration)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// loggingFetcher records poll failures, which the display only shows as a generic error.
type loggingFetcher struct {
	next   ui.Fetcher
	logger *log.Logger
}

func (f *loggingFetcher) CurrentlyPlaying(ctx context.Context) (models.PlaybackSnapshot, error) {
	s, err := f.next.CurrentlyPlaying(ctx)
	if err != nil {
		f.logger.Warn("poll failed", "error", err)
	}
	return s, err
}
