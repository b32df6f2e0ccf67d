package main

import (
	"context"
	"fmt"

	"github.com/321david123/spotify-feature/internal/formatter"
	"github.com/321david123/spotify-feature/internal/models"
	"github.com/321david123/spotify-feature/internal/services"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/urfave/cli/v3"
)

// Artist looks up an artist and prints or exports the aggregate.
func (r *Runner) Artist(ctx context.Context, cmd *cli.Command) error {
	name, err := services.ValidateArtistName(cmd.StringArg("name"))
	if err != nil {
		return err
	}

	var info *models.ArtistInfo
	if cmd.Bool("direct") {
		info, err = r.lookupDirect(ctx, name)
	} else {
		info, err = r.lookupProxy(ctx, cmd, name)
	}
	if err != nil {
		return err
	}

	if dir := cmd.String("export"); dir != "" {
		return r.exportArtist(ctx, info, dir)
	}

	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(info, cmd.Bool("pretty"))
	case "markdown", "md":
		return r.writeBytes(formatter.ArtistToMarkdown(info, ""))
	case "csv":
		data, err := formatter.ArtistToCSV(info)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	case "text", "":
		return r.writeBytes(formatter.ArtistToText(info))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

func (r *Runner) lookupProxy(ctx context.Context, cmd *cli.Command, name string) (*models.ArtistInfo, error) {
	api, err := r.proxyClient(cmd)
	if err != nil {
		return nil, err
	}
	info, err := api.Artist(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return info, nil
}

// lookupDirect runs the aggregation in-process with the configured app credentials.
func (r *Runner) lookupDirect(ctx context.Context, name string) (*models.ArtistInfo, error) {
	creds := r.config.Credentials.Spotify
	if err := creds.RequireApp(); err != nil {
		return nil, err
	}

	tokens := services.NewTokenClient(creds, services.WithHTTPClient(r.httpClient))
	artists := services.NewArtistService(tokens, services.ArtistOptions{
		Market:     r.config.Artist.Market,
		HTTPClient: r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "artist"),
	})
	return artists.Lookup(ctx, name)
}

func (r *Runner) exportArtist(ctx context.Context, info *models.ArtistInfo, dir string) error {
	warn := func(err error) { r.logger.Warn("export incomplete", "error", err) }

	result, err := formatter.WriteArtistExport(ctx, r.httpClient, info, dir, warn)
	if err != nil {
		return fmt.Errorf("failed to export artist: %w", err)
	}

	r.logger.Info("artist exported", "dir", result.Directory, "files", len(result.Files))
	r.writePlain("✓ Exported %s to %s\n", info.Name, result.Directory)
	for _, f := range result.Files {
		r.writePlain("  • %s\n", f)
	}
	return nil
}
