package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/321david123/spotify-feature/internal/server"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the proxy until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	if err := cfg.Credentials.Spotify.RequireExchange(); err != nil {
		r.logger.Warn("login will answer with a configuration error until credentials are set", "error", err)
	}

	db, err := shared.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	app, err := server.NewFromConfig(cfg, db, shared.WithLogger(r.logger, "component", "server"))
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.ListenAndServe(ctx)
}
