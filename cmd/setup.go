package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/321david123/spotify-feature/internal/server"
	"github.com/321david123/spotify-feature/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Set credentials.spotify.client_id and client_secret, or CLIENT_ID and CLIENT_SECRET in .env\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupRollback undoes the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db); err != nil {
		if errors.Is(err, shared.ErrNoMigrations) {
			return r.writePlain("Nothing to roll back\n")
		}
		return err
	}

	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return r.writePlain("✓ Rolled back latest migration\n")
}

// SetupKeys prints freshly generated session keys in .env format.
func (r *Runner) SetupKeys(ctx context.Context, cmd *cli.Command) error {
	for _, name := range []string{"SESSION_ENCRYPT_KEY", "SESSION_SIGN_KEY"} {
		key, err := server.GenerateKey()
		if err != nil {
			return err
		}
		if err := r.writePlain("%s=%s\n", name, base64.StdEncoding.EncodeToString(key)); err != nil {
			return err
		}
	}
	return nil
}
