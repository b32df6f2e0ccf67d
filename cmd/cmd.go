// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// sessionFlags locate the proxy and the browser session used to call it.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "server",
			Usage: "Proxy base URL (defaults to the cURL origin, then client.server_url)",
		},
		&cli.StringFlag{
			Name:    "cookie",
			Usage:   "Cookie header from a signed-in browser, or a bare access_token value",
			Sources: cli.EnvVars("SPOTIFY_FEATURE_COOKIE"),
		},
		&cli.StringFlag{
			Name:  "curl",
			Usage: "cURL command from browser DevTools (Copy as cURL)",
		},
		&cli.StringFlag{
			Name:  "curl-file",
			Usage: "Path to .sh file containing cURL command",
		},
	}
}

// setupCommand handles setup operations for configuration, database and session keys.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml populated with the defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   defaultConfigPath,
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "keys",
				Usage:  "Generate session sealing keys for .env",
				Action: r.SetupKeys,
			},
		},
	}
}

// serveCommand runs the HTTP proxy.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the OAuth proxy, now-playing and artist endpoints",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// loginCommand opens the proxy's login route in the browser.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with Spotify through the proxy in the default browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Proxy base URL (defaults to client.server_url)",
			},
		},
		Action: r.Login,
	}
}

// nowCommand prints the current playback once.
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "now",
		Aliases: []string{"np"},
		Usage:   "Show what is playing right now",
		Flags: append(sessionFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json or markdown",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		),
		Action: r.Now,
	}
}

// watchCommand returns the TUI command that polls the proxy.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Live now-playing display in the terminal",
		Flags: append(sessionFlags(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the display is running",
				Value: "./tmp/spotify-feature-watch.log",
			},
		),
		Action: r.Watch,
	}
}

// artistCommand looks up an artist through the proxy or directly with app credentials.
func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "Show an artist's details, top tracks and latest release",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: append(sessionFlags(),
			&cli.BoolFlag{
				Name:  "direct",
				Usage: "Call Spotify with the configured app credentials instead of the proxy",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown or csv",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Write README.md, top_tracks.csv and cover.jpg to this directory",
			},
		),
		Action: r.Artist,
	}
}
