package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ghdevice/internal/app"
	"github.com/florianilch/ghdevice/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "ghdevice",
		Usage: "Connect a GitHub account with the OAuth device flow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel|otlp)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "credential storage (file|env|keyring)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--file",
				Usage: "credential file for file storage",
			},
			&cli.StringFlag{
				Name:  "auth--env-key",
				Usage: "environment variable holding the token for env storage",
			},
			&cli.StringFlag{
				Name:  "auth--keyring-user",
				Usage: "keyring user for keyring storage",
			},
			&cli.StringFlag{
				Name:  "github--base-url",
				Usage: "GitHub web base URL (OAuth endpoints)",
				Value: app.DefaultConfigGitHubBaseURL,
			},
			&cli.StringFlag{
				Name:  "github--api-base-url",
				Usage: "GitHub REST API base URL",
				Value: app.DefaultConfigGitHubAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "settings--file",
				Usage: "settings document with githubClientId and githubScopes overrides",
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			serveCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the auth HTTP API on loopback",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads config, installs logging and builds the app. The returned
// function flushes log exporters.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, *app.App, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdownLogs, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	shutdown := func() {
		if err := shutdownLogs(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		shutdown()
		return nil, nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return cfg, application, shutdown, nil
}
