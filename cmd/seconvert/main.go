// Command seconvert converts tabular data between schemas.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/seconvert/internal/config"
	"github.com/JonMunkholm/seconvert/internal/core"
	_ "github.com/JonMunkholm/seconvert/internal/core/observers" // Register built-in observers
	"github.com/JonMunkholm/seconvert/internal/logging"
)

func main() {
	// Load .env file if it exists; variables already set take precedence
	envErr := godotenv.Load()

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// Logs go to stderr so converted data can be piped from stdout
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if envErr == nil {
		slog.Debug("loaded .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(cfg).RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "seconvert",
		Usage: "convert tabular data between schemas",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schema-dir",
				Usage: "directory of .csv/.yaml schema definitions",
				Value: cfg.Schema.Dir,
			},
			&cli.StringFlag{
				Name:  "mapping-dir",
				Usage: "directory of YAML mapping observers to register",
				Value: cfg.Schema.MappingDir,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: cfg.Logging.Level,
			},
		},
		Before: func(c *cli.Context) error {
			if c.IsSet("log-level") {
				cfg.Logging.Level = c.String("log-level")
				logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
			}
			cfg.Schema.Dir = c.String("schema-dir")
			cfg.Schema.MappingDir = c.String("mapping-dir")
			return nil
		},
		Commands: []*cli.Command{
			convertCommand(cfg),
			previewCommand(cfg),
			supersetCommand(cfg),
			schemaCommand(cfg),
			observersCommand(cfg),
			scaffoldCommand(cfg),
			serveCommand(cfg),
		},
	}
}
