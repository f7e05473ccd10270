package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/seconvert/internal/config"
	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/web"
)

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve conversions over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "interface to bind to", Value: cfg.Server.Host},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "port to listen on", Value: cfg.Server.Port},
			&cli.BoolFlag{Name: "watch", Usage: "reload schemas when the schema directory changes", Value: cfg.Schema.Watch},
		},
		Action: func(c *cli.Context) error {
			cfg.Server.Host = c.String("host")
			cfg.Server.Port = c.Int("port")
			cfg.Schema.Watch = c.Bool("watch")
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded", "config", cfg)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	slog.Info("schemas loaded", "count", catalog.Len(), "observers", core.ObserverCount())

	// Table loads stay disabled without a database
	var db core.TxBeginner
	if cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = pool
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Schema.Watch {
		go func() {
			if err := catalog.Watch(jobCtx, slog.Default()); err != nil {
				slog.Error("schema watcher stopped", "error", err)
			}
		}()
	}

	server := web.NewServer(catalog, cfg, db)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Waits for running conversions to finish after the listener closes
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown did not complete in time", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
