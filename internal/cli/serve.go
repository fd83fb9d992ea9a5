package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	apphttp "envelopes/internal/http"
	"envelopes/internal/log"
	"envelopes/internal/worker"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(parent context.Context, app *App) error {
	logger := app.Logger
	ctx, cancel := ShutdownContext(parent, logger)
	defer cancel()

	srv, err := apphttp.NewServer(":"+app.Config.Port, apphttp.Services{
		Ledger:  app.Ledger,
		Fills:   app.Fills,
		Imports: app.Imports,
		Buckets: app.Buckets,
		IDs:     app.IDs,
	}, apphttp.Options{
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: app.Config.RateLimitPerMinute,
		Currency:           app.Config.Currency,
	})
	if err != nil {
		return err
	}
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	if err := app.Snapshots.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting envelopes server", "port", app.Config.Port, "backend", app.Config.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", app.Config.Port)
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func NewWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Export the ledger whenever it changes",
		Long: `Consume ledger events from AMQP and rewrite the ledger and balance
sheets after each change. Without AMQP the export runs on the snapshot
interval only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			return runWorker(cmd.Context(), app)
		},
	}
}

func runWorker(parent context.Context, app *App) error {
	logger := app.Logger.WithComponent(log.ComponentWorker)
	ctx, cancel := ShutdownContext(parent, logger)
	defer cancel()

	exporter, err := app.Exporter(ctx)
	if err != nil {
		return err
	}
	w := worker.NewLedgerWorker(app.Ledger, app.Snapshots, exporter)

	if err := w.Export(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	if app.Events != nil {
		go func() {
			logger.Info("Consuming ledger events", "queue", app.Config.AMQPQueue)
			if err := app.Events.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumer stopped", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Warn("AMQP not configured, exporting on a timer only")
	}

	ticker := time.NewTicker(app.Config.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutdown complete")
			return nil
		case <-ticker.C:
			if err := w.Export(ctx); err != nil {
				logger.Error("Periodic export failed", "error", err)
			}
		}
	}
}
