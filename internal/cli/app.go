package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"envelopes/internal/amqp"
	"envelopes/internal/backend"
	"envelopes/internal/cache"
	"envelopes/internal/config"
	"envelopes/internal/core"
	"envelopes/internal/ledger"
	"envelopes/internal/log"
	"envelopes/internal/seed"
	"envelopes/internal/services"
	"envelopes/internal/sheets"
	gsheet "envelopes/internal/sheets/google"
	"envelopes/internal/sheets/memory"
	"envelopes/internal/store"
)

// App holds the services shared by every command.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  store.Store
	IDs    core.IDGenerator
	Clock  core.Clock

	Ledger    *services.LedgerService
	Fills     *services.FillService
	Imports   *services.ImportService
	Buckets   *services.BucketService
	Snapshots *services.SnapshotProcessor

	// Events is nil when AMQP is not configured.
	Events *amqp.Client

	caches *cache.Manager
}

func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  res.Store,
		IDs:    core.UUIDGenerator{},
		Clock:  core.SystemClock{},
		caches: cache.NewManager(),
	}

	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			_ = res.Cleanup()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		app.Events = client
		publisher = client
	}

	balances := cache.NewLRUCache[[]ledger.Balance](cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
	app.caches.Register(balances)
	if cfg.BalanceCacheTTL > 0 {
		app.caches.StartCleanup(max(cfg.BalanceCacheTTL, time.Minute))
	}

	app.Ledger = services.NewLedgerService(res.Store, publisher, balances)
	app.Fills = services.NewFillService(app.Ledger, app.IDs, app.Clock)
	app.Imports = services.NewImportService(app.Ledger, app.IDs)
	app.Buckets = services.NewBucketService(app.Ledger, app.IDs)
	app.Snapshots = services.NewSnapshotProcessor(app.Ledger, services.SnapshotProcessorConfig{
		Interval: cfg.SnapshotInterval,
		Keep:     services.DefaultSnapshotProcessorConfig().Keep,
	})

	if cfg.SeedFile != "" {
		if _, err := app.Seed(ctx, cfg.SeedFile); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}

// Seed upserts the catalogue at path.
func (a *App) Seed(ctx context.Context, path string) (seed.Result, error) {
	c, err := seed.LoadFile(path)
	if err != nil {
		return seed.Result{}, err
	}
	buckets, err := c.Buckets(a.IDs)
	if err != nil {
		return seed.Result{}, fmt.Errorf("seed %s: %w", path, err)
	}
	res, err := seed.Apply(ctx, a.Store, buckets)
	a.Ledger.Invalidate()
	return res, err
}

// Exporter returns the Google Sheets exporter when a spreadsheet is
// configured and an in-process one otherwise.
func (a *App) Exporter(ctx context.Context) (sheets.Exporter, error) {
	if !a.Config.SheetsEnabled() {
		a.Logger.Warn("No spreadsheet configured, exports stay in memory")
		return memory.New(), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: a.Config.GoogleSpreadsheetID,
		LedgerSheet:   a.Config.GoogleLedgerSheetName,
		BalancesSheet: a.Config.GoogleBalancesSheetName,
	})
}

// Close stops background work and releases the store and AMQP connection.
func (a *App) Close() error {
	a.caches.Stop()
	var errs []error
	if a.Snapshots.IsRunning() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.Snapshots.Stop(ctx))
	}
	errs = append(errs, a.Ledger.Close())
	return errors.Join(errs...)
}
