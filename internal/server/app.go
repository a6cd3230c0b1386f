// Package server wires the storage, cache, numbering, import and settings
// components together and runs the HTTP API with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/invoicekeeper/internal/cache"
	"github.com/dmitrijs2005/invoicekeeper/internal/config"
	"github.com/dmitrijs2005/invoicekeeper/internal/cryptox"
	"github.com/dmitrijs2005/invoicekeeper/internal/importer"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/metrics"
	"github.com/dmitrijs2005/invoicekeeper/internal/numbering"
	"github.com/dmitrijs2005/invoicekeeper/internal/repositories/reservations"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/services"
	"github.com/dmitrijs2005/invoicekeeper/internal/settings"
	"github.com/dmitrijs2005/invoicekeeper/internal/storage"
	"github.com/dmitrijs2005/invoicekeeper/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *prometheus.Registry

	Factory   *storage.Factory
	Store     *store.Store
	Numbers   *numbering.Service
	Importer  *importer.Importer
	Documents *services.DocumentService
	Settings  *services.SettingsService

	closers []func() error
}

// NewApp builds every component from c. Optional pieces are enabled by
// configuration: SecretKey seals the stored password, RedisAddr switches
// the listing cache to Redis and ReservationDSN moves number reservations
// into a SQL database.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger, registry: prometheus.NewRegistry()}
	m := metrics.New(app.registry)

	var sealer *cryptox.Sealer
	if c.SecretKey != "" {
		s, err := cryptox.NewSealer(c.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("secret key: %w", err)
		}
		sealer = s
	}

	provider := settings.NewFileProvider(c.SettingsFile, sealer, logger)
	app.Factory = storage.NewFactory(c, provider, logger)

	var listings cache.Cache = cache.NewMemory(c.CacheTTL)
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.closers = append(app.closers, rdb.Close)
		listings = cache.NewRedis(rdb, c.CacheTTL, logger)
	}

	app.Store = store.New(app.Factory, listings, m, logger)

	strategy, err := numbering.ParseStrategy(c.NumberingStrategy)
	if err != nil {
		return nil, err
	}
	var reserver numbering.Reserver = app.Store
	if c.ReservationDSN != "" {
		db, err := reservations.Open(ctx, c.ReservationDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("reservation db init error: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		reserver = db
	}

	app.Numbers = numbering.New(app.Store, reserver, strategy, m, logger)
	app.Importer = importer.New(app.Store, m, logger)
	app.Documents = services.NewDocumentService(app.Store, app.Numbers, logger)
	app.Settings = services.NewSettingsService(provider, app.Factory, logger)

	return app, nil
}

// Close releases the Redis client and the reservation database, if any.
func (app *App) Close() error {
	var first error
	for _, c := range app.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpServer() *httpapi.HTTPServer {
	return httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, httpapi.Deps{
		Store:     app.Store,
		Numbers:   app.Numbers,
		Importer:  app.Importer,
		Documents: app.Documents,
		Settings:  app.Settings,
		Gatherer:  app.registry,
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer().Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves the HTTP API until ctx is cancelled or the process receives
// SIGINT, SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend_kind", app.config.BackendKind, "numbering", app.config.NumberingStrategy)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close failed", "err", err)
	}
}
