package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/skylensaero/identity/internal/identity/http"
	"github.com/skylensaero/identity/internal/identity/notify"
	"github.com/skylensaero/identity/internal/identity/service"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/internal/identity/store/drivers/sqlite"
	"github.com/skylensaero/identity/pkg/jwtx"
	"github.com/skylensaero/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db  store.Store
	bus notify.Bus

	// Services
	inviteService       *service.InviteService
	redeemService       *service.RedeemService
	accessService       *service.AccessService
	mergeService        *service.MergeService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if cfg.TrustedAdminDomain == "" {
		return nil, errors.New("IDENTITY_TRUSTED_ADMIN_DOMAIN must be set")
	}
	if cfg.IdPSecret == "" {
		return nil, errors.New("IDENTITY_IDP_SECRET must be set")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initBus(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start the expiry sweep
	app.housekeepingService.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the expiry sweep
	app.housekeepingService.Stop()

	// Close the notification bus before the database; in-flight deliveries
	// may still read state.
	if err := app.bus.Close(); err != nil {
		app.logger.Error("error closing notification bus", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initBus connects the notification bus. Without a broker URL every
// delivery and access event lands in the log, which is enough for dev.
func (app *Application) initBus() error {
	if app.cfg.AMQPURL == "" {
		app.logger.Info("no AMQP_URL configured, using log notification sink")
		app.bus = &notify.LogBus{Logger: app.logger}
		return nil
	}

	bus, err := notify.NewAMQPBus(app.cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("failed to connect notification bus: %w", err)
	}
	app.bus = bus
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.inviteService = &service.InviteService{
		Store:              app.db,
		Notifier:           app.bus,
		TrustedAdminDomain: app.cfg.TrustedAdminDomain,
		InviteTTL:          app.cfg.InviteTTL,
		NotifyTimeout:      app.cfg.NotifyTimeout,
	}

	app.redeemService = &service.RedeemService{
		Store:         app.db,
		Notifier:      app.bus,
		NotifyTimeout: app.cfg.NotifyTimeout,
	}

	app.accessService = &service.AccessService{
		Store:              app.db,
		Events:             app.bus,
		TrustedAdminDomain: app.cfg.TrustedAdminDomain,
	}

	app.mergeService = &service.MergeService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	verifier := jwtx.NewHS256([]byte(app.cfg.IdPSecret), app.cfg.IdPIssuer)

	router := httpapi.NewRouter(
		verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.InviteService = app.inviteService
	router.RedeemService = app.redeemService
	router.AccessService = app.accessService
	router.MergeService = app.mergeService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
