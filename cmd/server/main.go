// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pos-device-service/docs"
	"pos-device-service/internal/config"
	"pos-device-service/internal/database"
	internalDriver "pos-device-service/internal/driver"
	"pos-device-service/internal/finalize"
	"pos-device-service/internal/formatting"
	"pos-device-service/internal/handler"
	"pos-device-service/internal/hardware"
	"pos-device-service/internal/protocol"
	"pos-device-service/internal/repository"
	"pos-device-service/internal/routes"
	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
	"pos-device-service/pkg/driver"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Hardware
	eventBus       *handler.EventBus
	manager        *hardware.Manager
	driverRegistry *internalDriver.Registry
	finalizeLock   *sync.Mutex

	// Repositories
	deviceRepo repository.DeviceRepository
	saleStore  *repository.SaleStore
	devices    service.DeviceLister
	source     hardware.DeviceSource

	// Services
	deviceService    *service.DeviceService
	saleService      *service.SaleService
	discoveryService *service.DiscoveryService

	wsHandler *handler.WebSocketHandler
}

// @title POS Device Service API
// @version 1.0.0
// @description Finalizes sales and drives the receipt printers, fiscal devices, displays and input devices of a point of sale

// @contact.name POS Device Service

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "pos-device-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App)

	app := &Application{
		config:       cfg,
		logger:       logger,
		finalizeLock: &sync.Mutex{},
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := app.initializeDriverRegistry(); err != nil {
		return nil, fmt.Errorf("failed to initialize driver registry: %w", err)
	}

	app.initializeHardware()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances and picks the device
// source
func (app *Application) initializeRepositories() error {
	configured, err := app.config.Hardware.ToDevices()
	if err != nil {
		return err
	}

	app.saleStore = repository.NewSaleStore(app.database, app.logger)

	if app.config.Hardware.DeviceSource == "config" {
		static := hardware.NewStaticDeviceSource(configured)
		app.source = static
		app.devices = static
		app.logger.Info("Devices loaded from configuration", zap.Int("devices", len(configured)))
		return nil
	}

	app.deviceRepo = repository.NewDeviceRepository(app.database, app.logger)
	app.source = app.deviceRepo
	app.devices = app.deviceRepo

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	seeded, err := app.deviceRepo.Seed(ctx, configured)
	if err != nil {
		return fmt.Errorf("failed to seed devices: %w", err)
	}

	app.logger.Info("Repositories initialized successfully", zap.Int("seeded_devices", seeded))
	return nil
}

// initializeDriverRegistry sets up device driver registry
func (app *Application) initializeDriverRegistry() error {
	groups, err := app.config.Fiscal.ParseVATGroups()
	if err != nil {
		return err
	}
	rates := make([]driver.TaxRate, 0, len(groups))
	for _, g := range groups {
		rates = append(rates, driver.TaxRate{Group: g.Code, Rate: g.Rate})
	}

	transport := app.config.Hardware.Transport
	env := &internalDriver.Environment{
		Transports: protocol.NewFactory(protocol.Timeouts{
			Connect: transport.ConnectTimeout,
			Read:    transport.ReadTimeout,
			Write:   transport.WriteTimeout,
			USB:     transport.USBTimeout,
		}, app.logger),
		CodePage:     app.config.Fiscal.CodePage,
		ReceiptWidth: app.config.Fiscal.ReceiptWidth,
		TaxRates:     rates,
		Logger:       app.logger,
	}

	app.driverRegistry = internalDriver.NewRegistry(env, app.logger)
	internalDriver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Int("registered_drivers", len(app.driverRegistry.ListDrivers())),
	)
	return nil
}

// initializeHardware creates the event bus and the hardware manager
func (app *Application) initializeHardware() {
	app.eventBus = handler.NewEventBus(app.logger)

	app.manager = hardware.NewManager(hardware.ManagerConfig{
		Worker: hardware.WorkerConfig{
			PollInterval:     app.config.Worker.PollInterval,
			ProgressInterval: app.config.Worker.ProgressInterval,
			PollTimeout:      app.config.Worker.PollTimeout,
		},
		Devices:      app.source,
		Drivers:      app.driverRegistry,
		Retry:        app.retryDecider(),
		Events:       app.eventBus,
		FinalizeLock: app.finalizeLock,
	}, app.logger)
}

func (app *Application) retryDecider() hardware.RetryDecider {
	return &hardware.BoundedRetryDecider{
		MaxAttempts:     app.config.Hardware.RetryAttempts,
		Delay:           app.config.Hardware.RetryDelay,
		KitchenFallback: app.config.Hardware.KitchenFallback,
	}
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	fiscal := app.config.Fiscal
	groups, err := fiscal.ParseVATGroups()
	if err != nil {
		return err
	}
	formatter, err := formatting.New(fiscal.Language, fiscal.Texts)
	if err != nil {
		return fmt.Errorf("failed to create formatter: %w", err)
	}

	orchestrator := finalize.NewOrchestrator(finalize.Dependencies{
		Devices:   app.manager,
		Store:     app.saleStore,
		Formatter: formatter,
		Settings: finalize.Settings{
			AllowSaleWithoutReceipt: fiscal.AllowSaleWithoutReceipt,
			PrintSaleBarcode:        fiscal.PrintSaleBarcode,
			ReceiptSignature:        fiscal.ReceiptSignature,
			HeaderLines:             fiscal.HeaderLines,
			VATGroups:               groups,
			InvoiceCopies:           fiscal.InvoiceCopies,
			ReceiptWidth:            fiscal.ReceiptWidth,
			ShowTotalOnDisplay:      fiscal.ShowTotalOnDisplay,
		},
		Events:       app.eventBus,
		Retry:        app.retryDecider(),
		FinalizeLock: app.finalizeLock,
	}, app.logger)

	app.deviceService = service.NewDeviceService(
		app.manager,
		app.devices,
		app.deviceRepo,
		app.driverRegistry,
		app.logger,
	)
	app.saleService = service.NewSaleService(orchestrator, app.saleStore, app.logger)
	app.discoveryService = service.NewDiscoveryService(&app.config.Discovery, app.logger)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.wsHandler = handler.NewWebSocketHandler(
		app.deviceService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	docs.SwaggerInfo.Version = app.config.App.Version

	routerManager := routes.NewRouter(app.config, app.logger, routes.Handlers{
		Health:    handler.NewHealthHandler(app.database, app.deviceService, app.config, app.logger),
		Device:    handler.NewDeviceHandler(app.deviceService, app.logger),
		Sale:      handler.NewSaleHandler(app.saleService, app.logger),
		Discovery: handler.NewDiscoveryHandler(app.discoveryService, app.logger),
		WebSocket: app.wsHandler,
	})

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
}

// startBackgroundServices starts the event bus, the hardware worker and the
// initial device connections
func (app *Application) startBackgroundServices() {
	go app.eventBus.Start()
	go app.wsHandler.Run()
	app.manager.Start()

	if app.config.Hardware.ConnectOnStart {
		go func() {
			defer utils.LogPanic(app.logger)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			app.deviceService.ConnectAll(ctx)
		}()
	}

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "pos-device-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		utils.LogError(app.logger, "HTTP server shutdown error", err)
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.manager.Stop(ctx); err != nil {
		utils.LogError(app.logger, "Hardware shutdown error", err)
	} else {
		app.logger.Info("Hardware stopped")
	}
	app.eventBus.Stop()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	app.startBackgroundServices()

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}
