package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"resellerd/internal/billing"
	"resellerd/internal/bootstrap"
	"resellerd/internal/config"
	cronpkg "resellerd/internal/cron"
	"resellerd/internal/middleware"
	"resellerd/internal/payment"
	"resellerd/internal/pkg/telegram"
	"resellerd/internal/provision"
	"resellerd/internal/repository"
	"resellerd/internal/router"
	"resellerd/internal/suspension"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Callback Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewCallbackDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for callback dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Repositories ---
	repos := router.NewRepos(db)
	resellerRepo := repository.NewResellerRepository(db)
	configRepo := repository.NewConfigRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	panelRepo := repository.NewPanelRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// --- Core components ---
	notifier := telegram.NewNotifier(cfg.Notify.BotToken, cfg.Notify.ChatID)
	adapter := provision.NewAdapter(panelRepo, logger)
	machine := suspension.NewMachine(resellerRepo, configRepo, adapter, eventRepo, notifier, logger)
	engine := billing.NewEngine(db, resellerRepo, configRepo, ledgerRepo, logger)

	starsefar := payment.NewStarsefarGateway(cfg.Payment.Starsefar.APIKey)
	tetra98 := payment.NewTetra98Gateway(cfg.Payment.Tetra98.APIKey)
	reconciler := payment.NewReconciler(payment.NewGormStore(db, resellerRepo, txnRepo), machine, logger)

	// --- Routes ---
	router.Setup(e, &router.Deps{
		DB:          db,
		Repos:       repos,
		Engine:      engine,
		Adapter:     adapter,
		Machine:     machine,
		Reconciler:  reconciler,
		Starsefar:   starsefar,
		Tetra98:     tetra98,
		Deduper:     deduper,
		Notifier:    notifier,
		Logger:      logger,
		APIKey:      cfg.API.Key,
		CallbackURL: cfg.Server.BaseURL,
	})

	// --- Cron Scheduler ---
	cronRepos := &cronpkg.CronRepos{
		Reseller:    resellerRepo,
		Config:      configRepo,
		Transaction: txnRepo,
		Setting:     settingRepo,
		Panel:       panelRepo,
	}
	scheduler := cronpkg.New(cronRepos, engine, machine, reconciler, starsefar, notifier, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting resellerd server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return err
	}
	logger.Info("Schema migration and default seed completed")
	return nil
}
