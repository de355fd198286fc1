package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"

	"cgtTracker/cli"
	"cgtTracker/config"
	"cgtTracker/internal/adapters/logger"
	"cgtTracker/internal/adapters/sqlite"
	"cgtTracker/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		os.Exit(1)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Services
	matcher, err := app.NewMatchingService(appLogger, repo, repo, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize matching service")
		os.Exit(1)
	}
	forecaster, err := app.NewForecastService(appLogger, repo, matcher)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize forecast service")
		os.Exit(1)
	}
	reporter, err := app.NewReportingService(appLogger, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize reporting service")
		os.Exit(1)
	}
	importer, err := app.NewImportService(appLogger, repo, repo, repo, cfg.DefaultExchange, cfg.DefaultCurrency)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize import service")
		os.Exit(1)
	}

	// 5. Run the CLI
	c := cli.New(appLogger, repo, repo, matcher, forecaster, reporter, importer)
	if err := c.Execute(); err != nil {
		os.Exit(1)
	}
}
