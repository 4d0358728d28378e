/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the recycling rewards server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load optional TOML config
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire domain services (ledger, check-in, vouchers, workflow, stats)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML config file (optional; defaults apply without it)
  -addr    Listen address, overrides config (e.g. ":8080")
  -db      SQLite database path, overrides config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (rewards.db, :8080)
  ./server

  # Run with a config file
  ./server -config=./config.toml

  # Run with in-memory database on another port
  ./server -db=":memory:" -addr=":3000"

SEE ALSO:
  - config/config.go: Configuration structure and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/api"
	"github.com/ecopoints/rewards-engine/config"
	"github.com/ecopoints/rewards-engine/rewards"
	"github.com/ecopoints/rewards-engine/store/sqlite"
	"github.com/ecopoints/rewards-engine/submission"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to TOML config file")
	addr := flag.String("addr", "", "listen address, overrides config")
	dbPath := flag.String("db", "", "SQLite database path, overrides config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Logging
	logger := logrus.New()
	if cfg.Log.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Domain services
	ledger := rewards.NewBalanceLedger(store, logger)
	checkins := rewards.NewCheckinTracker(ledger, logger)
	vouchers := rewards.NewVoucherIssuer(ledger, store, logger)
	accounts := rewards.NewAccountService(store, logger)
	stats := rewards.NewStatsService(store)
	workflow := submission.NewWorkflow(store, logger)

	// HTTP
	handler := api.NewHandler(accounts, ledger, checkins, vouchers, stats, workflow, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr": cfg.Server.Addr,
			"db":   cfg.Database.Path,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	logger.Info("server stopped")
}
