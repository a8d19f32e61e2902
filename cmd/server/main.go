/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shop ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Apply command-line flag overrides
  3. Initialize logger and SQLite store
  4. Create pos service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (APP_PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: shop.db)
           Use ":memory:" for in-memory database
  -env     Path to a .env file (default: .env when present)

ENVIRONMENT:
  APP_PORT, DB_PATH, SALE_TIMEZONE, LOG_LEVEL, CORS_ORIGINS,
  LEDGER_FORBID_NEGATIVE. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/shop.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - pos/service.go: Sale orchestration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/copyskillman/shopledger/api"
	"github.com/copyskillman/shopledger/config"
	"github.com/copyskillman/shopledger/logging"
	"github.com/copyskillman/shopledger/pos"
	"github.com/copyskillman/shopledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	envFile := flag.String("env", "", "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}
	if *port != 0 {
		cfg.Server.Port = strconv.Itoa(*port)
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	baseLogger := logging.Must(logging.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("invalid sale timezone", zap.Error(err))
	}

	// Initialize store
	store, err := sqlite.New(cfg.Storage.DBPath)
	if err != nil {
		baseLogger.Fatal("failed to initialize database", zap.Error(err), zap.String("path", cfg.Storage.DBPath))
	}
	defer store.Close()

	svc := pos.NewService(store, pos.Options{
		Location:       loc,
		ForbidNegative: cfg.Sales.ForbidNegative,
		Logger:         logging.Named(baseLogger, "svc.pos"),
	})
	handler := api.NewHandler(svc, logging.Named(baseLogger, "handlers"))
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.CORSOrigins,
		Logger:         logging.Named(baseLogger, "http"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("db", cfg.Storage.DBPath),
			zap.String("timezone", loc.String()),
			zap.Bool("forbid_negative", cfg.Sales.ForbidNegative),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	baseLogger.Info("server stopped")
}
