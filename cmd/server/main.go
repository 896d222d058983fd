/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the stock ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Wire the ledger engine, report service, and conservation sweeper
  5. Configure HTTP router
  6. Start server with graceful shutdown

ENVIRONMENT:
  HTTP_PORT       HTTP server port (default: 8080)
  DB_PATH         SQLite database path (default: ./stock.db)
                  Use ":memory:" for an in-memory database
  CORS_ORIGINS    Comma-separated allowed origins (default: *)
  LOG_LEVEL       zap level (default: info)
  RECON_SCHEDULE  Cron expression for the conservation sweep
                  (default: "0 2 * * *"; empty disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the conservation sweeper
  4. Close database connection
  5. Exit

SEE ALSO:
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

	"go.uber.org/zap"

	"github.com/warp/stock-ledger/api"
	"github.com/warp/stock-ledger/config"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/pkg/logger"
	"github.com/warp/stock-ledger/recon"
	"github.com/warp/stock-ledger/report"
	"github.com/warp/stock-ledger/store/sqlite"
)

func main() {
	envFile := flag.String("env", "", "optional .env file path")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.Logger.Level))
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire the core: the store backs balances, the log, the catalog, and
	// the rosters.
	engine := ledger.NewEngine(store, store, store, logger.Named(log, "ledger"))
	reports := report.NewService(store)

	sweeper := recon.NewSweeper(reports, logger.Named(log, "recon"))
	if err := sweeper.Start(cfg.Recon.CronSchedule); err != nil {
		log.Fatal("failed to start conservation sweep", zap.Error(err))
	}
	defer sweeper.Stop()

	handler := api.NewHandler(engine, store, store, reports)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
