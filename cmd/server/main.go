/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the grant disbursement engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the structured logger
  3. Initialize SQLite store
  4. Build the PIN vault and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: grants.db)
              Use ":memory:" for an in-memory database
  -log-level  debug|info|warn|error (default: info)
  -env        development|production (default: production)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/grants.db"

  # Run with in-memory database (nothing survives restart)
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unseaf/grant-engine/api"
	"github.com/unseaf/grant-engine/logger"
	"github.com/unseaf/grant-engine/pin"
	"github.com/unseaf/grant-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "grants.db", "SQLite database path")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	env := flag.String("env", "production", "environment: development|production")
	flag.Parse()

	if err := logger.Initialize(*logLevel, *env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync() //nolint:errcheck

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Log.Fatal("initializing database", zap.Error(err))
	}
	defer store.Close()

	// Wire dependencies. One store backs both the grant ledger and the
	// PIN credentials.
	vault := pin.NewVault(store)
	handler := api.NewHandler(store, vault)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Log.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("server stopped")
}
