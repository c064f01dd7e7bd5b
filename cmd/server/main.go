/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the zap logger at LOG_LEVEL
  3. Initialize SQLite store
  4. Connect Redis when REDIS_URL is set
  5. Start the notification dispatcher
  6. Create engine, directory, authenticator and handler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. The important ones:
  JWT_SECRET, REDIS_URL, ENABLE_SCENARIOS, LOG_LEVEL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the dispatcher
  4. Close Redis and database connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Demo mode with scenario loader
  ENABLE_SCENARIOS=true ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - leave/engine.go: Request lifecycle
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
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	cfgErr := cfg.Validate()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(cfgErr))
	}
	if cfg.InsecureSecret() {
		logger.Warn("JWT_SECRET is the built-in development secret; set a real one outside local use")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err), zap.String("db", cfg.DBPath))
	}
	defer store.Close()

	var publisher notify.Publisher
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		publisher = notify.NewRedisPublisher(client, cfg.RedisChannel)
		logger.Info("publishing lifecycle events", zap.String("channel", cfg.RedisChannel))
	}

	clock := leave.SystemClock{}
	dispatcher := notify.NewDispatcher(store, publisher, cfg.NotifyBuffer, clock, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	engine := leave.NewEngine(store, clock, dispatcher, logger)
	directory := leave.NewDirectory(store, clock, logger)
	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, directory, logger)

	handler := api.NewHandler(engine, directory, logger)
	handler.Health = store
	if cfg.EnableScenarios {
		handler.EnableScenarios(store, auth, clock)
		logger.Warn("demo scenario routes enabled; loading a scenario wipes the database")
	}

	router := api.NewRouter(handler, auth, api.RouterOptions{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
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
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newLogger builds the production logger. An unparsable level falls back to
// info so configuration errors can still be logged.
func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
