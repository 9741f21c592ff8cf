package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CTAG07/whiterabbit/pkg/corpus"
	"github.com/CTAG07/whiterabbit/pkg/markov"
	"github.com/CTAG07/whiterabbit/pkg/textgen"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "./config.json", "path to the JSON config file")
	flag.Parse()

	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// A missing .env is fine; the real environment and config.json still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		baseLogger.Warn("Failed to load .env file", "error", err)
	}

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	first := true
	for {
		action, err := run(*configPath, actionChan, first)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			os.Exit(1)
		}
		first = false

		if action == actionRestart {
			baseLogger.Info("--- Server Restarting ---")
			continue
		}
		break
	}

	baseLogger.Info("White Rabbit has shut down.")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run hosts the server, and returns whenever the server is shutdown or restarted.
func run(configPath string, actionChan chan string, showBanner bool) (string, error) {

	config, err := LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if err = config.ApplyEnv(os.LookupEnv); err != nil {
		return "", fmt.Errorf("failed to apply environment: %w", err)
	}

	logger := newLogger(os.Stdout, config.Server)
	logger.Info("Starting server cycle...", "version", Version)

	if config.Server.DataDir != "" {
		if err = os.MkdirAll(config.Server.DataDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}

	if err = corpus.SetupSchema(db); err != nil {
		logger.Error("Failed to setup corpus schema", "error", err)
	}
	if err = setupStatsSchema(db); err != nil {
		logger.Error("Failed to setup stats schema", "error", err)
	}

	var store *corpus.Store
	if config.Corpus.CacheEnabled {
		store, err = corpus.NewStore(db)
		if err != nil {
			logger.Warn("Corpus cache disabled", "error", err)
		}
	}

	loader := corpus.NewLoader(config.Corpus.CorpusOptions(), store)
	loader.SetLogger(logger)
	chains := markov.NewBuilder(loader.Load, markov.NewDefaultTokenizer())
	chains.SetLogger(logger)
	engine := textgen.New(chains, nil)
	engine.SetLogger(logger)

	// Build the chain in the background so the first request does not pay for it.
	go chains.Get(context.Background())

	server := NewServer(config, logger, db, engine, actionChan)
	httpServer := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if showBanner {
		printBanner(os.Stdout, config.Server.Addr, config.Server.Model)
	}

	go func() {
		logger.Info("Starting White Rabbit server", "address", httpServer.Addr, "model", config.Server.Model)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			actionChan <- actionShutdown
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping server for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	if store != nil {
		store.Close()
	}
	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return action, nil
}
