package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txplain/service/config"
	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/metrics"
	"github.com/brojonat/txplain/service/nats"
	"github.com/brojonat/txplain/service/server"
	"github.com/brojonat/txplain/service/solana"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any setting is malformed
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(nil)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.RPCTimeout, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL, "timeout", cfg.RPCTimeout)

	// Providers are built even without credentials so requests can report
	// which variable is missing.
	gemini := explain.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
	openRouter := explain.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, cfg.OpenRouterTimeout)
	explainer := explain.NewExplainer(gemini, openRouter, m, logger)

	creds := cfg.Credentials()
	logger.Info("LLM providers configured",
		"gemini_api_key", creds["GEMINI_API_KEY"],
		"gemini_model", cfg.GeminiModel,
		"openrouter_api_key", creds["OPENROUTER_API_KEY"],
		"openrouter_model", cfg.OpenRouterModel,
	)
	if !gemini.Configured() {
		logger.Warn("GEMINI_API_KEY not set, /explain will return 503")
	}

	// Event publishing is optional
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	} else {
		logger.Info("NATS_URL not set, explanation events disabled")
	}

	// Initialize HTTP server
	httpServer := server.New(cfg, solanaClient, explainer, publisher, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
