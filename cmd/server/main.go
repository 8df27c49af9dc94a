package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tanisma/internal/api"
	"tanisma/internal/auth"
	"tanisma/internal/config"
	"tanisma/internal/core"
	"tanisma/internal/logging"
	"tanisma/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	// Initialize the credential store (SQLite file or PostgreSQL URL).
	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer repo.Close()

	tokens := auth.NewTokenService(cfg.JWTSecret, auth.SessionTTL)

	// Initialize the reply cascade: Gemini, then OpenAI, then the local
	// responder built into the service.
	gemini := core.NewGeminiProvider(ctx, cfg.GeminiAPIKey, logger)
	defer gemini.Close()
	replier := core.NewReplyService(logger, gemini, core.NewOpenAIProvider(cfg.OpenAIAPIKey))

	handler := api.NewHandler(repo, tokens, replier, logger, cfg.Production())
	router := api.NewRouter(handler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // AI provider calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "server listening", "addr", serverAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info(ctx, "server exited gracefully")
}
