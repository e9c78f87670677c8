/*
Package main is the entry point for the relay chat server.

It is responsible for loading configuration, initializing the global logging system,
starting the relay Hub, setting up the HTTP server, and gracefully handling operating
system interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/internal/app/relay"
	"relaychat/internal/configs"
	"relaychat/internal/handler"
	"relaychat/internal/pkg/logx"
)

func main() {
	// Load .env if present; real environment variables take precedence.
	dotenvLoaded, err := configs.LoadDotEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int64("max_message_size", cfg.MaxMessageSize).
		Float64("message_rate", cfg.MessageRate).
		Float64("upgrade_rate", cfg.UpgradeRate).
		Bool("dotenv_loaded", dotenvLoaded).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the relay hub
	hub := relay.NewHub()
	go hub.Run()

	// Setup HTTP server and routes
	router := handler.Router(ctx, &handler.AppDeps{Hub: hub, Config: cfg})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Relay chat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked WebSocket connections are not tracked by Shutdown; the hub closes them.
	hub.Stop()
	<-hub.Done()

	logx.Info("Server gracefully stopped.")
}
