package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-parser/internal/config"
	"exam-parser/internal/handler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container := config.NewContainer()

	pipeline, err := container.BuildPipeline()
	if err != nil {
		container.Logger.Error("Failed to build pipeline", err)
		os.Exit(1)
	}

	// Load the recognition models before accepting requests.
	warmupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := container.Recognition.Warmup(warmupCtx); err != nil {
		container.Logger.Warn("Recognition engine warmup failed; retrying on first request", "error", err)
	}
	cancel()

	// Handlers
	parseHandler := handler.NewParseHandler(pipeline, container.Fs, container.Config, container.Logger)

	// Router
	router := handler.NewRouter(parseHandler, container.Logger)

	// start server
	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}
	if err := container.Close(); err != nil {
		container.Logger.Error("Failed to stop recognition engine", err)
	}

	container.Logger.Info("Server exited")
}
