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

	"github.com/dannyrandall/conferences/internal/config"
	"github.com/dannyrandall/conferences/internal/copilot"
	"github.com/dannyrandall/conferences/internal/handlers"
	"github.com/dannyrandall/conferences/internal/logging"
	"github.com/dannyrandall/conferences/internal/otel"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Conferences service failed")
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("backend", cfg.Backend).Str("folder", cfg.Folder).Msg("Using conferences store")

	// Timeout for setup functions
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	shutdown, err := otel.SetupTracer(ctx, copilot.ServiceName("conferences"), cfg.TraceExporter)
	if err != nil {
		return fmt.Errorf("setup otel tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Unable to flush traces")
		}
	}()

	backend, err := cfg.OpenBackend(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	// Setup HTTP server
	mux := http.NewServeMux()

	// Simple health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})

	// API Endpoints
	mux.Handle("/conferences/api/conference", otelhttp.NewHandler(&handlers.Conference{
		Backend: backend,
		Folder:  cfg.Folder,
	}, "conference"))

	srv := &http.Server{Addr: ":8080", Handler: mux}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run HTTP Server
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-sigCtx.Done():
	}
	log.Info().Msg("Shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down server: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
