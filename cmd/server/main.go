package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/integrationos/gateway/internal/config"
	"github.com/integrationos/gateway/internal/observability"
	"github.com/integrationos/gateway/internal/secrets"
	"github.com/integrationos/gateway/internal/server"
	"github.com/integrationos/gateway/internal/server/routes"
	"github.com/integrationos/gateway/internal/state"
)

const shutdownTimeout = 30 * time.Second

func Run() error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	if cfg.IsLocalDevelopment() && os.Getenv("SECRETS_ENCRYPTION_KEY") == "" {
		slog.Warn("SECRETS_ENCRYPTION_KEY not set, using local development fallback")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig{
		Enabled:          cfg.Observability.Enabled,
		OTLPEndpoint:     cfg.Observability.OTLPEndpoint,
		OTLPTraceHeaders: cfg.Observability.OTLPTraceHeaders,
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVer:       cfg.Observability.ServiceVer,
		SamplingRatio:    cfg.Observability.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	cipher, err := secrets.New(cfg.Secrets.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create secrets client: %w", err)
	}

	metrics := observability.NewMetrics()
	app, err := state.New(ctx, cfg, cipher, log, metrics)
	if err != nil {
		return fmt.Errorf("failed to build application state: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Shutdown(ctx); err != nil {
			slog.Error("Failed to drain application state", "error", err)
		}
	}()

	if database := app.Database(); database != nil && cfg.Database.LogTiming {
		go database.LogLatencyStats(ctx, log, 60*time.Second)
	}

	srv := server.New(log, cfg.Observability.ServiceName, metrics)
	srv.RegisterRouter(routes.NewGatewayRoutes(routes.Dependencies{
		Access:     app.Access,
		Events:     app.Events,
		Metrics:    app.Metrics,
		Dispatcher: app.Dispatcher,
		OpenAPI:    app.OpenAPI,
		Limiter:    app.RateLimiter,
		RateLimit:  cfg.RateLimit.PerMinute,
		Telemetry:  metrics,
		Health:     app.Ping,
		Log:        log,
	}))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", cfg.Server.Address, "environment", cfg.Environment)
		errCh <- srv.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func main() {
	if err := Run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
