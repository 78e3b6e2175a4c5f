package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fitstream/activity_downloader/internal/config"
	"github.com/fitstream/activity_downloader/internal/downloader"
	"github.com/fitstream/activity_downloader/internal/http/rest"
	"github.com/fitstream/activity_downloader/internal/job"
	"github.com/fitstream/activity_downloader/internal/logctx"
	"github.com/fitstream/activity_downloader/internal/sink"
	"github.com/fitstream/activity_downloader/internal/source/intervals"
	"github.com/fitstream/activity_downloader/internal/storage/sqlite"
	"github.com/fitstream/activity_downloader/internal/telemetry"
	"github.com/fitstream/activity_downloader/internal/webhook"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/sync/errgroup"
)

const serviceName = "activity_downloader"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("activity downloader starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		ServiceName: serviceName,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer tel.Shutdown(context.Background())

	if cfg.TelemetryEnabled {
		if err := runtime.Start(); err != nil {
			logger.Warn("failed to start runtime instrumentation", "err", err)
		}
	}

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("DB error: %w", err)
	}
	defer database.Close()

	events := sqlite.NewInstrumentedWebhookEventRepository(database, tel)
	webhooks := webhook.NewService(cfg.WebhookSecret, events)

	// =========================================================================
	// Start Download Manager
	registry := job.NewRegistry(cfg.MaxTrackedJobs)
	source := intervals.NewClient(cfg.IntervalsBaseURL, cfg.IntervalsAPIKey, cfg.ChunkSize, cfg.HeaderTimeout)

	manager := downloader.NewManager(
		ctx,
		registry,
		source,
		sink.NewFileWriter(),
		cfg.DownloadDir,
		cfg.MaxParallel,
		downloader.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		tel,
	)

	logger.Info("waiting for download requests...",
		"download_dir", cfg.DownloadDir,
		"max_parallel", cfg.MaxParallel,
		"max_tracked_jobs", cfg.MaxTrackedJobs,
	)

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, manager, webhooks, tel, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("start shutdown")

		// Give outstanding requests and running workers a deadline for
		// completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to drain download workers", "err", err)
		}

		return nil
	})

	return g.Wait()
}

// setupServer prepares the handlers and middleware chain for the http
// rest server.
func setupServer(
	ctx context.Context,
	manager *downloader.Manager,
	webhooks *webhook.Service,
	tel *telemetry.Telemetry,
	cfg *config.Config,
) *http.Server {
	handler := rest.NewDownloadHandler(manager, webhooks, tel)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.HTTPMetrics(tel))
	r.Method(http.MethodGet, "/metrics", tel.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, serviceName),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
