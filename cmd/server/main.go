package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/api"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/app"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/auth"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/config"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/logging"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/metrics"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var collector *metrics.Collector
	engineOpts := []analyzer.Option{}
	if cfg.Metrics.Enabled {
		collector = metrics.New(prometheus.NewRegistry())
		engineOpts = append(engineOpts, analyzer.WithRecorder(collector))
	}

	engine, err := app.NewEngine(cfg, logger, engineOpts...)
	if err != nil {
		return err
	}
	engine.Initialize(ctx)
	logger.Info("analysis engine ready", "backend", engine.Backend())

	users := auth.NewPostgresRepository(db)
	authSvc := auth.NewJWTService(auth.Config{
		SecretKey:     cfg.Auth.JWTSecret,
		TokenDuration: cfg.Auth.TokenDuration,
	}, users)

	stores := api.Stores{
		Users:     users,
		Contracts: storage.NewPostgresContractRepository(db),
		Analyses:  storage.NewPostgresAnalysisRepository(db),
		Usage:     storage.NewPostgresUsageRepository(db),
		Sections:  storage.NewPostgresSectionRepository(db),
	}

	opts := []api.Option{api.WithLogger(logger)}
	if embedder := app.NewEmbedder(cfg); embedder != nil {
		opts = append(opts, api.WithEmbedder(embedder))
	} else {
		logger.Warn("embeddings api key not set; clause search disabled")
	}
	if collector != nil {
		opts = append(opts, api.WithMetrics(collector))
	}

	server := api.NewServer(api.Config{
		AnalysisTimeout:     cfg.Server.AnalysisTimeout,
		MaxUploadBytes:      cfg.Server.MaxUploadBytes,
		MaxWords:            cfg.Server.MaxWords,
		FreeMonthlyAnalyses: cfg.Billing.FreeMonthlyAnalyses,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		MetricsPath:         cfg.Metrics.Path,
	}, engine, authSvc, stores, opts...)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting legalreviewiq server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
