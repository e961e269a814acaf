package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpadapter "wastemetrics/internal/adapters/http"
	"wastemetrics/internal/app"
	"wastemetrics/internal/config"
	"wastemetrics/internal/observability"
	importrunner "wastemetrics/internal/workers/importrunner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := httpadapter.New(httpadapter.Deps{
		Charts:         a.Charts,
		Companies:      a.Companies,
		Imports:        a.Imports,
		Jobs:           a.DB,
		Processor:      a.Processor,
		DB:             a.DB,
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       registry,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Optional background import workers.
	var workers sync.WaitGroup
	if cfg.ImportWorkers > 0 {
		runner := importrunner.Runner{
			Repo:         a.DB,
			Processor:    a.Processor,
			Concurrency:  cfg.ImportWorkers,
			PollInterval: cfg.ImportPollInterval,
			Logger:       logger,
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			runner.Run(ctx)
		}()
		logger.Info("import workers started", "workers", cfg.ImportWorkers)
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	workers.Wait()
	logger.Info("shutdown complete")
}
