// Package app wires the adapters and services shared by the server and the
// CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	pg "wastemetrics/internal/adapters/postgres"
	"wastemetrics/internal/adapters/rediscache"
	"wastemetrics/internal/adapters/s3store"
	"wastemetrics/internal/analytics"
	"wastemetrics/internal/config"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
	"wastemetrics/internal/services/charts"
	"wastemetrics/internal/services/companies"
	"wastemetrics/internal/services/imports"
)

// App holds the wired services. Close releases the connections it opened.
type App struct {
	DB        *pg.DB
	Charts    *charts.Service
	Companies *companies.Service
	Imports   *imports.Service
	Processor *imports.Processor

	redis redis.UniversalClient
}

// Build connects to Postgres, and to Redis and S3 when configured, and builds
// the services on top.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &App{DB: db}

	if cfg.RunMigrations {
		if err := pg.Migrate(ctx, db.SQL); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("migrations applied")
	}

	var (
		directory   ports.CompanyDirectory = db
		invalidator ports.DirectoryInvalidator
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		cache := rediscache.NewDirectory(db, a.redis, cfg.DirectoryCacheTTL, logger, metrics)
		directory, invalidator = cache, cache
		logger.Info("company directory cache enabled", "ttl", cfg.DirectoryCacheTTL)
	}

	var blobs ports.BlobStore = pg.PayloadStore{DB: db}
	if cfg.UploadBucket != "" {
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.UploadBucket)
		if err != nil {
			a.Close()
			return nil, err
		}
		blobs = store
		logger.Info("import payloads stored in s3", "bucket", cfg.UploadBucket)
	}

	binner, err := analytics.NewBinner(cfg.Charts.RecoveryBins)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Charts = charts.New(db, directory, binner, charts.Settings{
		MinReportingPeriod:     cfg.Charts.MinReportingPeriod,
		HighPerformerThreshold: cfg.Charts.HighPerformerThreshold,
		LowPerformerThreshold:  cfg.Charts.LowPerformerThreshold,
	}, logger, metrics)
	a.Companies = companies.New(db, invalidator, logger)
	a.Imports = imports.New(db, blobs, clockwork.NewRealClock(), logger)
	a.Processor = imports.NewProcessor(db, db, blobs, directory, db, logger, metrics)
	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.DB.Close()
}
