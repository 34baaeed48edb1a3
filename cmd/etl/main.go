// Command etl runs one end-to-end pipeline pass: resolve the configured
// place boundary, fetch GBIF occurrences inside it for the configured IUCN
// categories, join them against the NYNHP conservation-status list, and
// write the enriched dataset as a parquet file.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/adapter/gbif"
	httpadapter "github.com/couchcryptid/occurrence-etl/internal/adapter/http"
	"github.com/couchcryptid/occurrence-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/occurrence-etl/internal/adapter/parquet"
	"github.com/couchcryptid/occurrence-etl/internal/cache"
	"github.com/couchcryptid/occurrence-etl/internal/config"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/couchcryptid/occurrence-etl/internal/pipeline"
	"github.com/couchcryptid/occurrence-etl/internal/statusref"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize geometry cache", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	resolver := nominatim.NewCachedResolver(
		nominatim.NewClient(cfg.NominatimBaseURL, cfg.UserAgent, cfg.NominatimTimeout, logger, metrics),
		store, logger, metrics,
	)

	fetcher := gbif.NewClient(gbif.Config{
		BaseURL:    cfg.GBIFBaseURL,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.GBIFTimeout,
		PageLimit:  cfg.GBIFPageLimit,
		MaxRetries: cfg.GBIFMaxRetries,
		MaxRecords: cfg.GBIFMaxRecords,
		PageDelay:  cfg.GBIFPageDelay,
	}, logger, metrics)

	loader := statusref.NewLoader(cfg.StatusCSVPath, logger)
	writer := parquet.NewWriter(logger, metrics)

	p := pipeline.New(resolver, fetcher, loader, writer,
		cfg.PlaceQuery(), cfg.Categories, cfg.OutputPath, logger, metrics)

	result, err := p.Run(ctx)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			logger.Error("pipeline failed", "stage", stageErr.Stage, "error", stageErr.Err)
		} else {
			logger.Error("pipeline failed", "error", err)
		}
		os.Exit(1)
	}

	logger.Info("run complete",
		"run_id", result.RunID,
		"boundary", result.Boundary,
		"bbox_wkt", result.BBoxWKT,
		"occurrences", result.Occurrences,
		"with_status", result.WithStatus,
		"output", result.OutputPath,
		"duration", result.Duration,
	)

	if os.Getenv("SERVE_AFTER_RUN") == "true" {
		serveDataset(ctx, cfg, logger, result.OutputPath)
	}
}

// newCacheStore builds the geometry cache backend selected by CACHE_BACKEND.
func newCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemStore(), func() {}, nil
	case "redis":
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr, "nominatim:", cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("geometry cache using redis", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}, nil
	default:
		store, err := cache.NewFSStore(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// serveDataset reads the freshly written dataset back and serves the
// explorer until interrupted, so a single invocation can produce and
// inspect a run (SERVE_AFTER_RUN=true).
func serveDataset(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) {
	records, err := parquet.Read(path)
	if err != nil {
		logger.Error("failed to read dataset back", "path", path, "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, records, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
