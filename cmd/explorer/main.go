// Command explorer serves a previously produced occurrence dataset as an
// interactive map and table with status, rank, SGCN, and category filters.
//
// Usage:
//
//	go run ./cmd/explorer -dataset data/occurrences.parquet
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/occurrence-etl/internal/adapter/http"
	"github.com/couchcryptid/occurrence-etl/internal/adapter/parquet"
	"github.com/couchcryptid/occurrence-etl/internal/config"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dataset := flag.String("dataset", cfg.OutputPath, "path to the occurrence parquet file")
	addr := flag.String("addr", cfg.HTTPAddr, "listen address")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	records, err := parquet.Read(*dataset)
	if err != nil {
		logger.Error("failed to load dataset", "path", *dataset, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "path", *dataset, "records", len(records))

	srv := httpadapter.NewServer(*addr, records, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
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
