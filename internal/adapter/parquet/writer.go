package parquet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/xitongsys/parquet-go-source/local"
	pq "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Writer persists enriched records as a parquet file, implementing the
// pipeline's write stage.
type Writer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a dataset Writer.
func NewWriter(logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{logger: logger, metrics: metrics}
}

// Write serializes the records to destination. The file is written to a
// temporary sibling first and renamed into place, so a failed run never
// leaves a truncated dataset behind. An existing file at destination is
// replaced atomically.
func (w *Writer) Write(ctx context.Context, records []domain.EnrichedRecord, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(destination)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := writeFile(tmpPath, records); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return fmt.Errorf("rename dataset into place: %w", err)
	}

	w.metrics.RecordsWritten.Add(float64(len(records)))
	w.logger.Info("dataset written", "path", destination, "records", len(records))
	return nil
}

func writeFile(path string, records []domain.EnrichedRecord) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(datasetRow), 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = pq.CompressionCodec_SNAPPY

	for _, rec := range records {
		if err := pw.Write(toRow(rec)); err != nil {
			fw.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}
