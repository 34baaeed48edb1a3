package parquet

import (
	"fmt"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// Read loads an enriched dataset back from a parquet file. The explorer
// uses it to serve a previously produced run.
func Read(path string) ([]domain.EnrichedRecord, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(datasetRow), 2)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	rows := make([]datasetRow, num)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read dataset rows: %w", err)
	}

	records := make([]domain.EnrichedRecord, 0, num)
	for _, row := range rows {
		records = append(records, fromRow(row))
	}
	return records, nil
}
