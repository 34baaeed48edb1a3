// Package statusref loads the NYNHP conservation-status reference list.
// The list is a CSV published by the New York Natural Heritage Program,
// keyed by scientific name; it is read once per pipeline run and treated as
// read-only.
package statusref

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
)

// Required columns. A file missing any of these is malformed and fails with
// *domain.SchemaError.
const (
	colScientificName = "Scientific name"
	colStateRank      = "State conservation status rank"
	colSGCN           = "Species of greatest conservation need"
)

// Optional columns, carried through when present.
const (
	colCommonName        = "Primary common name"
	colGlobalRank        = "Global conservation status rank"
	colFederalProtection = "Federal protection"
	colStateProtection   = "State protection"
)

// Loader reads the reference file from a fixed path, implementing the
// pipeline's status-loading stage.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for the given CSV path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load reads and parses the reference file.
func (l *Loader) Load(_ context.Context) (domain.StatusTable, error) {
	table, err := LoadFile(l.path)
	if err != nil {
		return domain.StatusTable{}, err
	}
	l.logger.Info("status reference loaded",
		"path", l.path,
		"entries", table.Len(),
		"duplicate_keys_dropped", table.Duplicates(),
	)
	return table, nil
}

// LoadFile parses a reference CSV into a StatusTable. Duplicate scientific
// names resolve to the first row in file order; rows with an empty
// scientific name are skipped.
func LoadFile(path string) (domain.StatusTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.StatusTable{}, fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()

	table, err := parse(f, path)
	if err != nil {
		return domain.StatusTable{}, err
	}
	return table, nil
}

func parse(r io.Reader, path string) (domain.StatusTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated; missing cells read as empty

	header, err := reader.Read()
	if err != nil {
		return domain.StatusTable{}, fmt.Errorf("read reference header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range []string{colScientificName, colStateRank, colSGCN} {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return domain.StatusTable{}, &domain.SchemaError{Path: path, Missing: missing}
	}

	cell := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []domain.StatusEntry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.StatusTable{}, fmt.Errorf("read reference row: %w", err)
		}

		name := cell(row, colScientificName)
		if name == "" {
			continue
		}

		entries = append(entries, domain.StatusEntry{
			ScientificName:    name,
			CommonName:        cell(row, colCommonName),
			GlobalRank:        cell(row, colGlobalRank),
			StateRank:         cell(row, colStateRank),
			FederalProtection: cell(row, colFederalProtection),
			StateProtection:   cell(row, colStateProtection),
			SGCN:              parseSGCN(cell(row, colSGCN)),
		})
	}

	return domain.NewStatusTable(entries), nil
}

// parseSGCN interprets the reference file's SGCN column, which uses values
// like "Yes", "Yes - High Priority", or "No".
func parseSGCN(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "yes")
}
