package parquet

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter() *Writer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWriter(logger, observability.NewMetricsForTesting())
}

func sampleRecords() []domain.EnrichedRecord {
	retrieved := time.Date(2026, time.March, 1, 12, 30, 45, 250_000_000, time.UTC)
	return []domain.EnrichedRecord{
		{
			OccurrenceRecord: domain.OccurrenceRecord{
				GbifID:           4407389321,
				TaxonKey:         2442341,
				ScientificName:   "Glyptemys insculpta (Le Conte, 1830)",
				Species:          "Glyptemys insculpta",
				VernacularName:   "Wood Turtle",
				Kingdom:          "Animalia",
				Phylum:           "Chordata",
				Class:            "Testudines",
				Order:            "Testudines",
				Family:           "Emydidae",
				Genus:            "Glyptemys",
				DecimalLatitude:  41.858,
				DecimalLongitude: -74.173,
				EventDate:        "2024-06-12",
				BasisOfRecord:    "HUMAN_OBSERVATION",
				DatasetKey:       "50c9509d-22c7-4a22-a47d-8c48425ef4a7",
				IUCNCategory:     domain.CategoryEN,
				RecordedBy:       "J. Naturalist",
				InstitutionCode:  "iNaturalist",
				CatalogNumber:    "obs-212",
				RetrievedAt:      retrieved,
			},
			Status: &domain.StatusEntry{
				ScientificName:  "Glyptemys insculpta",
				CommonName:      "Wood Turtle",
				GlobalRank:      "G3",
				StateRank:       "S3",
				StateProtection: "Special Concern",
				SGCN:            true,
			},
			HasStatus: true,
		},
		{
			OccurrenceRecord: domain.OccurrenceRecord{
				GbifID:           4407389322,
				ScientificName:   "Sturnus vulgaris Linnaeus, 1758",
				Species:          "Sturnus vulgaris",
				DecimalLatitude:  41.861,
				DecimalLongitude: -74.151,
				IUCNCategory:     domain.CategoryVU,
				RetrievedAt:      retrieved,
			},
			HasStatus: false,
		},
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "occurrences.parquet")
	records := sampleRecords()

	require.NoError(t, testWriter().Write(context.Background(), records, dest))

	got, err := Read(dest)
	require.NoError(t, err)
	require.Len(t, got, len(records))

	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_ReplacesExistingFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "occurrences.parquet")
	records := sampleRecords()

	require.NoError(t, testWriter().Write(context.Background(), records, dest))
	require.NoError(t, testWriter().Write(context.Background(), records[:1], dest))

	got, err := Read(dest)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, records[0].GbifID, got[0].GbifID)
}

func TestWriter_CreatesOutputDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "out", "occurrences.parquet")

	require.NoError(t, testWriter().Write(context.Background(), sampleRecords(), dest))

	_, err := os.Stat(dest)
	assert.NoError(t, err)
}

func TestWriter_EmptyDataset(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "occurrences.parquet")

	require.NoError(t, testWriter().Write(context.Background(), nil, dest))

	got, err := Read(dest)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriter_NoStrayTempFiles(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "occurrences.parquet")

	require.NoError(t, testWriter().Write(context.Background(), sampleRecords(), dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "occurrences.parquet", entries[0].Name())
}

func TestWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "occurrences.parquet")
	err := testWriter().Write(ctx, sampleRecords(), dest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
