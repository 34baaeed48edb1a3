// Command genmock generates a deterministic mock dataset: a small
// conservation-status reference CSV and a matching enriched parquet file.
// It runs the real enrichment and writer code so fixtures stay aligned with
// pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv-out data/mock/status-list.csv \
//	  -parquet-out data/mock/occurrences.parquet
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/adapter/parquet"
	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/couchcryptid/occurrence-etl/internal/statusref"
	"github.com/jonboulle/clockwork"
)

// mockSpecies drives both the reference CSV and the occurrence records, so
// join outcomes are known in advance.
type mockSpecies struct {
	species    string
	scientific string
	common     string
	category   domain.IUCNCategory
	globalRank string
	stateRank  string
	protection string
	sgcn       string // CSV cell value; empty means the species is left out of the CSV
	count      int
}

var species = []mockSpecies{
	{"Glyptemys insculpta", "Glyptemys insculpta (Le Conte, 1830)", "Wood Turtle", domain.CategoryEN, "G3", "S3", "Special Concern", "Yes - High Priority", 6},
	{"Emydoidea blandingii", "Emydoidea blandingii (Holbrook, 1838)", "Blanding's Turtle", domain.CategoryEN, "G4", "S2S3", "Threatened", "Yes", 3},
	{"Alasmidonta varicosa", "Alasmidonta varicosa (Lamarck, 1819)", "Brook Floater", domain.CategoryVU, "G3", "S1", "Threatened", "Yes", 2},
	{"Myotis septentrionalis", "Myotis septentrionalis (Trouessart, 1897)", "Northern Long-eared Bat", domain.CategoryCR, "G1G2", "S1", "Endangered", "Yes", 4},
	{"Sturnus vulgaris", "Sturnus vulgaris Linnaeus, 1758", "European Starling", domain.CategoryVU, "G5", "SNA", "", "No", 5},
	// No reference row: these records must come out with has_status=false.
	{"Bombus terricola", "Bombus terricola Kirby, 1837", "", domain.CategoryVU, "", "", "", "", 3},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvOut := flag.String("csv-out", "", "output path for the mock status reference CSV")
	parquetOut := flag.String("parquet-out", "", "output path for the mock enriched parquet file")
	flag.Parse()

	if *csvOut == "" || *parquetOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -parquet-out")
	}

	// Fixed clock for reproducible retrieved_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	if err := writeReferenceCSV(*csvOut); err != nil {
		return fmt.Errorf("writing reference CSV: %w", err)
	}
	log.Printf("wrote reference CSV: %s", *csvOut)

	table, err := statusref.LoadFile(*csvOut)
	if err != nil {
		return fmt.Errorf("loading reference CSV back: %w", err)
	}

	records := buildOccurrences()
	enriched := domain.Enrich(records, table)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := parquet.NewWriter(logger, observability.NewMetricsForTesting())
	if err := writer.Write(context.Background(), enriched, *parquetOut); err != nil {
		return fmt.Errorf("writing parquet fixture: %w", err)
	}
	log.Printf("wrote parquet fixture: %s (%d records)", *parquetOut, len(enriched))

	printStats(enriched)
	return nil
}

func writeReferenceCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Scientific name,Primary common name,Global conservation status rank,State conservation status rank,Federal protection,State protection,Species of greatest conservation need\n")
	for _, s := range species {
		if s.sgcn == "" {
			continue
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s,,%s,%s\n",
			s.species, s.common, s.globalRank, s.stateRank, s.protection, s.sgcn)
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func buildOccurrences() []domain.OccurrenceRecord {
	var records []domain.OccurrenceRecord
	id := int64(1000)
	for _, s := range species {
		for i := 0; i < s.count; i++ {
			id++
			records = append(records, domain.OccurrenceRecord{
				GbifID:           id,
				TaxonKey:         id * 10,
				ScientificName:   s.scientific,
				Species:          s.species,
				VernacularName:   s.common,
				DecimalLatitude:  41.80 + float64(i)*0.01,
				DecimalLongitude: -74.20 + float64(i)*0.01,
				EventDate:        fmt.Sprintf("2024-06-%02d", i+1),
				BasisOfRecord:    "HUMAN_OBSERVATION",
				IUCNCategory:     s.category,
				RetrievedAt:      domain.Now(),
			})
		}
	}
	return records
}

func printStats(enriched []domain.EnrichedRecord) {
	withStatus, sgcn := 0, 0
	byCategory := map[domain.IUCNCategory]int{}
	for _, rec := range enriched {
		byCategory[rec.IUCNCategory]++
		if !rec.HasStatus {
			continue
		}
		withStatus++
		if rec.Status.SGCN {
			sgcn++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(enriched))
	fmt.Printf("With status: %d\n", withStatus)
	fmt.Printf("SGCN: %d\n", sgcn)
	fmt.Printf("By category: CR=%d, EN=%d, VU=%d, NT=%d\n",
		byCategory[domain.CategoryCR], byCategory[domain.CategoryEN],
		byCategory[domain.CategoryVU], byCategory[domain.CategoryNT])
}
