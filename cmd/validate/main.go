// Command validate performs integrity checks on a produced occurrence
// dataset against its conservation-status reference CSV: record uniqueness,
// field presence, and join correctness.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dataset data/occurrences.parquet \
//	  -status-csv data/nynhp-status-list.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/occurrence-etl/internal/adapter/parquet"
	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/statusref"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataset := flag.String("dataset", "", "path to the occurrence parquet file")
	statusCSV := flag.String("status-csv", "", "path to the status reference CSV")
	flag.Parse()

	if *dataset == "" || *statusCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataset, *statusCSV); code != 0 {
		os.Exit(code)
	}
}

func run(datasetPath, statusPath string) int {
	fmt.Println("=== Occurrence Dataset Integrity Validation ===")
	fmt.Println()

	records, err := parquet.Read(datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	table, err := statusref.LoadFile(statusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load status reference: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRecordIntegrity(records),
		validateStatusConsistency(records),
		validateReferenceParity(records, table),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	withStatus := 0
	for _, rec := range records {
		if rec.HasStatus {
			withStatus++
		}
	}
	fmt.Println()
	fmt.Printf("Records: %d dataset (%d with status), %d reference entries\n",
		len(records), withStatus, table.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Record Integrity ──
// Required fields are present and GBIF IDs are unique.

func validateRecordIntegrity(records []domain.EnrichedRecord) *phase {
	p := &phase{name: "Phase 1: Record Integrity"}

	seen := map[int64]int{}
	for i, rec := range records {
		if rec.GbifID != 0 {
			if first, dup := seen[rec.GbifID]; dup {
				p.errorf("record %d: duplicate GBIF ID %d (first seen at %d)", i, rec.GbifID, first)
			} else {
				seen[rec.GbifID] = i
			}
		}

		if rec.ScientificName == "" && rec.Species == "" {
			p.errorf("record %d: both species and scientific name are empty", i)
		}
		if rec.IUCNCategory == "" {
			p.errorf("record %d: IUCN category is empty", i)
		}
		if rec.DecimalLatitude < -90 || rec.DecimalLatitude > 90 {
			p.errorf("record %d: latitude %g out of range", i, rec.DecimalLatitude)
		}
		if rec.DecimalLongitude < -180 || rec.DecimalLongitude > 180 {
			p.errorf("record %d: longitude %g out of range", i, rec.DecimalLongitude)
		}
		if rec.RetrievedAt.IsZero() {
			p.errorf("record %d: retrieved_at is zero", i)
		}
	}
	return p
}

// ── Phase 2: Status Consistency ──
// has_status and the status fields agree within each record.

func validateStatusConsistency(records []domain.EnrichedRecord) *phase {
	p := &phase{name: "Phase 2: Status Consistency"}

	for i, rec := range records {
		switch {
		case rec.HasStatus && rec.Status == nil:
			p.errorf("record %d (%s): has_status set but status fields are absent", i, rec.MatchKey())
		case !rec.HasStatus && rec.Status != nil:
			p.errorf("record %d (%s): status fields present but has_status unset", i, rec.MatchKey())
		}
	}
	return p
}

// ── Phase 3: Reference Parity ──
// Every record joins against the reference exactly as the status table says.

func validateReferenceParity(records []domain.EnrichedRecord, table domain.StatusTable) *phase {
	p := &phase{name: "Phase 3: Reference Parity"}

	for i, rec := range records {
		key := rec.MatchKey()
		entry, ok := table.Lookup(key)

		if ok != rec.HasStatus {
			p.errorf("record %d (%s): has_status=%t but reference lookup=%t", i, key, rec.HasStatus, ok)
			continue
		}
		if !rec.HasStatus {
			continue
		}

		if rec.Status.StateRank != entry.StateRank {
			p.errorf("record %d (%s): state rank %q, reference says %q", i, key, rec.Status.StateRank, entry.StateRank)
		}
		if rec.Status.GlobalRank != entry.GlobalRank {
			p.errorf("record %d (%s): global rank %q, reference says %q", i, key, rec.Status.GlobalRank, entry.GlobalRank)
		}
		if rec.Status.SGCN != entry.SGCN {
			p.errorf("record %d (%s): sgcn %t, reference says %t", i, key, rec.Status.SGCN, entry.SGCN)
		}
	}
	return p
}
