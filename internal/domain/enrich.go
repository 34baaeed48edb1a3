package domain

// StatusTable is the loaded conservation-status reference, keyed by
// scientific name. Duplicate keys in the source file resolve to the first
// row in file order; later duplicates are dropped and counted.
type StatusTable struct {
	entries    map[string]StatusEntry
	duplicates int
}

// NewStatusTable builds a table from reference rows in file order.
func NewStatusTable(entries []StatusEntry) StatusTable {
	t := StatusTable{entries: make(map[string]StatusEntry, len(entries))}
	for _, e := range entries {
		if _, ok := t.entries[e.ScientificName]; ok {
			t.duplicates++
			continue
		}
		t.entries[e.ScientificName] = e
	}
	return t
}

// Lookup returns the entry for a taxonomic key, if present.
func (t StatusTable) Lookup(key string) (StatusEntry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Len returns the number of distinct keys in the table.
func (t StatusTable) Len() int { return len(t.entries) }

// Duplicates returns how many duplicate-key rows were dropped at load time.
func (t StatusTable) Duplicates() int { return t.duplicates }

// Enrich left-joins occurrence records against the status table by taxonomic
// key. Every input record yields exactly one output record, in input order.
// Keys absent from the table are valid: those records get HasStatus=false and
// a nil Status. Enrich performs no I/O and mints no timestamps, so enriching
// the same input twice yields identical output.
func Enrich(records []OccurrenceRecord, table StatusTable) []EnrichedRecord {
	enriched := make([]EnrichedRecord, 0, len(records))
	for _, r := range records {
		out := EnrichedRecord{OccurrenceRecord: r}
		if entry, ok := table.Lookup(r.MatchKey()); ok {
			status := entry
			out.Status = &status
			out.HasStatus = true
		}
		enriched = append(enriched, out)
	}
	return enriched
}
