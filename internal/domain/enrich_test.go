package domain_test

import (
	"testing"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() domain.StatusTable {
	return domain.NewStatusTable([]domain.StatusEntry{
		{ScientificName: "12345", StateRank: "S1", CommonName: "Test species", SGCN: true},
		{ScientificName: "Emydoidea blandingii", StateRank: "S2S3", GlobalRank: "G4", SGCN: true},
	})
}

func TestEnrich_KeyPresent(t *testing.T) {
	records := []domain.OccurrenceRecord{
		{GbifID: 1, Species: "12345"},
	}

	enriched := domain.Enrich(records, testTable())
	require.Len(t, enriched, 1)

	assert.True(t, enriched[0].HasStatus)
	require.NotNil(t, enriched[0].Status)
	assert.Equal(t, "S1", enriched[0].Status.StateRank)
}

func TestEnrich_KeyAbsent(t *testing.T) {
	records := []domain.OccurrenceRecord{
		{GbifID: 2, Species: "99999"},
	}

	enriched := domain.Enrich(records, testTable())
	require.Len(t, enriched, 1)

	assert.False(t, enriched[0].HasStatus)
	assert.Nil(t, enriched[0].Status)
}

func TestEnrich_ScientificNameFallback(t *testing.T) {
	// No binomial species field: the full scientific name is the join key.
	records := []domain.OccurrenceRecord{
		{GbifID: 3, ScientificName: "Emydoidea blandingii"},
	}

	enriched := domain.Enrich(records, testTable())
	require.Len(t, enriched, 1)
	assert.True(t, enriched[0].HasStatus)
	assert.Equal(t, "S2S3", enriched[0].Status.StateRank)
}

func TestEnrich_OneOutputPerInput_InOrder(t *testing.T) {
	records := []domain.OccurrenceRecord{
		{GbifID: 10, Species: "12345"},
		{GbifID: 11, Species: "99999"},
		{GbifID: 12, Species: "Emydoidea blandingii"},
	}

	enriched := domain.Enrich(records, testTable())
	require.Len(t, enriched, len(records))
	for i := range records {
		assert.Equal(t, records[i].GbifID, enriched[i].GbifID)
	}
}

func TestEnrich_Idempotent(t *testing.T) {
	records := []domain.OccurrenceRecord{
		{GbifID: 1, Species: "12345"},
		{GbifID: 2, Species: "99999"},
	}
	table := testTable()

	first := domain.Enrich(records, table)
	second := domain.Enrich(records, table)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("enrichment not idempotent (-first +second):\n%s", diff)
	}
}

func TestStatusTable_DuplicateKeysFirstWins(t *testing.T) {
	table := domain.NewStatusTable([]domain.StatusEntry{
		{ScientificName: "Alasmidonta varicosa", StateRank: "S1"},
		{ScientificName: "Alasmidonta varicosa", StateRank: "S2"},
	})

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, table.Duplicates())

	entry, ok := table.Lookup("Alasmidonta varicosa")
	require.True(t, ok)
	assert.Equal(t, "S1", entry.StateRank)
}

func TestEnrich_EmptyInput(t *testing.T) {
	enriched := domain.Enrich(nil, testTable())
	assert.Empty(t, enriched)
}
