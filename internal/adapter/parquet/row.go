// Package parquet persists the enriched occurrence dataset as a single
// columnar file and reads it back for the explorer.
package parquet

import (
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
)

// datasetRow is the flat parquet schema: occurrence fields, nullable
// conservation-status fields, and the derived has_status flag.
type datasetRow struct {
	GbifID         int64  `parquet:"name=gbif_id,type=INT64"`
	TaxonKey       int64  `parquet:"name=taxon_key,type=INT64"`
	ScientificName string `parquet:"name=scientific_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	Species        string `parquet:"name=species,type=BYTE_ARRAY,convertedtype=UTF8"`
	VernacularName string `parquet:"name=vernacular_name,type=BYTE_ARRAY,convertedtype=UTF8"`

	Kingdom string `parquet:"name=kingdom,type=BYTE_ARRAY,convertedtype=UTF8"`
	Phylum  string `parquet:"name=phylum,type=BYTE_ARRAY,convertedtype=UTF8"`
	Class   string `parquet:"name=class,type=BYTE_ARRAY,convertedtype=UTF8"`
	Order   string `parquet:"name=order,type=BYTE_ARRAY,convertedtype=UTF8"`
	Family  string `parquet:"name=family,type=BYTE_ARRAY,convertedtype=UTF8"`
	Genus   string `parquet:"name=genus,type=BYTE_ARRAY,convertedtype=UTF8"`

	DecimalLatitude  float64 `parquet:"name=decimal_latitude,type=DOUBLE"`
	DecimalLongitude float64 `parquet:"name=decimal_longitude,type=DOUBLE"`
	EventDate        string  `parquet:"name=event_date,type=BYTE_ARRAY,convertedtype=UTF8"`
	BasisOfRecord    string  `parquet:"name=basis_of_record,type=BYTE_ARRAY,convertedtype=UTF8"`
	DatasetKey       string  `parquet:"name=dataset_key,type=BYTE_ARRAY,convertedtype=UTF8"`
	IUCNCategory     string  `parquet:"name=iucn_category,type=BYTE_ARRAY,convertedtype=UTF8"`

	RecordedBy      string `parquet:"name=recorded_by,type=BYTE_ARRAY,convertedtype=UTF8"`
	InstitutionCode string `parquet:"name=institution_code,type=BYTE_ARRAY,convertedtype=UTF8"`
	CatalogNumber   string `parquet:"name=catalog_number,type=BYTE_ARRAY,convertedtype=UTF8"`

	RetrievedAtMillis int64 `parquet:"name=retrieved_at_ms,type=INT64"`

	CommonName        *string `parquet:"name=common_name,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	GlobalRank        *string `parquet:"name=global_rank,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	StateRank         *string `parquet:"name=state_rank,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	FederalProtection *string `parquet:"name=federal_protection,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	StateProtection   *string `parquet:"name=state_protection,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	SGCN              *bool   `parquet:"name=sgcn,type=BOOLEAN,repetitiontype=OPTIONAL"`

	HasStatus bool `parquet:"name=has_status,type=BOOLEAN"`
}

func toRow(r domain.EnrichedRecord) datasetRow {
	row := datasetRow{
		GbifID:            r.GbifID,
		TaxonKey:          r.TaxonKey,
		ScientificName:    r.ScientificName,
		Species:           r.Species,
		VernacularName:    r.VernacularName,
		Kingdom:           r.Kingdom,
		Phylum:            r.Phylum,
		Class:             r.Class,
		Order:             r.Order,
		Family:            r.Family,
		Genus:             r.Genus,
		DecimalLatitude:   r.DecimalLatitude,
		DecimalLongitude:  r.DecimalLongitude,
		EventDate:         r.EventDate,
		BasisOfRecord:     r.BasisOfRecord,
		DatasetKey:        r.DatasetKey,
		IUCNCategory:      string(r.IUCNCategory),
		RecordedBy:        r.RecordedBy,
		InstitutionCode:   r.InstitutionCode,
		CatalogNumber:     r.CatalogNumber,
		RetrievedAtMillis: r.RetrievedAt.UnixMilli(),
		HasStatus:         r.HasStatus,
	}
	if r.Status != nil {
		row.CommonName = ptr(r.Status.CommonName)
		row.GlobalRank = ptr(r.Status.GlobalRank)
		row.StateRank = ptr(r.Status.StateRank)
		row.FederalProtection = ptr(r.Status.FederalProtection)
		row.StateProtection = ptr(r.Status.StateProtection)
		row.SGCN = ptr(r.Status.SGCN)
	}
	return row
}

func fromRow(row datasetRow) domain.EnrichedRecord {
	rec := domain.EnrichedRecord{
		OccurrenceRecord: domain.OccurrenceRecord{
			GbifID:           row.GbifID,
			TaxonKey:         row.TaxonKey,
			ScientificName:   row.ScientificName,
			Species:          row.Species,
			VernacularName:   row.VernacularName,
			Kingdom:          row.Kingdom,
			Phylum:           row.Phylum,
			Class:            row.Class,
			Order:            row.Order,
			Family:           row.Family,
			Genus:            row.Genus,
			DecimalLatitude:  row.DecimalLatitude,
			DecimalLongitude: row.DecimalLongitude,
			EventDate:        row.EventDate,
			BasisOfRecord:    row.BasisOfRecord,
			DatasetKey:       row.DatasetKey,
			IUCNCategory:     domain.IUCNCategory(row.IUCNCategory),
			RecordedBy:       row.RecordedBy,
			InstitutionCode:  row.InstitutionCode,
			CatalogNumber:    row.CatalogNumber,
			RetrievedAt:      time.UnixMilli(row.RetrievedAtMillis).UTC(),
		},
		HasStatus: row.HasStatus,
	}
	if row.HasStatus {
		rec.Status = &domain.StatusEntry{
			ScientificName:    rec.MatchKey(),
			CommonName:        deref(row.CommonName),
			GlobalRank:        deref(row.GlobalRank),
			StateRank:         deref(row.StateRank),
			FederalProtection: deref(row.FederalProtection),
			StateProtection:   deref(row.StateProtection),
			SGCN:              row.SGCN != nil && *row.SGCN,
		}
	}
	return rec
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
