package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// IUCNCategory is an IUCN Red List threat category code.
type IUCNCategory string

const (
	CategoryCR IUCNCategory = "CR" // Critically Endangered
	CategoryEN IUCNCategory = "EN" // Endangered
	CategoryVU IUCNCategory = "VU" // Vulnerable
	CategoryNT IUCNCategory = "NT" // Near Threatened
)

// DefaultCategories is the category set queried when none is configured.
var DefaultCategories = []IUCNCategory{CategoryCR, CategoryEN, CategoryVU, CategoryNT}

// ParseCategories parses a comma-separated category list, e.g. "CR,EN,VU,NT".
func ParseCategories(s string) ([]IUCNCategory, error) {
	parts := strings.Split(s, ",")
	categories := make([]IUCNCategory, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		switch c := IUCNCategory(p); c {
		case CategoryCR, CategoryEN, CategoryVU, CategoryNT:
			categories = append(categories, c)
		default:
			return nil, fmt.Errorf("unknown IUCN category %q", p)
		}
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no IUCN categories in %q", s)
	}
	return categories, nil
}

// PlaceQuery identifies a municipality for boundary resolution.
// All qualifiers are optional except City.
type PlaceQuery struct {
	City    string
	County  string
	State   string
	Country string
}

// CacheKey returns the normalized form of the query used to key the
// geometry cache: lowercased, whitespace-collapsed, pipe-separated.
func (q PlaceQuery) CacheKey() string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return strings.Join([]string{norm(q.City), norm(q.County), norm(q.State), norm(q.Country)}, "|")
}

func (q PlaceQuery) String() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{q.City, q.County, q.State, q.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// BoundaryPolygon is a resolved municipal boundary: the administrative
// polygon plus its bounding box.
type BoundaryPolygon struct {
	DisplayName string
	Geometry    orb.Geometry // orb.Polygon or orb.MultiPolygon
	BBox        orb.Bound
}

// OccurrenceRecord is one biodiversity sighting as returned by GBIF.
// Records are immutable once fetched; GbifID is unique within a run.
type OccurrenceRecord struct {
	GbifID         int64
	TaxonKey       int64
	ScientificName string
	Species        string
	VernacularName string

	Kingdom string
	Phylum  string
	Class   string
	Order   string
	Family  string
	Genus   string

	DecimalLatitude  float64
	DecimalLongitude float64
	EventDate        string
	BasisOfRecord    string
	DatasetKey       string
	IUCNCategory     IUCNCategory

	RecordedBy      string
	InstitutionCode string
	CatalogNumber   string

	// RetrievedAt is stamped at fetch time, truncated to milliseconds so the
	// value survives a parquet round trip unchanged.
	RetrievedAt time.Time
}

// MatchKey returns the taxonomic key used to join against the reference
// table: the binomial species name when present, otherwise the full
// scientific name.
func (r OccurrenceRecord) MatchKey() string {
	if s := strings.TrimSpace(r.Species); s != "" {
		return s
	}
	return strings.TrimSpace(r.ScientificName)
}

// StatusEntry is one row of the NYNHP conservation-status reference list.
type StatusEntry struct {
	ScientificName    string
	CommonName        string
	GlobalRank        string
	StateRank         string
	FederalProtection string
	StateProtection   string
	SGCN              bool // species of greatest conservation need
}

// EnrichedRecord is an occurrence joined with at most one status entry.
// Status is nil exactly when HasStatus is false.
type EnrichedRecord struct {
	OccurrenceRecord
	Status    *StatusEntry
	HasStatus bool
}
