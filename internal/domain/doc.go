// Package domain models biodiversity occurrence data for a single
// municipality, joined against a state conservation-status reference list.
//
// # Data Sources
//
// Boundary polygons come from the OpenStreetMap Nominatim search API
// (https://nominatim.openstreetmap.org/search), queried with structured
// city/county/state/country parameters and polygon_geojson=1. Nominatim
// returns zero or more candidate places; administrative boundaries are the
// ones of interest here.
//
// Occurrence records come from the GBIF occurrence search API
// (https://api.gbif.org/v1/occurrence/search), filtered spatially by a WKT
// polygon and by IUCN Red List category. GBIF pages results with
// limit/offset and signals completion via endOfRecords.
//
// The conservation-status reference is the New York Natural Heritage Program
// (NYNHP) species list, published as a CSV keyed by scientific name. It
// carries state/global conservation ranks, protection listings, and the
// "species of greatest conservation need" (SGCN) designation.
//
// # IUCN Red List categories
//
// The pipeline queries the four threatened/near-threatened categories:
//
//	CR  Critically Endangered
//	EN  Endangered
//	VU  Vulnerable
//	NT  Near Threatened
//
// Categories are mutually exclusive upstream; the fetcher still deduplicates
// by GBIF record ID rather than assuming it.
//
// # Join semantics
//
// Occurrences are matched to reference rows by taxonomic key: the binomial
// "species" field when present, otherwise the full scientificName (which may
// carry authorship and not match the reference spelling). Keys absent from
// the reference are expected and valid; the join is a left join and
// HasStatus records whether a match existed. Duplicate keys in the reference
// resolve to the first row in file order.
package domain
