// Package geo converts between the geometry formats the upstream services
// speak: Nominatim bounding boxes and GeoJSON polygons in, WKT out for GBIF
// spatial filters.
package geo

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ParseNominatimBBox parses Nominatim's boundingbox field, which is a list
// of strings in south, north, west, east order.
func ParseNominatimBBox(bbox []string) (orb.Bound, error) {
	if len(bbox) != 4 {
		return orb.Bound{}, fmt.Errorf("bounding box: expected 4 values, got %d", len(bbox))
	}
	vals := make([]float64, 4)
	for i, s := range bbox {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bounding box value %q: %w", s, err)
		}
		vals[i] = v
	}
	south, north, west, east := vals[0], vals[1], vals[2], vals[3]
	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}, nil
}

// BoundWKT renders a bounding box as a closed WKT polygon.
func BoundWKT(b orb.Bound) string {
	return wkt.MarshalString(b.ToPolygon())
}

// PolygonWKT renders a Polygon or MultiPolygon as WKT, closing any rings the
// upstream left open. Other geometry types are rejected.
func PolygonWKT(g orb.Geometry) (string, error) {
	switch p := g.(type) {
	case orb.Polygon:
		return wkt.MarshalString(closePolygon(p)), nil
	case orb.MultiPolygon:
		closed := make(orb.MultiPolygon, len(p))
		for i, poly := range p {
			closed[i] = closePolygon(poly)
		}
		return wkt.MarshalString(closed), nil
	default:
		return "", fmt.Errorf("unsupported geometry type %q", g.GeoJSONType())
	}
}

func closePolygon(p orb.Polygon) orb.Polygon {
	closed := make(orb.Polygon, len(p))
	for i, ring := range p {
		closed[i] = closeRing(ring)
	}
	return closed
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}
