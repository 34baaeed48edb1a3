package geo

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNominatimBBox(t *testing.T) {
	b, err := ParseNominatimBBox([]string{"41.77", "41.93", "-74.30", "-74.03"})
	require.NoError(t, err)

	assert.Equal(t, orb.Point{-74.30, 41.77}, b.Min)
	assert.Equal(t, orb.Point{-74.03, 41.93}, b.Max)
}

func TestParseNominatimBBox_WrongLength(t *testing.T) {
	_, err := ParseNominatimBBox([]string{"1", "2", "3"})
	assert.Error(t, err)
}

func TestParseNominatimBBox_BadValue(t *testing.T) {
	_, err := ParseNominatimBBox([]string{"a", "2", "3", "4"})
	assert.Error(t, err)
}

func TestBoundWKT_ClosedRectangle(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-74.3, 41.77}, Max: orb.Point{-74.03, 41.93}}
	s := BoundWKT(b)

	assert.True(t, strings.HasPrefix(s, "POLYGON"))
	// A rectangle ring has 5 vertices (closed), so 4 commas.
	assert.Equal(t, 4, strings.Count(s, ","))
}

func TestPolygonWKT_ClosesOpenRing(t *testing.T) {
	open := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	s, err := PolygonWKT(open)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s, "POLYGON"))
	assert.Equal(t, 4, strings.Count(s, ","), "ring should be closed to 5 vertices")

	// The input ring must not be mutated.
	assert.Len(t, open[0], 4)
}

func TestPolygonWKT_MultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{orb.Ring{{2, 2}, {3, 2}, {3, 3}, {2, 2}}},
	}
	s, err := PolygonWKT(mp)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "MULTIPOLYGON"))
}

func TestPolygonWKT_RejectsPoint(t *testing.T) {
	_, err := PolygonWKT(orb.Point{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Point")
}
