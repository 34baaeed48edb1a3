package nominatim

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/occurrence-etl/internal/cache"
	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for resolver tests ---

type countingResolver struct {
	calls    int
	boundary domain.BoundaryPolygon
	err      error
}

func (m *countingResolver) Resolve(_ context.Context, _ domain.PlaceQuery) (domain.BoundaryPolygon, error) {
	m.calls++
	return m.boundary, m.err
}

func testBoundary() domain.BoundaryPolygon {
	return domain.BoundaryPolygon{
		DisplayName: "Town of Marbletown",
		Geometry: orb.Polygon{
			orb.Ring{{-74.30, 41.77}, {-74.03, 41.77}, {-74.03, 41.93}, {-74.30, 41.93}, {-74.30, 41.77}},
		},
		BBox: orb.Bound{Min: orb.Point{-74.30, 41.77}, Max: orb.Point{-74.03, 41.93}},
	}
}

func newCached(inner domain.BoundaryResolver, store cache.Store) *CachedResolver {
	return NewCachedResolver(inner, store, discardLogger(), observability.NewMetricsForTesting())
}

func TestCachedResolver_SecondCallHitsCache(t *testing.T) {
	inner := &countingResolver{boundary: testBoundary()}
	cached := newCached(inner, cache.NewMemStore())
	query := marbletownQuery()

	first, err := cached.Resolve(context.Background(), query)
	require.NoError(t, err)

	second, err := cached.Resolve(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "second resolution must not reach the network")
	assert.Equal(t, first, second, "cached polygon must be identical")
}

func TestCachedResolver_SharedStoreAcrossResolvers(t *testing.T) {
	// Simulates a fresh process sharing the cache directory.
	store := cache.NewMemStore()
	inner := &countingResolver{boundary: testBoundary()}
	query := marbletownQuery()

	first, err := newCached(inner, store).Resolve(context.Background(), query)
	require.NoError(t, err)

	second, err := newCached(inner, store).Resolve(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachedResolver_FSStoreRoundTrip(t *testing.T) {
	store, err := cache.NewFSStore(t.TempDir())
	require.NoError(t, err)

	inner := &countingResolver{boundary: testBoundary()}
	cached := newCached(inner, store)
	query := marbletownQuery()

	first, err := cached.Resolve(context.Background(), query)
	require.NoError(t, err)
	second, err := cached.Resolve(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.DisplayName, second.DisplayName)
	assert.Equal(t, first.BBox, second.BBox)
	assert.Equal(t, first.Geometry, second.Geometry)
}

func TestCachedResolver_DistinctQueriesMiss(t *testing.T) {
	inner := &countingResolver{boundary: testBoundary()}
	cached := newCached(inner, cache.NewMemStore())

	_, err := cached.Resolve(context.Background(), domain.PlaceQuery{City: "Marbletown", State: "New York"})
	require.NoError(t, err)
	_, err = cached.Resolve(context.Background(), domain.PlaceQuery{City: "Rosendale", State: "New York"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolver_ErrorsAreNotCached(t *testing.T) {
	inner := &countingResolver{err: &domain.ResolutionError{Query: "nowhere", Matches: 0}}
	store := cache.NewMemStore()
	cached := newCached(inner, store)
	query := domain.PlaceQuery{City: "Nowhere"}

	_, err := cached.Resolve(context.Background(), query)
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*domain.ResolutionError)))
	assert.Equal(t, 0, store.Len(), "failed resolutions must not be cached")

	_, err = cached.Resolve(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolver_CorruptEntryRefetches(t *testing.T) {
	store := cache.NewMemStore()
	query := marbletownQuery()
	require.NoError(t, store.Put(context.Background(), query.CacheKey(), []byte("not json")))

	inner := &countingResolver{boundary: testBoundary()}
	cached := newCached(inner, store)

	boundary, err := cached.Resolve(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "Town of Marbletown", boundary.DisplayName)
}
