package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/occurrence-etl/internal/cache"
	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CachedResolver wraps a BoundaryResolver with a persistent key-value cache.
// Repeated resolution of the same place never touches the network; the cache
// holds entries until they are deleted by hand.
type CachedResolver struct {
	inner   domain.BoundaryResolver
	store   cache.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedResolver creates a cache decorator around a resolver.
func NewCachedResolver(inner domain.BoundaryResolver, store cache.Store, logger *slog.Logger, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, query domain.PlaceQuery) (domain.BoundaryPolygon, error) {
	key := query.CacheKey()

	if data, ok, err := r.store.Get(ctx, key); err != nil {
		// Cache trouble degrades to a network lookup, it never fails the run.
		r.logger.Warn("geometry cache read failed", "key", key, "error", err)
	} else if ok {
		boundary, err := decodeBoundary(data)
		if err != nil {
			r.logger.Warn("corrupt geometry cache entry, refetching", "key", key, "error", err)
		} else {
			r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return boundary, nil
		}
	}

	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	boundary, err := r.inner.Resolve(ctx, query)
	if err != nil {
		return domain.BoundaryPolygon{}, err
	}

	data, err := encodeBoundary(boundary)
	if err != nil {
		r.logger.Warn("encode geometry cache entry failed", "key", key, "error", err)
		return boundary, nil
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		r.logger.Warn("geometry cache write failed", "key", key, "error", err)
	}
	return boundary, nil
}

// cachedBoundary is the on-disk cache entry: GeoJSON geometry plus the
// bounding box in west, south, east, north order.
type cachedBoundary struct {
	DisplayName string            `json:"display_name"`
	Geometry    *geojson.Geometry `json:"geometry"`
	BBox        [4]float64        `json:"bbox"`
}

func encodeBoundary(b domain.BoundaryPolygon) ([]byte, error) {
	return json.Marshal(cachedBoundary{
		DisplayName: b.DisplayName,
		Geometry:    geojson.NewGeometry(b.Geometry),
		BBox:        [4]float64{b.BBox.Min[0], b.BBox.Min[1], b.BBox.Max[0], b.BBox.Max[1]},
	})
}

func decodeBoundary(data []byte) (domain.BoundaryPolygon, error) {
	var entry cachedBoundary
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.BoundaryPolygon{}, err
	}
	if entry.Geometry == nil {
		return domain.BoundaryPolygon{}, fmt.Errorf("cache entry has no geometry")
	}
	return domain.BoundaryPolygon{
		DisplayName: entry.DisplayName,
		Geometry:    entry.Geometry.Geometry(),
		BBox: orb.Bound{
			Min: orb.Point{entry.BBox[0], entry.BBox[1]},
			Max: orb.Point{entry.BBox[2], entry.BBox[3]},
		},
	}, nil
}
