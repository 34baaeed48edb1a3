package domain

import "context"

// BoundaryResolver resolves a place query to its administrative boundary.
type BoundaryResolver interface {
	// Resolve returns the boundary polygon for a place query. It fails with
	// *ResolutionError when the query matches zero or multiple boundaries and
	// *RateLimitError when the upstream service is throttling.
	Resolve(ctx context.Context, query PlaceQuery) (BoundaryPolygon, error)
}
