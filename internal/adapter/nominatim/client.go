// Package nominatim resolves place queries to administrative boundary
// polygons using the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/geo"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Client implements domain.BoundaryResolver against the Nominatim API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
		logger:     logger,
		metrics:    metrics,
	}
}

// Resolve looks up the administrative boundary for a place query.
// Zero matches or more than one administrative match fail with
// *domain.ResolutionError; upstream throttling fails with
// *domain.RateLimitError (back-to-back distinct queries can trip this;
// re-running after the indicated delay is expected to succeed).
func (c *Client) Resolve(ctx context.Context, query domain.PlaceQuery) (domain.BoundaryPolygon, error) {
	params := url.Values{
		"format":          {"jsonv2"},
		"polygon_geojson": {"1"},
		"namedetails":     {"0"},
		"addressdetails":  {"0"},
	}
	if query.City != "" {
		params.Set("city", query.City)
	}
	if query.County != "" {
		params.Set("county", query.County)
	}
	if query.State != "" {
		params.Set("state", query.State)
	}
	if query.Country != "" {
		params.Set("country", query.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.BoundaryPolygon{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.BoundaryPolygon{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.GeocodeRequests.WithLabelValues("rate_limited").Inc()
		return domain.BoundaryPolygon{}, &domain.RateLimitError{
			Service:    "nominatim",
			RetryAfter: retryAfter(resp),
		}
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.BoundaryPolygon{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.BoundaryPolygon{}, fmt.Errorf("decode response: %w", err)
	}

	chosen, err := pickResult(query, results)
	if err != nil {
		if resErr, ok := err.(*domain.ResolutionError); ok && resErr.Matches == 0 {
			c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		} else {
			c.metrics.GeocodeRequests.WithLabelValues("ambiguous").Inc()
		}
		return domain.BoundaryPolygon{}, err
	}

	boundary, err := parseBoundary(chosen)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.BoundaryPolygon{}, err
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	c.logger.Debug("boundary resolved",
		"query", query.String(),
		"display_name", boundary.DisplayName,
		"geometry_type", boundary.Geometry.GeoJSONType(),
	)
	return boundary, nil
}

// pickResult selects the boundary to use. Administrative results are
// preferred; the lookup is ambiguous when several of them (or several
// results with no administrative candidate) come back.
func pickResult(query domain.PlaceQuery, results []searchResult) (searchResult, error) {
	if len(results) == 0 {
		return searchResult{}, &domain.ResolutionError{Query: query.String(), Matches: 0}
	}

	var admins []searchResult
	for _, r := range results {
		if r.Type == "administrative" {
			admins = append(admins, r)
		}
	}

	switch {
	case len(admins) == 1:
		return admins[0], nil
	case len(admins) > 1:
		return searchResult{}, &domain.ResolutionError{Query: query.String(), Matches: len(admins)}
	case len(results) == 1:
		return results[0], nil
	default:
		return searchResult{}, &domain.ResolutionError{Query: query.String(), Matches: len(results)}
	}
}

func parseBoundary(r searchResult) (domain.BoundaryPolygon, error) {
	bbox, err := geo.ParseNominatimBBox(r.BoundingBox)
	if err != nil {
		return domain.BoundaryPolygon{}, fmt.Errorf("boundary payload: %w", err)
	}

	if len(r.GeoJSON) == 0 {
		return domain.BoundaryPolygon{}, fmt.Errorf("boundary payload: missing geojson geometry")
	}
	g, err := geojson.UnmarshalGeometry(r.GeoJSON)
	if err != nil {
		return domain.BoundaryPolygon{}, fmt.Errorf("boundary payload: %w", err)
	}

	geom := g.Geometry()
	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return domain.BoundaryPolygon{}, fmt.Errorf("boundary payload: unsupported geometry %q", geom.GeoJSONType())
	}

	return domain.BoundaryPolygon{
		DisplayName: r.DisplayName,
		Geometry:    geom,
		BBox:        bbox,
	}, nil
}

// retryAfter reads the Retry-After header, defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 1 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}

// Nominatim API response shape.

type searchResult struct {
	Type        string          `json:"type"`
	DisplayName string          `json:"display_name"`
	BoundingBox []string        `json:"boundingbox"` // south, north, west, east
	GeoJSON     json.RawMessage `json:"geojson"`
}
