package nominatim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserAgent = "occurrence-etl-test/0.1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testUserAgent, 5*time.Second, discardLogger(), observability.NewMetricsForTesting())
}

const marbletownResponse = `[
	{
		"type": "hamlet",
		"display_name": "Marbletown (hamlet)",
		"boundingbox": ["41.80", "41.82", "-74.15", "-74.13"],
		"geojson": {"type": "Point", "coordinates": [-74.14, 41.81]}
	},
	{
		"type": "administrative",
		"display_name": "Town of Marbletown, Ulster County, New York, United States",
		"boundingbox": ["41.77", "41.93", "-74.30", "-74.03"],
		"geojson": {"type": "Polygon", "coordinates": [[[-74.30, 41.77], [-74.03, 41.77], [-74.03, 41.93], [-74.30, 41.93], [-74.30, 41.77]]]}
	}
]`

func marbletownQuery() domain.PlaceQuery {
	return domain.PlaceQuery{City: "Marbletown", County: "Ulster County", State: "New York", Country: "United States"}
}

func TestClient_Resolve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("polygon_geojson"))
		assert.Equal(t, "Marbletown", r.URL.Query().Get("city"))
		assert.Equal(t, "Ulster County", r.URL.Query().Get("county"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marbletownResponse))
	}))
	defer srv.Close()

	boundary, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())
	require.NoError(t, err)

	assert.Equal(t, "Town of Marbletown, Ulster County, New York, United States", boundary.DisplayName)
	assert.Equal(t, orb.Point{-74.30, 41.77}, boundary.BBox.Min)
	assert.Equal(t, orb.Point{-74.03, 41.93}, boundary.BBox.Max)

	poly, ok := boundary.Geometry.(orb.Polygon)
	require.True(t, ok, "expected the administrative polygon, not the hamlet point")
	assert.Len(t, poly[0], 5)
}

func TestClient_Resolve_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())

	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 0, resErr.Matches)
}

func TestClient_Resolve_AmbiguousAdministrative(t *testing.T) {
	body := `[
		{"type": "administrative", "display_name": "A", "boundingbox": ["1","2","3","4"], "geojson": {"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
		{"type": "administrative", "display_name": "B", "boundingbox": ["1","2","3","4"], "geojson": {"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())

	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 2, resErr.Matches)
}

func TestClient_Resolve_SingleNonAdministrative(t *testing.T) {
	body := `[
		{"type": "hamlet", "display_name": "Lonely Hamlet", "boundingbox": ["41.8","41.9","-74.2","-74.1"],
		 "geojson": {"type":"Polygon","coordinates":[[[-74.2,41.8],[-74.1,41.8],[-74.1,41.9],[-74.2,41.8]]]}}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	boundary, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())
	require.NoError(t, err)
	assert.Equal(t, "Lonely Hamlet", boundary.DisplayName)
}

func TestClient_Resolve_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())

	var rlErr *domain.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "nominatim", rlErr.Service)
	assert.Equal(t, 5*time.Second, rlErr.RetryAfter)
}

func TestClient_Resolve_UnsupportedGeometry(t *testing.T) {
	body := `[
		{"type": "administrative", "display_name": "Pointy", "boundingbox": ["1","2","3","4"],
		 "geojson": {"type": "Point", "coordinates": [1, 2]}}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry")
	assert.False(t, errors.As(err, new(*domain.ResolutionError)))
}

func TestClient_Resolve_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Resolve(context.Background(), marbletownQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
