// Package gbif fetches biodiversity occurrence records from the GBIF
// occurrence search API, filtered by a boundary polygon and IUCN category.
package gbif

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/jonboulle/clockwork"
)

// Config carries the tunables for a Client.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	PageLimit  int
	MaxRetries int
	MaxRecords int
	PageDelay  time.Duration
}

// maxGeometryChars bounds the WKT geometry filter sent to the search API.
const maxGeometryChars = 12000

// Client pages through GBIF occurrence search results.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	pageLimit  int
	maxRetries int
	maxRecords int
	pageDelay  time.Duration

	// Exponential backoff for transient page failures: start at retryBase,
	// double each retry, cap at retryMax.
	retryBase time.Duration
	retryMax  time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a GBIF occurrence client.
func NewClient(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		pageLimit:  cfg.PageLimit,
		maxRetries: cfg.MaxRetries,
		maxRecords: cfg.MaxRecords,
		pageDelay:  cfg.PageDelay,
		retryBase:  time.Second,
		retryMax:   30 * time.Second,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch retrieves every occurrence inside the boundary for each category,
// concatenated in category order. Records are deduplicated by GBIF ID.
// Pagination stops per category on endOfRecords or an empty page; the
// maxRecords safeguard bounds the total regardless of what upstream reports.
// Cancellation is honored between page requests.
func (c *Client) Fetch(ctx context.Context, boundary domain.BoundaryPolygon, categories []domain.IUCNCategory) ([]domain.OccurrenceRecord, error) {
	geometry, err := geo.PolygonWKT(boundary.Geometry)
	if err != nil {
		return nil, fmt.Errorf("query geometry: %w", err)
	}
	if len(geometry) > maxGeometryChars {
		// GBIF rejects overly long geometry filters; fall back to the
		// bounding box at the cost of some records outside the boundary.
		c.logger.Warn("boundary polygon too detailed for the search API, using bounding box",
			"polygon_chars", len(geometry))
		geometry = geo.BoundWKT(boundary.BBox)
	}

	seen := make(map[int64]struct{})
	var records []domain.OccurrenceRecord

	for _, category := range categories {
		offset := 0
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			page, err := c.fetchPageWithRetry(ctx, geometry, category, offset)
			if err != nil {
				return nil, err
			}
			c.metrics.FetchPages.Inc()

			for _, occ := range page.Results {
				rec := occ.toRecord(category)
				if rec.GbifID != 0 { // 0 means upstream omitted the identifier
					if _, dup := seen[rec.GbifID]; dup {
						continue
					}
					seen[rec.GbifID] = struct{}{}
				}
				records = append(records, rec)

				if len(records) >= c.maxRecords {
					c.logger.Warn("record safeguard reached, truncating fetch",
						"max_records", c.maxRecords, "category", category, "offset", offset)
					c.metrics.FetchRecords.Add(float64(len(records)))
					return records, nil
				}
			}

			if len(page.Results) == 0 || page.EndOfRecords {
				break
			}
			offset += c.pageLimit

			// Polite delay between pages; Nominatim and GBIF both ask for it.
			if !sleepWithContext(ctx, c.clock, c.pageDelay) {
				return nil, ctx.Err()
			}
		}
		c.logger.Debug("category fetched", "category", category, "records_so_far", len(records))
	}

	c.metrics.FetchRecords.Add(float64(len(records)))
	return records, nil
}

// fetchPageWithRetry wraps a single page request in bounded exponential
// backoff. Timeouts, 5xx responses, and rate-limit signals are retried up to
// maxRetries attempts; exhaustion (or a non-retryable response) fails with
// *domain.FetchError carrying the last cause.
func (c *Client) fetchPageWithRetry(ctx context.Context, geometry string, category domain.IUCNCategory, offset int) (*searchResponse, error) {
	backoff := c.retryBase

	for attempt := 1; ; attempt++ {
		page, retryable, err := c.fetchPage(ctx, geometry, category, offset)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable || attempt >= c.maxRetries {
			return nil, &domain.FetchError{Category: category, Offset: offset, Attempts: attempt, Err: err}
		}

		wait := backoff
		var rlErr *domain.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > wait {
			wait = rlErr.RetryAfter
		}

		c.metrics.FetchRetries.Inc()
		c.logger.Warn("transient fetch failure, backing off",
			"category", category, "offset", offset,
			"attempt", attempt, "wait", wait, "error", err)

		if !sleepWithContext(ctx, c.clock, wait) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, c.retryMax)
	}
}

// fetchPage performs one occurrence search request. The second return value
// reports whether a failure is worth retrying.
func (c *Client) fetchPage(ctx context.Context, geometry string, category domain.IUCNCategory, offset int) (*searchResponse, bool, error) {
	params := url.Values{
		"geometry":            {geometry},
		"iucnRedListCategory": {string(category)},
		"limit":               {strconv.Itoa(c.pageLimit)},
		"offset":              {strconv.Itoa(offset)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("occurrence request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &domain.RateLimitError{Service: "gbif", RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, true, fmt.Errorf("gbif API error: status %d: %s", resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("gbif API error: status %d: %s", resp.StatusCode, body)
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &page, false, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 1 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// GBIF API response shape.

type searchResponse struct {
	Results      []occurrence `json:"results"`
	EndOfRecords bool         `json:"endOfRecords"`
	Count        int64        `json:"count"`
}

type occurrence struct {
	Key            int64  `json:"key"` // the GBIF record identifier
	TaxonKey       int64  `json:"taxonKey"`
	ScientificName string `json:"scientificName"`
	Species        string `json:"species"`
	VernacularName string `json:"vernacularName"`

	Kingdom string `json:"kingdom"`
	Phylum  string `json:"phylum"`
	Class   string `json:"class"`
	Order   string `json:"order"`
	Family  string `json:"family"`
	Genus   string `json:"genus"`

	DecimalLatitude  float64 `json:"decimalLatitude"`
	DecimalLongitude float64 `json:"decimalLongitude"`
	EventDate        string  `json:"eventDate"`
	BasisOfRecord    string  `json:"basisOfRecord"`
	DatasetKey       string  `json:"datasetKey"`
	IUCNCategory     string  `json:"iucnRedListCategory"`

	RecordedBy      string `json:"recordedBy"`
	InstitutionCode string `json:"institutionCode"`
	CatalogNumber   string `json:"catalogNumber"`
}

func (o occurrence) toRecord(queried domain.IUCNCategory) domain.OccurrenceRecord {
	category := queried
	if o.IUCNCategory != "" {
		category = domain.IUCNCategory(o.IUCNCategory)
	}
	return domain.OccurrenceRecord{
		GbifID:           o.Key,
		TaxonKey:         o.TaxonKey,
		ScientificName:   o.ScientificName,
		Species:          o.Species,
		VernacularName:   o.VernacularName,
		Kingdom:          o.Kingdom,
		Phylum:           o.Phylum,
		Class:            o.Class,
		Order:            o.Order,
		Family:           o.Family,
		Genus:            o.Genus,
		DecimalLatitude:  o.DecimalLatitude,
		DecimalLongitude: o.DecimalLongitude,
		EventDate:        o.EventDate,
		BasisOfRecord:    o.BasisOfRecord,
		DatasetKey:       o.DatasetKey,
		IUCNCategory:     category,
		RecordedBy:       o.RecordedBy,
		InstitutionCode:  o.InstitutionCode,
		CatalogNumber:    o.CatalogNumber,
		RetrievedAt:      domain.Now(),
	}
}
