// Package http serves the enriched occurrence dataset: a small map/table
// explorer UI plus a JSON API with the same filters, alongside health and
// metrics endpoints.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed index.html
var indexHTML []byte

// Server exposes the explorer UI and API over a fixed, in-memory dataset.
type Server struct {
	httpServer *http.Server
	records    []domain.EnrichedRecord
	logger     *slog.Logger
}

// NewServer creates the explorer server for a loaded dataset.
func NewServer(addr string, records []domain.EnrichedRecord, logger *slog.Logger) *Server {
	s := &Server{
		records: records,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/api/occurrences", s.handleOccurrences)
	r.Get("/api/summary", s.handleSummary)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("explorer starting", "addr", s.httpServer.Addr, "records", len(s.records))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML) //nolint:errcheck // best-effort static page
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// occurrenceView is the API projection of an enriched record.
type occurrenceView struct {
	GbifID         int64   `json:"gbif_id"`
	ScientificName string  `json:"scientific_name"`
	Species        string  `json:"species"`
	VernacularName string  `json:"vernacular_name,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	EventDate      string  `json:"event_date,omitempty"`
	BasisOfRecord  string  `json:"basis_of_record,omitempty"`
	IUCNCategory   string  `json:"iucn_category"`

	HasStatus       bool   `json:"has_status"`
	CommonName      string `json:"common_name,omitempty"`
	GlobalRank      string `json:"global_rank,omitempty"`
	StateRank       string `json:"state_rank,omitempty"`
	StateProtection string `json:"state_protection,omitempty"`
	SGCN            bool   `json:"sgcn"`
}

func toView(rec domain.EnrichedRecord) occurrenceView {
	v := occurrenceView{
		GbifID:         rec.GbifID,
		ScientificName: rec.ScientificName,
		Species:        rec.Species,
		VernacularName: rec.VernacularName,
		Latitude:       rec.DecimalLatitude,
		Longitude:      rec.DecimalLongitude,
		EventDate:      rec.EventDate,
		BasisOfRecord:  rec.BasisOfRecord,
		IUCNCategory:   string(rec.IUCNCategory),
		HasStatus:      rec.HasStatus,
	}
	if rec.Status != nil {
		v.CommonName = rec.Status.CommonName
		v.GlobalRank = rec.Status.GlobalRank
		v.StateRank = rec.Status.StateRank
		v.StateProtection = rec.Status.StateProtection
		v.SGCN = rec.Status.SGCN
	}
	return v
}

// handleOccurrences lists occurrences, filtered by query parameters:
//
//	has_status=true|false  keep only records with (or without) a status match
//	sgcn=true              keep only species of greatest conservation need
//	category=EN,CR         comma-separated IUCN categories
//	rank=S1,S2S3           comma-separated state conservation ranks
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	views := make([]occurrenceView, 0, len(s.records))
	for _, rec := range s.records {
		if filter.matches(rec) {
			views = append(views, toView(rec))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(views),
		"occurrences": views,
	})
}

type summary struct {
	Total      int            `json:"total"`
	WithStatus int            `json:"with_status"`
	SGCN       int            `json:"sgcn"`
	Categories map[string]int `json:"categories"`
	StateRanks map[string]int `json:"state_ranks"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	sum := summary{
		Categories: make(map[string]int),
		StateRanks: make(map[string]int),
	}
	for _, rec := range s.records {
		sum.Total++
		sum.Categories[string(rec.IUCNCategory)]++
		if !rec.HasStatus {
			continue
		}
		sum.WithStatus++
		if rec.Status.SGCN {
			sum.SGCN++
		}
		if rec.Status.StateRank != "" {
			sum.StateRanks[rec.Status.StateRank]++
		}
	}
	writeJSON(w, http.StatusOK, sum)
}

type recordFilter struct {
	hasStatus  *bool
	sgcnOnly   bool
	categories map[string]struct{}
	ranks      map[string]struct{}
}

func parseFilter(r *http.Request) (recordFilter, error) {
	q := r.URL.Query()
	var f recordFilter

	if v := q.Get("has_status"); v != "" {
		switch v {
		case "true":
			f.hasStatus = ptr(true)
		case "false":
			f.hasStatus = ptr(false)
		default:
			return f, &filterError{param: "has_status", value: v}
		}
	}
	if v := q.Get("sgcn"); v != "" {
		if v != "true" {
			return f, &filterError{param: "sgcn", value: v}
		}
		f.sgcnOnly = true
	}
	f.categories = parseSet(q.Get("category"))
	f.ranks = parseSet(q.Get("rank"))
	return f, nil
}

func parseSet(v string) map[string]struct{} {
	if v == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func (f recordFilter) matches(rec domain.EnrichedRecord) bool {
	if f.hasStatus != nil && rec.HasStatus != *f.hasStatus {
		return false
	}
	if f.sgcnOnly && (rec.Status == nil || !rec.Status.SGCN) {
		return false
	}
	if f.categories != nil {
		if _, ok := f.categories[string(rec.IUCNCategory)]; !ok {
			return false
		}
	}
	if f.ranks != nil {
		if rec.Status == nil {
			return false
		}
		if _, ok := f.ranks[rec.Status.StateRank]; !ok {
			return false
		}
	}
	return true
}

type filterError struct {
	param string
	value string
}

func (e *filterError) Error() string {
	return "invalid value " + e.value + " for parameter " + e.param
}

func ptr[T any](v T) *T { return &v }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
