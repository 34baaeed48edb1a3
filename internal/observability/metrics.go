package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// occurrence ETL pipeline.
type Metrics struct {
	// Geometry resolution metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,ambiguous,empty,rate_limited,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Occurrence fetch metrics.
	FetchPages   prometheus.Counter
	FetchRetries prometheus.Counter
	FetchRecords prometheus.Counter

	// Pipeline metrics.
	RecordsEnriched   prometheus.Counter
	RecordsWithStatus prometheus.Counter
	RecordsWritten    prometheus.Counter
	StageDuration     *prometheus.HistogramVec // labels: stage
	PipelineRuns      *prometheus.CounterVec   // labels: outcome={success,failure}
	PipelineRunning   prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeCache,
		m.FetchPages,
		m.FetchRetries,
		m.FetchRecords,
		m.RecordsEnriched,
		m.RecordsWithStatus,
		m.RecordsWritten,
		m.StageDuration,
		m.PipelineRuns,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "geocode_requests_total",
			Help:      "Nominatim boundary lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "geocode_cache_total",
			Help:      "Geometry cache lookups by result.",
		}, []string{"result"}),
		FetchPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "fetch_pages_total",
			Help:      "GBIF occurrence pages fetched successfully.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "fetch_retries_total",
			Help:      "GBIF page requests retried after a transient failure.",
		}),
		FetchRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "fetch_records_total",
			Help:      "Occurrence records fetched, after deduplication.",
		}),
		RecordsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "records_enriched_total",
			Help:      "Records passed through status enrichment.",
		}),
		RecordsWithStatus: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "records_with_status_total",
			Help:      "Enriched records that matched a conservation-status entry.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "records_written_total",
			Help:      "Records written to the output dataset.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "occurrence_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "occurrence_etl",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "occurrence_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
	}
}
