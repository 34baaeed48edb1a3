// Package pipeline orchestrates one ETL run: resolve the place boundary,
// fetch occurrences inside it, join them against the conservation-status
// reference, and write the enriched dataset.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/occurrence-etl/internal/domain"
	"github.com/couchcryptid/occurrence-etl/internal/geo"
	"github.com/couchcryptid/occurrence-etl/internal/observability"
	"github.com/google/uuid"
)

// Stage names, as reported in StageError and the stage duration metric.
const (
	StageResolve    = "resolve"
	StageFetch      = "fetch"
	StageLoadStatus = "load_status"
	StageEnrich     = "enrich"
	StageWrite      = "write"
)

// OccurrenceFetcher retrieves occurrence records inside a boundary.
type OccurrenceFetcher interface {
	Fetch(ctx context.Context, boundary domain.BoundaryPolygon, categories []domain.IUCNCategory) ([]domain.OccurrenceRecord, error)
}

// StatusLoader produces the conservation-status reference table.
type StatusLoader interface {
	Load(ctx context.Context) (domain.StatusTable, error)
}

// DatasetWriter persists the enriched dataset to a destination path.
type DatasetWriter interface {
	Write(ctx context.Context, records []domain.EnrichedRecord, destination string) error
}

// StageError identifies which stage a run failed in. The underlying cause is
// available through errors.As / errors.Is.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result summarizes a completed run.
type Result struct {
	RunID       string
	Boundary    string
	BBoxWKT     string
	Occurrences int
	WithStatus  int
	OutputPath  string
	Duration    time.Duration
}

// Pipeline wires the stages together. Stages run sequentially; a failure in
// any stage aborts the run and no output file is produced.
type Pipeline struct {
	resolver domain.BoundaryResolver
	fetcher  OccurrenceFetcher
	loader   StatusLoader
	writer   DatasetWriter

	query      domain.PlaceQuery
	categories []domain.IUCNCategory
	outputPath string

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New assembles a Pipeline from its stages.
func New(
	resolver domain.BoundaryResolver,
	fetcher OccurrenceFetcher,
	loader StatusLoader,
	writer DatasetWriter,
	query domain.PlaceQuery,
	categories []domain.IUCNCategory,
	outputPath string,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		fetcher:    fetcher,
		loader:     loader,
		writer:     writer,
		query:      query,
		categories: categories,
		outputPath: outputPath,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one end-to-end pass. It honors ctx between stages and returns
// a *StageError wrapping the failing stage's cause.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := domain.Now()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	logger.Info("pipeline starting",
		"place", p.query.String(),
		"categories", fmt.Sprint(p.categories),
		"output", p.outputPath,
	)

	result, err := p.run(ctx, logger, runID)
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("failure").Inc()
		return Result{RunID: runID}, err
	}

	result.Duration = domain.Now().Sub(start)
	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	logger.Info("pipeline finished",
		"occurrences", result.Occurrences,
		"with_status", result.WithStatus,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, runID string) (Result, error) {
	boundary, err := stage(ctx, p, logger, StageResolve, func(ctx context.Context) (domain.BoundaryPolygon, error) {
		return p.resolver.Resolve(ctx, p.query)
	})
	if err != nil {
		return Result{}, err
	}
	logger.Info("boundary resolved", "display_name", boundary.DisplayName)

	records, err := stage(ctx, p, logger, StageFetch, func(ctx context.Context) ([]domain.OccurrenceRecord, error) {
		return p.fetcher.Fetch(ctx, boundary, p.categories)
	})
	if err != nil {
		return Result{}, err
	}
	logger.Info("occurrences fetched", "records", len(records))

	table, err := stage(ctx, p, logger, StageLoadStatus, func(ctx context.Context) (domain.StatusTable, error) {
		return p.loader.Load(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	enriched, err := stage(ctx, p, logger, StageEnrich, func(_ context.Context) ([]domain.EnrichedRecord, error) {
		return domain.Enrich(records, table), nil
	})
	if err != nil {
		return Result{}, err
	}
	withStatus := 0
	for _, rec := range enriched {
		if rec.HasStatus {
			withStatus++
		}
	}
	p.metrics.RecordsEnriched.Add(float64(len(enriched)))
	p.metrics.RecordsWithStatus.Add(float64(withStatus))
	logger.Info("records enriched", "records", len(enriched), "with_status", withStatus)

	_, err = stage(ctx, p, logger, StageWrite, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.writer.Write(ctx, enriched, p.outputPath)
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		RunID:       runID,
		Boundary:    boundary.DisplayName,
		BBoxWKT:     geo.BoundWKT(boundary.BBox),
		Occurrences: len(enriched),
		WithStatus:  withStatus,
		OutputPath:  p.outputPath,
	}, nil
}

// stage runs one step with cancellation checked up front, timing recorded,
// and failures wrapped in *StageError.
func stage[T any](ctx context.Context, p *Pipeline, logger *slog.Logger, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &StageError{Stage: name, Err: err}
	}

	start := domain.Now()
	out, err := fn(ctx)
	p.metrics.StageDuration.WithLabelValues(name).Observe(domain.Now().Sub(start).Seconds())

	if err != nil {
		logger.Error("stage failed", "stage", name, "error", err)
		return zero, &StageError{Stage: name, Err: err}
	}
	return out, nil
}
