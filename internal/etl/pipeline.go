package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/artifact"
	"github.com/BartekS5/dailyetl/pkg/logger"
	"github.com/BartekS5/dailyetl/pkg/models"
)

// Pipeline runs extract, clean and load in order. Stages hand data to each
// other only through the two artifact files, so each one can also be run on
// its own.
type Pipeline struct {
	Config      *config.Config
	Extractor   Extractor
	Cleaner     *Cleaner
	Validator   *Validator
	Transformer *Transformer
	Index       Index

	// Recorder is optional.
	Recorder Recorder

	now func() time.Time
}

func NewPipeline(cfg *config.Config, ext Extractor, idx Index) *Pipeline {
	return &Pipeline{
		Config:      cfg,
		Extractor:   ext,
		Cleaner:     NewCleaner(cfg.Cleaning),
		Validator:   NewValidator(),
		Transformer: NewTransformer(),
		Index:       idx,
		now:         time.Now,
	}
}

// NewFromConfig wires the SQL extractor and the configured index backend.
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	idx, err := NewIndex(cfg.Index)
	if err != nil {
		return nil, err
	}
	return NewPipeline(cfg, NewSQLExtractor(cfg.Source), idx), nil
}

// NewIndex returns the Index for the configured backend.
func NewIndex(cfg config.IndexConfig) (Index, error) {
	switch cfg.Backend {
	case config.BackendElasticsearch, "":
		return NewElasticIndex(cfg), nil
	case config.BackendMongoDB:
		return NewMongoIndex(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.Backend)
	}
}

// Run executes one full run and returns its report. The report is returned
// on failure too; its State is then FAILED, FailedStage names the stage that
// aborted the chain and no later stage has run.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := newRunReport(ulid.Make().String(), p.clock())
	ctx = withRunID(ctx, report.ID)
	logger.Infow("run started", "run_id", report.ID, "table", p.Config.Source.Table, "index", p.Config.Index.Name)

	fail := func(stage string, err error) (*RunReport, error) {
		report.advance(StateFailed)
		report.FailedStage = stage
		report.Error = err.Error()
		report.Documents = 0
		p.finish(report)
		logger.Errorw("run failed", "run_id", report.ID, "stage", stage, "error", err, "duration", report.Duration())
		return report, err
	}

	report.advance(StateExtracting)
	n, err := p.Extract(ctx)
	if err != nil {
		return fail(StageExtract, err)
	}
	report.Extracted = n

	report.advance(StateCleaning)
	cr, err := p.Clean(ctx)
	if err != nil {
		return fail(StageClean, err)
	}
	report.Cleaned = cr.RowsOut

	report.advance(StateLoading)
	docs, err := p.Load(ctx)
	if err != nil {
		return fail(StageLoad, err)
	}
	report.Documents = docs

	report.advance(StateDone)
	p.finish(report)
	logger.Infow("run finished", "run_id", report.ID, "documents", docs, "duration", report.Duration())
	return report, nil
}

func (p *Pipeline) finish(report *RunReport) {
	if !report.State.Terminal() {
		panic(fmt.Sprintf("etl: finishing run %s in non-terminal state %s", report.ID, report.State))
	}
	report.FinishedAt = p.clock()
	if p.Recorder != nil {
		p.Recorder.ObserveRun(string(report.State), report.Documents, report.FinishedAt)
	}
}

// Extract reads the source table and replaces the raw artifact with it.
// It returns the number of rows written.
func (p *Pipeline) Extract(ctx context.Context) (int, error) {
	return p.stage(ctx, StageExtract, func() (int, error) {
		table, err := p.Extractor.Extract(ctx)
		if err != nil {
			return 0, err
		}
		if err := artifact.Write(p.Config.Artifacts.RawPath, table); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrArtifactIO, err)
		}
		return table.Len(), nil
	})
}

// Clean reads the raw artifact, cleans it and replaces the cleaned
// artifact with the result.
func (p *Pipeline) Clean(ctx context.Context) (CleanReport, error) {
	var report CleanReport
	_, err := p.stage(ctx, StageClean, func() (int, error) {
		raw, err := artifact.Read(p.Config.Artifacts.RawPath)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrArtifactIO, err)
		}

		var cleaned *models.Table
		cleaned, report, err = p.Cleaner.Clean(raw)
		if err != nil {
			return 0, artifactError(err)
		}
		logger.Infow("table cleaned",
			"run_id", RunID(ctx),
			"rows_in", report.RowsIn,
			"duplicates", report.Duplicates,
			"filled", report.Filled,
		)

		if err := artifact.Write(p.Config.Artifacts.CleanedPath, cleaned); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrArtifactIO, err)
		}
		return cleaned.Len(), nil
	})
	return report, err
}

// Load reads the cleaned artifact and indexes one document per row in a
// single bulk request. An empty artifact submits nothing.
func (p *Pipeline) Load(ctx context.Context) (int, error) {
	return p.stage(ctx, StageLoad, func() (int, error) {
		table, err := artifact.Read(p.Config.Artifacts.CleanedPath)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrArtifactIO, err)
		}
		if err := p.Validator.ValidateTable(table); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrArtifactIO, err)
		}

		docs := p.Transformer.ToDocuments(table)
		for i, doc := range docs {
			if err := p.Validator.ValidateDocument(table.Header, doc); err != nil {
				return 0, fmt.Errorf("%w: document %d: %w", ErrArtifactIO, i+1, err)
			}
		}
		if len(docs) == 0 {
			logger.Warnw("cleaned artifact has no rows, nothing to index", "run_id", RunID(ctx))
			return 0, nil
		}
		return p.Index.BulkIndex(ctx, p.Config.Index.Name, docs)
	})
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func() (int, error)) (int, error) {
	start := p.clock()
	logger.Infow("stage started", "run_id", RunID(ctx), "stage", name)

	n, err := fn()
	elapsed := p.clock().Sub(start)
	if p.Recorder != nil {
		p.Recorder.ObserveStage(name, elapsed, n, err)
	}
	if err != nil {
		logger.Errorw("stage failed", "run_id", RunID(ctx), "stage", name, "error", err, "duration", elapsed)
		return 0, &StageError{Stage: name, Err: err}
	}

	logger.Infow("stage finished", "run_id", RunID(ctx), "stage", name, "records", n, "duration", elapsed)
	return n, nil
}

func (p *Pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// artifactError classifies a malformed input table as an artifact failure.
func artifactError(err error) error {
	if errors.Is(err, artifact.ErrMalformed) {
		return fmt.Errorf("%w: %w", ErrArtifactIO, err)
	}
	return err
}
