package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/relevance"
)

// ErrInvalidInput is reported for a missing content id.
var ErrInvalidInput = errors.New("no content ID provided")

// MetadataFetcher returns descriptive metadata for a normalized id.
// A nil record with a nil error means the item was not found.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, id string) (*models.Metadata, error)
}

// ContentExtractor returns the full text behind meta.ContentURL. An empty
// string means nothing could be extracted; an error means the extractor broke.
type ContentExtractor interface {
	ExtractContent(ctx context.Context, meta *models.Metadata) (string, error)
}

// Source pairs the adapters for one source type.
type Source struct {
	Metadata MetadataFetcher
	Content  ContentExtractor
}

// Gate decides relevance.
type Gate interface {
	Decide(ctx context.Context, meta *models.Metadata, required []string) relevance.Decision
}

// Indexer adds text to the shared retrieval index.
type Indexer interface {
	Index(ctx context.Context, contentHash, sourceURL, text string) error
}

// Analyzer answers the fixed questions and summarizes them.
type Analyzer interface {
	Analyze(ctx context.Context, contentHash string) (models.Analysis, error)
	Summarize(ctx context.Context, analysis models.Analysis) string
}

// Observer is told about every stage transition of a run.
type Observer interface {
	StageStarted(runID string, stage StageID)
	StageFinished(runID string, stage StageID, status models.Status, errMsg string)
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Sources  map[models.SourceType]Source
	Gate     Gate
	Index    Indexer
	Analyzer Analyzer
	Metrics  *metrics.Collector
	Observer Observer
}

// StageFunc computes the next step from a snapshot of the record.
type StageFunc func(ctx context.Context, run models.RunRecord) Result

// Engine executes runs. One Engine is shared by all concurrent runs; each
// run's stages execute sequentially on the calling goroutine.
type Engine struct {
	deps   Deps
	stages [numStages]StageFunc
}

// maxSteps bounds a run in case a registry ever forms a cycle.
const maxSteps = 4 * int(numStages)

// New builds the stage registry and checks that every collaborator is present.
func New(deps Deps) (*Engine, error) {
	if deps.Gate == nil || deps.Index == nil || deps.Analyzer == nil {
		return nil, fmt.Errorf("workflow: gate, index and analyzer are required")
	}
	for _, typ := range []models.SourceType{models.SourcePaper, models.SourceVideo} {
		src, ok := deps.Sources[typ]
		if !ok || src.Metadata == nil || src.Content == nil {
			return nil, fmt.Errorf("workflow: adapters for %s missing", typ)
		}
	}

	e := &Engine{deps: deps}
	e.stages = [numStages]StageFunc{
		StageRoute:           e.route,
		StageFetchMetadata:   e.fetchMetadata,
		StageFilterRelevance: e.filterRelevance,
		StageExtractContent:  e.extractContent,
		StageIndexContent:    e.indexContent,
		StageAnalyze:         e.analyze,
		StagePublish:         e.publish,
	}
	return e, nil
}

// RunOption customizes a single run.
type RunOption func(*runConfig)

type runConfig struct {
	runID    string
	observer Observer
}

// WithRunID uses id instead of a generated run id.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// WithObserver adds a per-run observer next to the engine-wide one.
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) { c.observer = o }
}

// Run executes the pipeline for contentID and returns the terminal record.
// It never returns an unfinished record: status is always completed or failed.
func (e *Engine) Run(ctx context.Context, contentID string, requiredKeywords []string, opts ...RunOption) models.RunRecord {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}

	run := models.RunRecord{
		RunID:            cfg.runID,
		ContentID:        contentID,
		RequiredKeywords: requiredKeywords,
		Status:           models.StatusPending,
		StartedAt:        time.Now(),
	}
	log := slog.With("run_id", run.RunID, "content_id", contentID)
	log.Info("run started", "keywords", len(requiredKeywords))

	stage := StageRoute
	for step := 0; ; step++ {
		if step >= maxSteps {
			Fail("run exceeded %d stage transitions", maxSteps).Update.Apply(&run)
			break
		}
		if err := ctx.Err(); err != nil {
			Fail("run cancelled before %s: %v", stage, err).Update.Apply(&run)
			break
		}

		e.notifyStarted(cfg.observer, run.RunID, stage)
		start := time.Now()
		res := e.call(ctx, stage, run)
		res.Update.Apply(&run)
		duration := time.Since(start)

		var stageErr error
		if run.Status == models.StatusFailed {
			stageErr = errors.New(run.Error)
		}
		e.deps.Metrics.RecordTiming(metrics.StageOp(stage.String()), duration, stageErr)
		e.notifyFinished(cfg.observer, run.RunID, stage, run.Status, run.Error)
		log.Debug("stage finished", "stage", stage, "status", run.Status, "duration_ms", duration.Milliseconds())

		next, more := res.Next()
		if !more || run.Status.Terminal() {
			break
		}
		stage = next
	}

	if !run.Status.Terminal() {
		// A stage ended the run without saying how.
		status := models.StatusCompleted
		if run.Error != "" {
			status = models.StatusFailed
		}
		run.Status = status
	}
	finished := time.Now()
	run.FinishedAt = &finished

	if run.Status == models.StatusFailed {
		log.Error("run failed", "error", run.Error, "duration_ms", finished.Sub(run.StartedAt).Milliseconds())
	} else {
		log.Info("run completed", "analyzed", len(run.Analysis) > 0, "duration_ms", finished.Sub(run.StartedAt).Milliseconds())
	}
	return run
}

// call runs one stage, converting a panic into a failed result.
func (e *Engine) call(ctx context.Context, stage StageID, run models.RunRecord) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("stage panicked", "run_id", run.RunID, "stage", stage, "panic", r, "stack", string(debug.Stack()))
			res = Fail("%s: internal error: %v", stage, r)
		}
	}()
	return e.stages[stage](ctx, run)
}

func (e *Engine) notifyStarted(extra Observer, runID string, stage StageID) {
	if e.deps.Observer != nil {
		e.deps.Observer.StageStarted(runID, stage)
	}
	if extra != nil {
		extra.StageStarted(runID, stage)
	}
}

func (e *Engine) notifyFinished(extra Observer, runID string, stage StageID, status models.Status, errMsg string) {
	if e.deps.Observer != nil {
		e.deps.Observer.StageFinished(runID, stage, status, errMsg)
	}
	if extra != nil {
		extra.StageFinished(runID, stage, status, errMsg)
	}
}
