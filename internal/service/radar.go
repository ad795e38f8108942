// Package service ties the pipeline together for the CLI, the HTTP API and
// the MCP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/workflow"
)

// ErrHistoryDisabled is returned by history queries when no store is configured.
var ErrHistoryDisabled = errors.New("run history is not configured")

// historyTimeout bounds the best-effort write after each run.
const historyTimeout = 5 * time.Second

// Pipeline executes one run to completion.
type Pipeline interface {
	Run(ctx context.Context, contentID string, requiredKeywords []string, opts ...workflow.RunOption) models.RunRecord
}

// Chatter answers questions about an indexed item.
type Chatter interface {
	Chat(ctx context.Context, contentHash, query string) (analysis.ChatAnswer, error)
}

// HistoryStore persists terminal runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, run models.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
	CountByStatus(ctx context.Context) ([]db.StatusCount, error)
}

// Radar is the facade every front end talks to.
type Radar struct {
	pipeline Pipeline
	chat     Chatter
	history  HistoryStore
	metrics  *metrics.Collector
	closers  []func(context.Context) error
}

// New assembles a Radar from its parts. history may be nil.
func New(pipeline Pipeline, chat Chatter, history HistoryStore, collector *metrics.Collector) *Radar {
	return &Radar{pipeline: pipeline, chat: chat, history: history, metrics: collector}
}

// Run executes the pipeline and records the terminal run in history.
func (r *Radar) Run(ctx context.Context, contentID string, requiredKeywords []string, opts ...workflow.RunOption) models.RunRecord {
	run := r.pipeline.Run(ctx, strings.TrimSpace(contentID), requiredKeywords, opts...)
	r.saveHistory(ctx, run)
	return run
}

// RunForContent runs the pipeline and returns the public result shape.
func (r *Radar) RunForContent(ctx context.Context, contentID string, requiredKeywords []string) models.Result {
	run := r.Run(ctx, contentID, requiredKeywords)
	return run.Result()
}

// Chat answers query from the item indexed under contentHash.
func (r *Radar) Chat(ctx context.Context, contentHash, query string) (analysis.ChatAnswer, error) {
	if strings.TrimSpace(query) == "" {
		return analysis.ChatAnswer{}, errors.New("query is required")
	}
	if strings.TrimSpace(contentHash) == "" {
		return analysis.ChatAnswer{}, errors.New("hash_id is required")
	}
	answer, err := r.chat.Chat(ctx, contentHash, query)
	if err != nil {
		return analysis.ChatAnswer{}, fmt.Errorf("chat: %w", err)
	}
	return answer, nil
}

// Metrics returns the current runtime statistics.
func (r *Radar) Metrics() metrics.Snapshot {
	return r.metrics.Snapshot()
}

// HistoryEnabled reports whether runs are persisted.
func (r *Radar) HistoryEnabled() bool {
	return r.history != nil
}

// History lists the most recent persisted runs.
func (r *Radar) History(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	return r.history.ListRuns(ctx, limit)
}

// HistoryRun loads one persisted run.
func (r *Radar) HistoryRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	return r.history.GetRun(ctx, runID)
}

// HistoryCounts groups persisted runs by status.
func (r *Radar) HistoryCounts(ctx context.Context) ([]db.StatusCount, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	return r.history.CountByStatus(ctx)
}

// Close releases the resources opened by Build.
func (r *Radar) Close(ctx context.Context) error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}

// saveHistory writes run without letting a storage problem touch the result.
func (r *Radar) saveHistory(ctx context.Context, run models.RunRecord) {
	if r.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	start := time.Now()
	err := r.history.SaveRun(ctx, run)
	r.metrics.RecordTiming(metrics.OpHistory, time.Since(start), err)
	if err != nil {
		slog.Warn("failed to persist run", "run_id", run.RunID, "error", err)
	}
}
