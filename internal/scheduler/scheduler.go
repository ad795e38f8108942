// Package scheduler re-runs a watchlist of content ids on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many watchlist items run at once.
const DefaultConcurrency = 2

// stopTimeout bounds how long Stop waits for an in-flight batch.
const stopTimeout = 10 * time.Second

var ErrEmptyWatchlist = errors.New("watchlist is empty")

// Runner executes one pipeline run. *service.Radar satisfies it.
type Runner interface {
	RunForContent(ctx context.Context, contentID string, requiredKeywords []string) models.Result
}

// Options configures a Watchlist.
type Options struct {
	// Schedule is a standard five field cron spec or a descriptor like "@daily".
	Schedule    string
	IDs         []string
	Keywords    []string
	Concurrency int
	// OnBatch, when set, receives the results of every completed batch.
	OnBatch func([]models.Result)
}

// Watchlist periodically runs the pipeline for a fixed set of ids.
type Watchlist struct {
	runner Runner
	opts   Options
	cron   *cron.Cron

	mu       sync.Mutex
	lastRun  time.Time
	lastDone []models.Result
}

// New validates opts and prepares the cron schedule. Call Start to begin.
func New(runner Runner, opts Options) (*Watchlist, error) {
	opts.IDs = normalize(opts.IDs)
	if len(opts.IDs) == 0 {
		return nil, ErrEmptyWatchlist
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Schedule, err)
	}

	logger := cronLogger{slog.Default().With("component", "watchlist")}
	return &Watchlist{
		runner: runner,
		opts:   opts,
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
	}, nil
}

// Start schedules the watchlist. Batches run with ctx until it is cancelled.
func (w *Watchlist) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.opts.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.RunOnce(ctx); err != nil {
			slog.Warn("watchlist batch interrupted", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add watchlist job: %w", err)
	}
	w.cron.Start()
	slog.Info("watchlist scheduled", "schedule", w.opts.Schedule, "items", len(w.opts.IDs), "concurrency", w.opts.Concurrency)
	return nil
}

// Stop halts the schedule and waits for a running batch to finish.
func (w *Watchlist) Stop() {
	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
		slog.Info("watchlist stopped")
	case <-time.After(stopTimeout):
		slog.Warn("watchlist stop timed out, a batch may still be running")
	}
}

// Next returns the next scheduled activation, zero before Start.
func (w *Watchlist) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce runs every watchlist item with bounded concurrency. Results keep
// watchlist order. Failed runs are reported in their result, the error is
// only set when ctx ended the batch early.
func (w *Watchlist) RunOnce(ctx context.Context) ([]models.Result, error) {
	start := time.Now()
	results := make([]models.Result, len(w.opts.IDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for i, id := range w.opts.IDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = models.Result{ContentID: id, Status: models.StatusFailed, Error: err.Error()}
				return nil
			}
			results[i] = w.runner.RunForContent(gctx, id, w.opts.Keywords)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Status == models.StatusFailed {
			failed++
		}
	}
	slog.Info("watchlist batch finished",
		"items", len(results),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds())

	w.mu.Lock()
	w.lastRun = start
	w.lastDone = results
	w.mu.Unlock()

	if w.opts.OnBatch != nil {
		w.opts.OnBatch(results)
	}
	return results, ctx.Err()
}

// Last returns the start time and results of the most recent batch.
func (w *Watchlist) Last() (time.Time, []models.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, slices.Clone(w.lastDone)
}

// normalize trims ids, drops blanks and removes duplicates keeping first occurrence.
func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
