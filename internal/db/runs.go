package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 20

// runRow is the stored shape of a run. Metadata and analysis travel as plain
// objects so the table stays readable from the SurrealDB console.
type runRow struct {
	RunID            string           `json:"run_id"`
	ContentID        string           `json:"content_id"`
	SourceType       string           `json:"source_type"`
	SourceID         string           `json:"source_id"`
	RequiredKeywords []string         `json:"required_keywords"`
	Title            string           `json:"title"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	ContentHash      string           `json:"content_hash"`
	Analysis         []map[string]any `json:"analysis"`
	Summary          string           `json:"summary"`
	Status           string           `json:"status"`
	Error            string           `json:"error"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// StatusCount is the number of stored runs in one status.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// SaveRun upserts a run keyed by its run id. Transaction conflicts are retried.
func (c *Client) SaveRun(ctx context.Context, run models.RunRecord) error {
	vars, err := runVars(run)
	if err != nil {
		return err
	}

	sql := `
		UPSERT type::record("run", $run_id) SET
			run_id = $run_id,
			content_id = $content_id,
			source_type = $source_type,
			source_id = $source_id,
			required_keywords = $required_keywords,
			title = $title,
			metadata = $metadata,
			content_hash = $content_hash,
			analysis = $analysis,
			summary = $summary,
			status = $status,
			error = $error,
			started_at = type::datetime($started_at),
			finished_at = IF $finished_at THEN type::datetime($finished_at) ELSE NONE END
	`

	op := func() error {
		_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
		err = wrapQueryError(err)
		if err != nil && !errors.Is(err, ErrTransactionConflict) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun loads one run. Returns ErrNotFound when it does not exist.
func (c *Client) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	results, err := surrealdb.Query[[]runRow](ctx, c.db, `
		SELECT * FROM type::record("run", $id)
	`, map[string]any{"id": runID})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	run, err := (*results)[0].Result[0].record()
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	results, err := surrealdb.Query[[]runRow](ctx, c.db, `
		SELECT * FROM run ORDER BY started_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []models.RunRecord{}, nil
	}

	rows := (*results)[0].Result
	runs := make([]models.RunRecord, 0, len(rows))
	for _, row := range rows {
		run, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// CountByStatus groups stored runs by status.
func (c *Client) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	results, err := surrealdb.Query[[]StatusCount](ctx, c.db, `
		SELECT status, count() AS count FROM run GROUP BY status
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []StatusCount{}, nil
	}
	return (*results)[0].Result, nil
}

func runVars(run models.RunRecord) (map[string]any, error) {
	row, err := newRunRow(run)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"run_id":            row.RunID,
		"content_id":        row.ContentID,
		"source_type":       row.SourceType,
		"source_id":         row.SourceID,
		"required_keywords": row.RequiredKeywords,
		"title":             row.Title,
		"metadata":          row.Metadata,
		"content_hash":      row.ContentHash,
		"analysis":          row.Analysis,
		"summary":           row.Summary,
		"status":            row.Status,
		"error":             row.Error,
		"started_at":        row.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":       nil,
	}
	if row.FinishedAt != nil {
		vars["finished_at"] = row.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	return vars, nil
}

func newRunRow(run models.RunRecord) (runRow, error) {
	row := runRow{
		RunID:            run.RunID,
		ContentID:        run.ContentID,
		SourceType:       string(run.SourceType),
		SourceID:         run.SourceID,
		RequiredKeywords: run.RequiredKeywords,
		ContentHash:      run.ContentHash,
		Summary:          run.Summary,
		Status:           string(run.Status),
		Error:            run.Error,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	}
	if row.RequiredKeywords == nil {
		row.RequiredKeywords = []string{}
	}
	if run.Metadata != nil {
		row.Title = run.Metadata.Title
		if err := convert(run.Metadata, &row.Metadata); err != nil {
			return runRow{}, fmt.Errorf("encode metadata: %w", err)
		}
	}
	row.Analysis = []map[string]any{}
	if len(run.Analysis) > 0 {
		if err := convert(run.Analysis, &row.Analysis); err != nil {
			return runRow{}, fmt.Errorf("encode analysis: %w", err)
		}
	}
	return row, nil
}

func (r runRow) record() (models.RunRecord, error) {
	run := models.RunRecord{
		RunID:            r.RunID,
		ContentID:        r.ContentID,
		SourceType:       models.SourceType(r.SourceType),
		SourceID:         r.SourceID,
		RequiredKeywords: r.RequiredKeywords,
		ContentHash:      r.ContentHash,
		Summary:          r.Summary,
		Status:           models.Status(r.Status),
		Error:            r.Error,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
	if len(r.Metadata) > 0 {
		run.Metadata = &models.Metadata{}
		if err := convert(r.Metadata, run.Metadata); err != nil {
			return models.RunRecord{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(r.Analysis) > 0 {
		if err := convert(r.Analysis, &run.Analysis); err != nil {
			return models.RunRecord{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return run, nil
}

// convert re-shapes v into out through its JSON form.
func convert(v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
