// Package models defines the data structures shared across the Research Radar pipeline.
package models

import (
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further stage may run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceType identifies which adapters serve a content id.
type SourceType string

const (
	SourcePaper SourceType = "paper"
	SourceVideo SourceType = "video"
)

// Metadata is the flat descriptive record returned by a metadata adapter.
type Metadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	PublishedAt string   `json:"published_at,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	AISummary   string   `json:"ai_summary,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Authors     string   `json:"authors,omitempty"`
	Submitter   string   `json:"submitter,omitempty"`
	GithubRepo  string   `json:"github_repo,omitempty"`
	Upvotes     int64    `json:"upvotes,omitempty"`
	ViewCount   int64    `json:"view_count,omitempty"`
	Duration    string   `json:"duration,omitempty"`

	// PageURL is the human facing landing page.
	PageURL string `json:"page_url,omitempty"`
	// ContentURL is what the extraction adapter reads (PDF or watch URL).
	ContentURL string `json:"content_url,omitempty"`
	// Origin names the service that produced the record ("huggingface", "arxiv", "youtube", "yt-dlp").
	Origin string `json:"origin,omitempty"`
}

// Abstract returns the best available descriptive text.
func (m *Metadata) Abstract() string {
	if m == nil {
		return ""
	}
	if m.Summary != "" {
		return m.Summary
	}
	return m.AISummary
}

// RunRecord accumulates everything one pipeline invocation learns.
// Fields are only ever added or overwritten, never cleared.
type RunRecord struct {
	RunID            string     `json:"run_id"`
	ContentID        string     `json:"content_id"`
	SourceType       SourceType `json:"source_type,omitempty"`
	SourceID         string     `json:"source_id,omitempty"` // normalized id the adapters use
	RequiredKeywords []string   `json:"required_keywords,omitempty"`
	Metadata         *Metadata  `json:"metadata,omitempty"`
	ContentText      string     `json:"-"`
	ContentHash      string     `json:"content_hash,omitempty"`
	Analysis         Analysis   `json:"analysis,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	Status           Status     `json:"status"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Result is the reduced public shape handed to front ends.
type Result struct {
	ContentID   string            `json:"content_id"`
	Summary     string            `json:"summary"`
	Analysis    map[string]string `json:"analysis"`
	ContentHash string            `json:"content_hash,omitempty"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Title       string            `json:"title,omitempty"`
}

// Result reshapes the record for callers.
func (r *RunRecord) Result() Result {
	res := Result{
		ContentID:   r.ContentID,
		Summary:     r.Summary,
		Analysis:    r.Analysis.Map(),
		ContentHash: r.ContentHash,
		Status:      r.Status,
		Error:       r.Error,
	}
	if r.Metadata != nil {
		res.Title = r.Metadata.Title
	}
	return res
}
