// Package workflow runs the content pipeline: route, fetch metadata, filter
// relevance, extract, index, analyze and publish.
package workflow

import (
	"fmt"

	"github.com/raphaelgruber/research-radar/internal/models"
)

// StageID names a pipeline stage.
type StageID int

const (
	StageRoute StageID = iota
	StageFetchMetadata
	StageFilterRelevance
	StageExtractContent
	StageIndexContent
	StageAnalyze
	StagePublish

	numStages
)

var stageNames = [numStages]string{
	StageRoute:           "route",
	StageFetchMetadata:   "fetch_metadata",
	StageFilterRelevance: "filter_relevance",
	StageExtractContent:  "extract_content",
	StageIndexContent:    "index_content",
	StageAnalyze:         "analyze",
	StagePublish:         "publish",
}

func (s StageID) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Stages returns every stage in pipeline order.
func Stages() []StageID {
	out := make([]StageID, numStages)
	for i := range out {
		out[i] = StageID(i)
	}
	return out
}

// Update is a partial Run Record. Nil fields leave the record unchanged.
type Update struct {
	SourceType  *models.SourceType
	SourceID    *string
	Metadata    *models.Metadata
	ContentText *string
	ContentHash *string
	Analysis    models.Analysis
	Summary     *string
	Status      *models.Status
	Error       *string
}

// Apply merges u into r. New values win, except that a terminal status is
// never replaced.
func (u Update) Apply(r *models.RunRecord) {
	if u.SourceType != nil {
		r.SourceType = *u.SourceType
	}
	if u.SourceID != nil {
		r.SourceID = *u.SourceID
	}
	if u.Metadata != nil {
		r.Metadata = u.Metadata
	}
	if u.ContentText != nil {
		r.ContentText = *u.ContentText
	}
	if u.ContentHash != nil {
		r.ContentHash = *u.ContentHash
	}
	if u.Analysis != nil {
		r.Analysis = u.Analysis
	}
	if u.Summary != nil {
		r.Summary = *u.Summary
	}
	if u.Error != nil {
		r.Error = *u.Error
	}
	if u.Status != nil && !r.Status.Terminal() {
		r.Status = *u.Status
	}
}

// Result is what a stage returns: either the next stage with an update, or
// a terminal update that ends the run.
type Result struct {
	next     StageID
	terminal bool
	Update   Update
}

// Goto continues the run at next after merging u.
func Goto(next StageID, u Update) Result {
	return Result{next: next, Update: u}
}

// Terminal ends the run after merging u.
func Terminal(u Update) Result {
	return Result{terminal: true, Update: u}
}

// Fail ends the run with status failed and a formatted message.
func Fail(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Terminal(Update{Status: ptr(models.StatusFailed), Error: &msg})
}

// Next returns the stage to run next and whether the run continues.
func (r Result) Next() (StageID, bool) {
	return r.next, !r.terminal
}

func ptr[T any](v T) *T {
	return &v
}
