package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/research-radar/internal/index"
	"github.com/raphaelgruber/research-radar/internal/models"
)

// NotRelevantSummary is the summary of a run stopped by the relevance gate.
const NotRelevantSummary = "Not relevant to the requested keywords."

func (e *Engine) route(_ context.Context, run models.RunRecord) Result {
	if strings.TrimSpace(run.ContentID) == "" {
		return Fail("%s", ErrInvalidInput.Error())
	}

	r := Classify(run.ContentID)
	if r.Defaulted {
		slog.Warn("unrecognized content id, assuming paper", "run_id", run.RunID, "content_id", run.ContentID)
	}
	slog.Info("routed content", "run_id", run.RunID, "source_type", r.Type, "source_id", r.ID)

	return Goto(StageFetchMetadata, Update{
		SourceType: &r.Type,
		SourceID:   &r.ID,
		Status:     ptr(models.StatusRunning),
	})
}

func (e *Engine) fetchMetadata(ctx context.Context, run models.RunRecord) Result {
	src := e.deps.Sources[run.SourceType]

	meta, err := src.Metadata.FetchMetadata(ctx, run.SourceID)
	if err != nil {
		return Fail("metadata extraction failed for %s %s: %v", run.SourceType, run.SourceID, err)
	}
	if meta == nil {
		return Fail("metadata extraction failed for %s %s", run.SourceType, run.SourceID)
	}

	slog.Info("fetched metadata", "run_id", run.RunID, "title", meta.Title, "keywords", len(meta.Keywords), "origin", meta.Origin)
	return Goto(StageFilterRelevance, Update{Metadata: meta})
}

func (e *Engine) filterRelevance(ctx context.Context, run models.RunRecord) Result {
	if run.Metadata == nil {
		return Fail("missing metadata for relevance check")
	}

	d := e.deps.Gate.Decide(ctx, run.Metadata, run.RequiredKeywords)
	if !d.Relevant {
		slog.Warn("item not relevant, ending run", "run_id", run.RunID, "tier", d.Tier, "reason", d.Reason)
		return Terminal(Update{
			Status:  ptr(models.StatusCompleted),
			Summary: ptr(NotRelevantSummary),
		})
	}

	slog.Info("item relevant", "run_id", run.RunID, "tier", d.Tier, "reason", d.Reason)
	return Goto(StageExtractContent, Update{})
}

func (e *Engine) extractContent(ctx context.Context, run models.RunRecord) Result {
	meta := run.Metadata
	if meta == nil || meta.ContentURL == "" {
		return Fail("content source URL missing for %s %s", run.SourceType, run.SourceID)
	}

	src := e.deps.Sources[run.SourceType]
	text, err := src.Content.ExtractContent(ctx, meta)
	if err != nil {
		return Fail("content extraction failed for %s: %v", meta.ContentURL, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if run.SourceType == models.SourceVideo {
			return Fail("no subtitles found for video %s", run.SourceID)
		}
		return Fail("no text could be extracted from %s", meta.ContentURL)
	}

	slog.Info("extracted content", "run_id", run.RunID, "chars", len(text))
	return Goto(StageIndexContent, Update{ContentText: &text})
}

func (e *Engine) indexContent(ctx context.Context, run models.RunRecord) Result {
	hash := index.ContentHash(run.ContentText)
	if err := e.deps.Index.Index(ctx, hash, run.Metadata.ContentURL, run.ContentText); err != nil {
		return Fail("embedding failed: %v", err)
	}
	return Goto(StageAnalyze, Update{ContentHash: &hash})
}

func (e *Engine) analyze(ctx context.Context, run models.RunRecord) Result {
	if run.ContentHash == "" {
		return Fail("analysis requested before indexing")
	}

	analysis, err := e.deps.Analyzer.Analyze(ctx, run.ContentHash)
	if err != nil {
		return Fail("analysis failed: %v", err)
	}
	summary := e.deps.Analyzer.Summarize(ctx, analysis)

	return Goto(StagePublish, Update{Analysis: analysis, Summary: &summary})
}

// publish finalizes the run. Side effects of a successful run belong here.
func (e *Engine) publish(_ context.Context, run models.RunRecord) Result {
	slog.Info("publishing results", "run_id", run.RunID, "content_hash", run.ContentHash)
	return Terminal(Update{Status: ptr(models.StatusCompleted)})
}
