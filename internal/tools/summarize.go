package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/research-radar/internal/models"
)

// SummarizeInput defines the input schema for the summarize_paper tool.
type SummarizeInput struct {
	PaperID  string   `json:"paper_id" jsonschema:"required,arXiv id, YouTube video id or YouTube URL"`
	Keywords []string `json:"keywords,omitempty" jsonschema:"Optional topics; the run stops early when the item matches none of them"`
}

// NewSummarizeHandler runs the full pipeline for one item.
// The text content is a readable report, the structured content the raw result.
func NewSummarizeHandler(deps *Dependencies) mcp.ToolHandlerFor[SummarizeInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SummarizeInput) (*mcp.CallToolResult, any, error) {
		id := strings.TrimSpace(input.PaperID)
		if id == "" {
			return ErrorResult("paper_id cannot be empty", "Provide an arXiv id such as 2401.12345 or a YouTube id"), nil, nil
		}

		start := time.Now()
		res := deps.Radar.RunForContent(ctx, id, input.Keywords)
		deps.logger().Info("summarize_paper completed",
			"content_id", id,
			"status", res.Status,
			"duration_ms", time.Since(start).Milliseconds())

		if res.Status == models.StatusFailed {
			return ErrorResult("Analysis failed: "+res.Error, runFailureHint(res.Error)), nil, nil
		}
		return TextResult(formatReport(res)), res, nil
	}
}

func formatReport(res models.Result) string {
	var b strings.Builder
	title := res.Title
	if title == "" {
		title = res.ContentID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if res.ContentHash != "" {
		fmt.Fprintf(&b, "hash_id: %s\n\n", res.ContentHash)
	}
	fmt.Fprintf(&b, "## Summary\n\n%s\n", res.Summary)

	if len(res.Analysis) > 0 {
		b.WriteString("\n## Analysis\n")
		questions := make([]string, 0, len(res.Analysis))
		for q := range res.Analysis {
			questions = append(questions, q)
		}
		slices.Sort(questions)
		for _, q := range questions {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", q, res.Analysis[q])
		}
	}
	return b.String()
}
