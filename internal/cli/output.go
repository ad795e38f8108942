package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
)

// printResult writes a run result as JSON or as a readable report.
func printResult(w io.Writer, res models.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}

	t := defaultTheme
	if res.Status == models.StatusFailed {
		fmt.Fprintln(w, t.errorStyle().Render("✗ "+res.ContentID+": "+res.Error))
		return nil
	}

	title := res.Title
	if title == "" {
		title = res.ContentID
	}
	fmt.Fprintln(w, t.headingStyle().Render(title))
	if res.ContentHash != "" {
		fmt.Fprintln(w, t.hintStyle().Render("hash_id: "+res.ContentHash))
	}
	fmt.Fprintf(w, "\n%s\n%s\n", t.headingStyle().Render("Summary"), res.Summary)

	questions := make([]string, 0, len(res.Analysis))
	for q := range res.Analysis {
		questions = append(questions, q)
	}
	slices.Sort(questions)
	for _, q := range questions {
		fmt.Fprintf(w, "\n%s\n%s\n", t.statusStyle().Render(q), res.Analysis[q])
	}
	return nil
}

// printHistory writes persisted runs as a table, newest first.
func printHistory(w io.Writer, runs []models.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	fmt.Fprintf(w, "%-38s %-12s %-10s %-20s %s\n", "RUN", "CONTENT", "STATUS", "STARTED", "TITLE")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		title := ""
		if r.Metadata != nil {
			title = truncate(r.Metadata.Title, 40)
		}
		if r.Status == models.StatusFailed {
			title = truncate(r.Error, 40)
		}
		fmt.Fprintf(w, "%-38s %-12s %-10s %-20s %s\n",
			r.RunID, truncate(r.ContentID, 12), r.Status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), title)
	}
}

// printRun writes one persisted run in full.
func printRun(w io.Writer, r models.RunRecord) {
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "  Content:  %s (%s)\n", r.ContentID, r.SourceType)
	fmt.Fprintf(w, "  Status:   %s\n", r.Status)
	fmt.Fprintf(w, "  Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	if len(r.RequiredKeywords) > 0 {
		fmt.Fprintf(w, "  Keywords: %s\n", strings.Join(r.RequiredKeywords, ", "))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", r.Error)
	}
	fmt.Fprintln(w)
	_ = printResult(w, r.Result(), false)
}

// printStats writes runtime statistics and history counts.
func printStats(w io.Writer, snap *metrics.Snapshot, counts []db.StatusCount) {
	if snap != nil {
		fmt.Fprintln(w, "Server Statistics")
		fmt.Fprintln(w, "-----------------")
		fmt.Fprintf(w, "Uptime: %s\n\n", (time.Duration(snap.UptimeSeconds) * time.Second).String())

		fmt.Fprintf(w, "%-20s %8s %8s %10s %10s %10s\n", "OPERATION", "COUNT", "ERRORS", "AVG MS", "MAX MS", "TOKENS")
		printOp(w, "embedding", snap.Embedding)
		printOp(w, "llm_generate", snap.LLMGenerate)
		printOp(w, "index_batch", snap.IndexBatch)
		printOp(w, "search", snap.Search)
		printOp(w, "history_write", snap.History)
		for _, name := range snap.StageNames() {
			printOp(w, "stage "+name, snap.Stages[name])
		}
	}

	if counts != nil {
		if snap != nil {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "Run History")
		fmt.Fprintln(w, "-----------")
		total := 0
		for _, c := range counts {
			fmt.Fprintf(w, "  %-10s %d\n", c.Status, c.Count)
			total += c.Count
		}
		fmt.Fprintf(w, "  %-10s %d\n", "total", total)
	}
}

func printOp(w io.Writer, name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	tokens := "-"
	if op.InputTokens != nil && op.OutputTokens != nil {
		tokens = fmt.Sprintf("%d", *op.InputTokens+*op.OutputTokens)
	}
	fmt.Fprintf(w, "%-20s %8d %8d %10.1f %10d %10s\n", name, op.Count, op.Errors, op.AvgTimeMs, op.MaxTimeMs, tokens)
}

// truncate shortens s to maxLen runes, adding "..." when cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
