package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResult(t *testing.T) {
	res := models.Result{
		ContentID:   "2401.12345",
		Title:       "Attention Is Enough",
		Summary:     "A short summary.",
		ContentHash: "abc123",
		Status:      models.StatusCompleted,
		Analysis: map[string]string{
			"What problem does it solve?": "Latency.",
			"How is it evaluated?":        "On benchmarks.",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, false))
	out := buf.String()

	assert.Contains(t, out, "Attention Is Enough")
	assert.Contains(t, out, "hash_id: abc123")
	assert.Contains(t, out, "A short summary.")
	assert.Less(t, strings.Index(out, "How is it evaluated?"), strings.Index(out, "What problem does it solve?"))
}

func TestPrintResultJSON(t *testing.T) {
	res := models.Result{ContentID: "x", Summary: "s", Analysis: map[string]string{}, Status: models.StatusCompleted}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, true))

	var got models.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, res, got)
}

func TestPrintResultFailed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, models.Result{ContentID: "x", Status: models.StatusFailed, Error: "boom"}, false))
	assert.Contains(t, buf.String(), "x: boom")
	assert.NotContains(t, buf.String(), "Summary")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No runs recorded\n", buf.String())

	buf.Reset()
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	printHistory(&buf, []models.RunRecord{
		{RunID: "r1", ContentID: "2401.12345", Status: models.StatusCompleted, StartedAt: started, Metadata: &models.Metadata{Title: "Paper"}},
		{RunID: "r2", ContentID: "dQw4w9WgXcQ", Status: models.StatusFailed, StartedAt: started, Error: "no transcript"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "Paper")
	assert.Contains(t, lines[3], "no transcript")
}

func TestPrintRun(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)

	var buf bytes.Buffer
	printRun(&buf, models.RunRecord{
		RunID:            "r1",
		ContentID:        "2401.12345",
		SourceType:       models.SourcePaper,
		RequiredKeywords: []string{"rag", "agents"},
		Status:           models.StatusCompleted,
		Summary:          "sum",
		StartedAt:        started,
		FinishedAt:       &finished,
	})
	out := buf.String()
	assert.Contains(t, out, "2401.12345 (paper)")
	assert.Contains(t, out, "Duration: 1.5s")
	assert.Contains(t, out, "Keywords: rag, agents")
	assert.Contains(t, out, "sum")
}

func TestPrintStats(t *testing.T) {
	in, out := int64(10), int64(5)
	snap := &metrics.Snapshot{
		UptimeSeconds: 65,
		LLMGenerate:   &metrics.OperationSnapshot{Count: 2, AvgTimeMs: 12.5, MaxTimeMs: 20, InputTokens: &in, OutputTokens: &out},
		Stages:        map[string]*metrics.OperationSnapshot{"route": {Count: 2}},
	}

	var buf bytes.Buffer
	printStats(&buf, snap, nil)
	got := buf.String()
	assert.Contains(t, got, "Uptime: 1m5s")
	assert.Contains(t, got, "llm_generate")
	assert.Contains(t, got, "15")
	assert.Contains(t, got, "stage route")
	assert.NotContains(t, got, "embedding")
	assert.NotContains(t, got, "Run History")

	buf.Reset()
	printStats(&buf, nil, []db.StatusCount{{Status: "completed", Count: 3}, {Status: "failed", Count: 1}})
	assert.Contains(t, buf.String(), "total      4")
	assert.NotContains(t, buf.String(), "Server Statistics")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer title here", 10, "a longe..."},
		{"abcdef", 2, "ab"},
		{"über lange Zeile", 6, "übe..."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.maxLen))
		})
	}
}
