package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

func sampleRun() models.RunRecord {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)
	return models.RunRecord{
		RunID:            "run-1",
		ContentID:        "https://arxiv.org/abs/2401.12345",
		SourceType:       models.SourcePaper,
		SourceID:         "2401.12345",
		RequiredKeywords: []string{"rag"},
		Metadata: &models.Metadata{
			ID:       "2401.12345",
			Title:    "Sparse Mixtures",
			Keywords: []string{"rag", "moe"},
			Upvotes:  7,
		},
		ContentText: "never stored",
		ContentHash: "abc123",
		Analysis: models.Analysis{
			{Question: "Q1", Answer: "A1"},
			{Question: "Q2", Answer: "Data not found in paper.", Failure: models.FailureNoContext},
		},
		Summary:    "short",
		Status:     models.StatusCompleted,
		StartedAt:  started,
		FinishedAt: &finished,
	}
}

func TestRunRowRoundTrip(t *testing.T) {
	run := sampleRun()

	row, err := newRunRow(run)
	require.NoError(t, err)
	assert.Equal(t, "Sparse Mixtures", row.Title)
	assert.Equal(t, "paper", row.SourceType)
	assert.Len(t, row.Analysis, 2)
	assert.Equal(t, "no_context", row.Analysis[1]["failure"])

	back, err := row.record()
	require.NoError(t, err)

	run.ContentText = ""
	assert.Equal(t, run, back)
}

func TestRunRowEmptyRun(t *testing.T) {
	run := models.RunRecord{RunID: "r", ContentID: "", Status: models.StatusFailed, Error: "no content ID provided"}

	row, err := newRunRow(run)
	require.NoError(t, err)
	assert.NotNil(t, row.RequiredKeywords)
	assert.NotNil(t, row.Analysis)
	assert.Nil(t, row.Metadata)

	back, err := row.record()
	require.NoError(t, err)
	assert.Nil(t, back.Metadata)
	assert.Empty(t, back.Analysis)
	assert.Equal(t, "no content ID provided", back.Error)
}

func TestRunVars(t *testing.T) {
	run := sampleRun()
	vars, err := runVars(run)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T12:00:00Z", vars["started_at"])
	assert.Equal(t, "2025-03-01T12:00:42Z", vars["finished_at"])

	run.FinishedAt = nil
	vars, err = runVars(run)
	require.NoError(t, err)
	assert.Nil(t, vars["finished_at"])
}

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"conflict", &surrealdb.QueryError{Message: "Transaction conflict: retry"}, true},
		{"wrapped conflict", fmt.Errorf("query: %w", &surrealdb.QueryError{Message: "Transaction conflict"}), true},
		{"other query error", &surrealdb.QueryError{Message: "Parse error"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapQueryError(tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.conflict, errors.Is(err, ErrTransactionConflict))
		})
	}
}
