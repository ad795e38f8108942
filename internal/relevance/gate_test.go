package relevance

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/research-radar/internal/llm"
	"github.com/raphaelgruber/research-radar/internal/llm/llmtest"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, model *llmtest.Model, threshold int) *Gate {
	t.Helper()
	catalogue, err := llm.LoadPrompts()
	require.NoError(t, err)
	var g *Gate
	if model == nil {
		g, err = NewGate(nil, catalogue, threshold)
	} else {
		g, err = NewGate(model, catalogue, threshold)
	}
	require.NoError(t, err)
	return g
}

func TestDecideBypassWithoutRequiredKeywords(t *testing.T) {
	model := &llmtest.Model{Default: "no"}
	g := newGate(t, model, 1)

	for _, meta := range []*models.Metadata{
		nil,
		{Title: "Unrelated", Keywords: []string{"biology"}},
		{Title: "No keywords"},
	} {
		d := g.Decide(context.Background(), meta, nil)
		assert.True(t, d.Relevant)
		assert.Equal(t, TierBypass, d.Tier)
	}
	assert.Zero(t, model.Calls())
}

func TestDecideKeywordMatchSkipsModel(t *testing.T) {
	model := &llmtest.Model{Default: "no"}
	g := newGate(t, model, 1)
	meta := &models.Metadata{Keywords: []string{"llm", "reasoning"}, Summary: "abstract"}

	d := g.Decide(context.Background(), meta, []string{"LLM"})

	assert.True(t, d.Relevant)
	assert.Equal(t, TierKeyword, d.Tier)
	assert.Equal(t, []string{"llm"}, d.Matched)
	assert.Zero(t, model.Calls())
}

func TestDecideNormalizesKeywords(t *testing.T) {
	g := newGate(t, &llmtest.Model{Default: "no"}, 1)
	meta := &models.Metadata{Keywords: []string{"  Graph Neural Networks "}}

	d := g.Decide(context.Background(), meta, []string{"graph neural networks"})
	assert.True(t, d.Relevant)
	assert.Equal(t, TierKeyword, d.Tier)
}

func TestDecideThreshold(t *testing.T) {
	model := &llmtest.Model{Default: "no"}
	g := newGate(t, model, 2)
	meta := &models.Metadata{Keywords: []string{"llm", "rl"}, Summary: "s"}

	d := g.Decide(context.Background(), meta, []string{"llm", "vision"})
	assert.False(t, d.Relevant)
	assert.Equal(t, TierModel, d.Tier)
	assert.Equal(t, 1, model.Calls())

	d = g.Decide(context.Background(), meta, []string{"llm", "rl"})
	assert.True(t, d.Relevant)
	assert.Equal(t, TierKeyword, d.Tier)
	assert.Equal(t, 1, model.Calls())
}

func TestDecideModelFallback(t *testing.T) {
	tests := []struct {
		name     string
		model    *llmtest.Model
		meta     *models.Metadata
		relevant bool
		calls    int
	}{
		{
			name:     "no keywords, model says yes",
			model:    &llmtest.Model{Default: "Yes."},
			meta:     &models.Metadata{Title: "T", Summary: "About LLMs."},
			relevant: true,
			calls:    1,
		},
		{
			name:     "keyword miss, model says yes",
			model:    &llmtest.Model{Default: "YES, it discusses agents"},
			meta:     &models.Metadata{Keywords: []string{"vision"}, Summary: "Agents."},
			relevant: true,
			calls:    1,
		},
		{
			name:     "model says no",
			model:    &llmtest.Model{Default: "no"},
			meta:     &models.Metadata{Summary: "Cooking."},
			relevant: false,
			calls:    1,
		},
		{
			name:     "ai summary used when summary empty",
			model:    &llmtest.Model{Default: "true"},
			meta:     &models.Metadata{AISummary: "LLM agents."},
			relevant: true,
			calls:    1,
		},
		{
			name:     "missing abstract fails closed",
			model:    &llmtest.Model{Default: "yes"},
			meta:     &models.Metadata{Title: "Only a title"},
			relevant: false,
			calls:    0,
		},
		{
			name:     "nil metadata fails closed",
			model:    &llmtest.Model{Default: "yes"},
			meta:     nil,
			relevant: false,
			calls:    0,
		},
		{
			name:     "malformed answer fails closed",
			model:    &llmtest.Model{Default: "Possibly relevant"},
			meta:     &models.Metadata{Summary: "s"},
			relevant: false,
			calls:    1,
		},
		{
			name:     "call failure fails closed",
			model:    &llmtest.Model{Rules: []llmtest.Rule{{Match: "", Err: errors.New("HTTP 500")}}},
			meta:     &models.Metadata{Summary: "s"},
			relevant: false,
			calls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGate(t, tt.model, 1)
			d := g.Decide(context.Background(), tt.meta, []string{"LLM"})
			assert.Equal(t, tt.relevant, d.Relevant, d.Reason)
			assert.Equal(t, TierModel, d.Tier)
			assert.Equal(t, tt.calls, tt.model.Calls())
		})
	}
}

func TestDecidePromptCarriesKeywordsAndAbstract(t *testing.T) {
	model := &llmtest.Model{Default: "yes"}
	g := newGate(t, model, 1)

	g.Decide(context.Background(), &models.Metadata{Title: "Paper X", Summary: "We study retrieval."}, []string{"RAG", "search"})

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "RAG, search")
	assert.Contains(t, prompts[0], "Paper X")
	assert.Contains(t, prompts[0], "We study retrieval.")
}

func TestDecideWithoutModelFailsClosed(t *testing.T) {
	g := newGate(t, nil, 1)
	d := g.Decide(context.Background(), &models.Metadata{Summary: "s"}, []string{"x"})
	assert.False(t, d.Relevant)
}

func TestNewGateRequiresPrompt(t *testing.T) {
	catalogue, err := llm.ParsePrompts([]byte("chat: hi\n"))
	require.NoError(t, err)
	_, err = NewGate(nil, catalogue, 1)
	assert.Error(t, err)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "bypass", TierBypass.String())
	assert.Equal(t, "keyword", TierKeyword.String())
	assert.Equal(t, "model", TierModel.String())
}
