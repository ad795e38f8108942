// Package analysis answers a fixed set of questions about an indexed item,
// summarizes the answers and serves follow-up chat over the same index.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/research-radar/internal/llm"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
)

// Placeholder texts recorded instead of generated output.
const (
	AnswerNotFound     = "Data not found in paper."
	AnswerFailed       = "Error generating answer."
	NoAnalysis         = "No analysis data available."
	SummaryFailed      = "Error generating summary"
	SummaryUnavailable = "Could not load summary prompt"
)

// QuestionK is the number of chunks retrieved per analytical question.
const QuestionK = 15

// DefaultQuestions is the fixed, ordered question list.
var DefaultQuestions = []string{
	"What problem does the paper address?",
	"Why is this problem important?",
	"What is the main claim or conclusion?",
	"What is the key insight of the paper?",
}

// ErrNoChain is returned when the analysis chain cannot be built.
var ErrNoChain = errors.New("analysis chain unavailable")

// Searcher retrieves chunks for one content hash.
type Searcher interface {
	Search(ctx context.Context, query string, k int, contentHash string) []models.Chunk
}

// Analyzer runs retrieval-augmented generation over the index.
type Analyzer struct {
	index     Searcher
	model     llms.Model
	catalogue *llm.Prompts
	questions []string
}

// New creates an Analyzer. Missing prompts surface when the corresponding
// operation runs, matching how each operation degrades.
func New(index Searcher, model llms.Model, catalogue *llm.Prompts) *Analyzer {
	return &Analyzer{
		index:     index,
		model:     model,
		catalogue: catalogue,
		questions: DefaultQuestions,
	}
}

// Questions returns the question list in order.
func (a *Analyzer) Questions() []string {
	return append([]string(nil), a.questions...)
}

func (a *Analyzer) chain(name string) (*chains.LLMChain, error) {
	if a.model == nil {
		return nil, fmt.Errorf("%w: no language model", ErrNoChain)
	}
	tmpl, err := a.catalogue.Template(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoChain, err)
	}
	return chains.NewLLMChain(a.model, tmpl), nil
}

// Analyze answers every question for contentHash. Each question is handled
// on its own: missing context or a failed generation records a placeholder
// and the loop moves on. Only a chain that cannot be built fails the call.
func (a *Analyzer) Analyze(ctx context.Context, contentHash string) (models.Analysis, error) {
	chain, err := a.chain(llm.PromptAnalysis)
	if err != nil {
		slog.Error("failed to build analysis chain", "error", err)
		return nil, err
	}

	results := make(models.Analysis, 0, len(a.questions))
	for _, question := range a.questions {
		results = append(results, a.answer(ctx, chain, contentHash, question))
	}

	if failed := results.Failed(); failed > 0 {
		slog.Warn("analysis finished with placeholders", "content_hash", contentHash, "failed", failed, "total", len(results))
	} else {
		slog.Info("analysis finished", "content_hash", contentHash, "questions", len(results))
	}
	return results, nil
}

func (a *Analyzer) answer(ctx context.Context, chain chains.Chain, contentHash, question string) models.QuestionResult {
	chunks := a.index.Search(ctx, question, QuestionK, contentHash)
	contextText := joinChunks(chunks)
	if contextText == "" {
		slog.Warn("no context found", "question", question, "content_hash", contentHash)
		return models.QuestionResult{Question: question, Answer: AnswerNotFound, Failure: models.FailureNoContext}
	}

	slog.Debug("generating answer", "question", question, "chunks", len(chunks))
	out, err := chains.Predict(ctx, chain, map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		slog.Error("answer generation failed", "question", question, "error", err)
		return models.QuestionResult{
			Question: question,
			Answer:   AnswerFailed,
			Failure:  models.FailureGeneration,
			Detail:   err.Error(),
		}
	}
	return models.QuestionResult{Question: question, Answer: strings.TrimSpace(out)}
}

// FormatAnalysis renders the answers as "Question: ...\nAnswer: ...\n\n" blocks.
func FormatAnalysis(analysis models.Analysis) string {
	if len(analysis) == 0 {
		return NoAnalysis
	}
	var sb strings.Builder
	for _, q := range analysis {
		fmt.Fprintf(&sb, "Question: %s\nAnswer: %s\n\n", q.Question, q.Answer)
	}
	return sb.String()
}

// Summarize condenses the answers into one paragraph. It never fails:
// an empty analysis returns NoAnalysis without calling the model, and
// generation problems return a fixed fallback.
func (a *Analyzer) Summarize(ctx context.Context, analysis models.Analysis) string {
	if len(analysis) == 0 {
		return NoAnalysis
	}

	chain, err := a.chain(llm.PromptSummary)
	if err != nil {
		slog.Error("could not load summary prompt", "error", err)
		return SummaryUnavailable
	}

	out, err := chains.Predict(ctx, chain, map[string]any{"context_str": FormatAnalysis(analysis)})
	if err != nil {
		slog.Error("summary generation failed", "error", err)
		return SummaryFailed
	}
	return strings.TrimSpace(out)
}

func joinChunks(chunks []models.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}
