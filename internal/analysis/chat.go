package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/research-radar/internal/llm"
	"github.com/tmc/langchaingo/chains"
)

// ChatK is the number of chunks retrieved for a chat question.
const ChatK = 4

// NoChatContext is returned when the index holds nothing relevant.
const NoChatContext = "I couldn't find any relevant information in this paper to answer your question."

// UnknownSource stands in for chunks indexed without a source locator.
const UnknownSource = "unknown"

// ChatAnswer is a grounded answer plus the sources it drew from.
type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Chat answers query from the chunks indexed under contentHash.
// Unlike analysis, a generation failure is returned to the caller.
func (a *Analyzer) Chat(ctx context.Context, contentHash, query string) (ChatAnswer, error) {
	chunks := a.index.Search(ctx, query, ChatK, contentHash)
	if len(chunks) == 0 {
		slog.Info("chat found no context", "content_hash", contentHash)
		return ChatAnswer{Answer: NoChatContext, Sources: []string{}}, nil
	}

	chain, err := a.chain(llm.PromptChat)
	if err != nil {
		return ChatAnswer{}, err
	}

	out, err := chains.Predict(ctx, chain, map[string]any{
		"context":  joinChunks(chunks),
		"question": query,
	})
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("generate chat answer: %w", err)
	}

	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source
		if sources[i] == "" {
			sources[i] = UnknownSource
		}
	}
	return ChatAnswer{Answer: strings.TrimSpace(out), Sources: sources}, nil
}
