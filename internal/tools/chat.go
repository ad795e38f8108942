package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ChatInput defines the input schema for the chat_with_paper tool.
type ChatInput struct {
	Query  string `json:"query" jsonschema:"required,Question about the analyzed item"`
	HashID string `json:"hash_id" jsonschema:"required,hash_id returned by summarize_paper"`
}

// NewChatHandler answers questions over an indexed item.
func NewChatHandler(deps *Dependencies) mcp.ToolHandlerFor[ChatInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Query) == "" {
			return ErrorResult("query cannot be empty", "Ask a question about the paper"), nil, nil
		}
		if strings.TrimSpace(input.HashID) == "" {
			return ErrorResult("hash_id cannot be empty", "Run summarize_paper first and pass its hash_id"), nil, nil
		}

		answer, err := deps.Radar.Chat(ctx, input.HashID, input.Query)
		if err != nil {
			deps.logger().Error("chat failed", "hash_id", input.HashID, "error", err)
			return ErrorResult("Chat failed", "The language model may be unavailable"), nil, nil
		}

		text := answer.Answer
		if len(answer.Sources) > 0 {
			text += "\n\nSources: " + strings.Join(answer.Sources, ", ")
		}
		return TextResult(text), answer, nil
	}
}
