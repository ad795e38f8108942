package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo string `json:"echo,omitempty" jsonschema:"Text to echo back"`
}

// RegisterAll registers all tools with the MCP server.
// Call it after server creation and before Run.
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Check the radar is reachable; answers pong or echoes input",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		if input.Echo != "" {
			return TextResult(input.Echo), nil, nil
		}
		return TextResult("pong"), nil, nil
	})

	// Full pipeline: metadata, relevance gate, indexing, analysis, summary
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_paper",
		Description: "Analyze a paper (arXiv id) or video (YouTube id or URL) and return its summary. Optional keywords gate the run on relevance.",
	}, NewSummarizeHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat_with_paper",
		Description: "Answer a question about an item previously analyzed with summarize_paper, using its hash_id",
	}, NewChatHandler(deps))
}
