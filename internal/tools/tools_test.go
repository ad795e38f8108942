package tools_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger creates a logger for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeRadar struct {
	chatErr error
}

func (f fakeRadar) RunForContent(_ context.Context, id string, kws []string) models.Result {
	switch id {
	case "0000.00000":
		return models.Result{ContentID: id, Status: models.StatusFailed, Error: "metadata extraction failed"}
	default:
		return models.Result{
			ContentID:   id,
			Title:       "Sparse Mixtures",
			Summary:     "It routes tokens.",
			Analysis:    map[string]string{"B question": "b", "A question": "a"},
			ContentHash: "abc123",
			Status:      models.StatusCompleted,
		}
	}
}

func (f fakeRadar) Chat(_ context.Context, hash, query string) (analysis.ChatAnswer, error) {
	if f.chatErr != nil {
		return analysis.ChatAnswer{}, f.chatErr
	}
	return analysis.ChatAnswer{Answer: "because " + hash, Sources: []string{"Intro", "Methods"}}, nil
}

// connect runs a server with all tools on in-memory transports and returns a client session.
func connect(t *testing.T, radar tools.Radar) (*mcp.ClientSession, context.Context) {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-radar", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, &tools.Dependencies{Radar: radar, Logger: testLogger()})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = session.Close() })
	return session, ctx
}

func callText(t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be TextContent")
	return result, text.Text
}

func TestListTools(t *testing.T) {
	session, ctx := connect(t, fakeRadar{})

	result, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ping", "summarize_paper", "chat_with_paper"}, names)
}

func TestPingTool(t *testing.T) {
	session, ctx := connect(t, fakeRadar{})

	result, text := callText(t, ctx, session, "ping", map[string]any{})
	assert.Equal(t, "pong", text)
	assert.False(t, result.IsError)

	_, text = callText(t, ctx, session, "ping", map[string]any{"echo": "hello world"})
	assert.Equal(t, "hello world", text)
}

func TestSummarizeTool(t *testing.T) {
	session, ctx := connect(t, fakeRadar{})

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		contains  []string
	}{
		{
			name:     "report",
			args:     map[string]any{"paper_id": "2401.12345", "keywords": []string{"moe"}},
			contains: []string{"# Sparse Mixtures", "hash_id: abc123", "## Summary", "It routes tokens."},
		},
		{
			name:      "blank id",
			args:      map[string]any{"paper_id": "  "},
			wantError: true,
			contains:  []string{"paper_id cannot be empty"},
		},
		{
			name:      "failed run",
			args:      map[string]any{"paper_id": "0000.00000"},
			wantError: true,
			contains:  []string{"metadata extraction failed", "arXiv ids look like 2401.12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, text := callText(t, ctx, session, "summarize_paper", tt.args)
			assert.Equal(t, tt.wantError, result.IsError)
			for _, s := range tt.contains {
				assert.Contains(t, text, s)
			}
		})
	}
}

func TestSummarizeReportOrdersQuestions(t *testing.T) {
	session, ctx := connect(t, fakeRadar{})

	result, text := callText(t, ctx, session, "summarize_paper", map[string]any{"paper_id": "2401.12345"})
	require.False(t, result.IsError)
	assert.Less(t, strings.Index(text, "### A question"), strings.Index(text, "### B question"))
	assert.NotNil(t, result.StructuredContent)
}

func TestChatTool(t *testing.T) {
	session, ctx := connect(t, fakeRadar{})

	result, text := callText(t, ctx, session, "chat_with_paper", map[string]any{"query": "why?", "hash_id": "abc123"})
	assert.False(t, result.IsError)
	assert.Equal(t, "because abc123\n\nSources: Intro, Methods", text)

	result, text = callText(t, ctx, session, "chat_with_paper", map[string]any{"query": "why?", "hash_id": ""})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "hash_id cannot be empty")
}

func TestChatToolFailure(t *testing.T) {
	session, ctx := connect(t, fakeRadar{chatErr: errors.New("model offline")})

	result, text := callText(t, ctx, session, "chat_with_paper", map[string]any{"query": "why?", "hash_id": "abc123"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "Chat failed")
}
