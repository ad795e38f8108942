package tools

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResult(t *testing.T) {
	res := ErrorResult("query cannot be empty", "Ask a question")
	require.Len(t, res.Content, 1)
	assert.True(t, res.IsError)
	assert.Equal(t, "query cannot be empty. Ask a question", res.Content[0].(*mcp.TextContent).Text)

	res = ErrorResult("boom", "")
	assert.Equal(t, "boom", res.Content[0].(*mcp.TextContent).Text)
}

func TestRunFailureHint(t *testing.T) {
	tests := []struct {
		errMsg string
		want   string
	}{
		{"no subtitles found for video dQw4w9WgXcQ", "The video has no English subtitles; try another video"},
		{"content extraction failed for x: no text could be extracted", "The document has no extractable text, it may be a scanned PDF"},
		{"embedding failed: connection refused", "The embedding provider is unreachable; retry later"},
		{"run cancelled before analyze: context canceled", "The request was cancelled before the run finished"},
		{"something new", "Check the id and try again"},
	}
	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			assert.Equal(t, tt.want, runFailureHint(tt.errMsg))
		})
	}
}
