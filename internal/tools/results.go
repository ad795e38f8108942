package tools

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrorResult creates a tool error result, formatted as "{msg}. {hint}" when
// a hint is given. IsError is set so the calling model can see the failure
// and correct its input.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// failureHints maps fragments of run error messages to what the caller can do.
var failureHints = []struct {
	fragment string
	hint     string
}{
	{"metadata extraction failed", "Check the id: arXiv ids look like 2401.12345, YouTube ids are 11 characters"},
	{"no subtitles found", "The video has no English subtitles; try another video"},
	{"content source URL missing", "The item has no downloadable full text"},
	{"no text could be extracted", "The document has no extractable text, it may be a scanned PDF"},
	{"embedding failed", "The embedding provider is unreachable; retry later"},
	{"analysis failed", "The language model is unavailable; retry later"},
	{"run cancelled", "The request was cancelled before the run finished"},
}

// runFailureHint suggests a recovery for a failed run's error message.
func runFailureHint(errMsg string) string {
	for _, h := range failureHints {
		if strings.Contains(errMsg, h.fragment) {
			return h.hint
		}
	}
	return "Check the id and try again"
}
