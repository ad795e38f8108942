package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxArgLogLen caps the logged tool arguments.
const maxArgLogLen = 200

// DefaultSlowThreshold is the call duration above which a request is logged at WARN.
// A full summarize_paper run routinely takes tens of seconds.
const DefaultSlowThreshold = 2 * time.Minute

// LoggingMiddleware logs every request with its duration. Tool calls also log
// the tool name and raw arguments. A call is logged at
//   - ERROR when the handler failed,
//   - WARN when the tool reported an error result or ran longer than slow,
//   - DEBUG otherwise.
//
// A zero slow uses DefaultSlowThreshold.
func LoggingMiddleware(logger *slog.Logger, slow time.Duration) mcp.Middleware {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := append([]any{
				"method", method,
				"duration_ms", duration.Milliseconds(),
			}, toolAttrs(req)...)

			switch {
			case err != nil:
				logger.Error("request failed", append(attrs, "error", err.Error())...)
			case isToolError(result):
				logger.Warn("tool returned error", append(attrs, "result", resultText(result))...)
			case duration > slow:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

// toolAttrs returns the tool name and truncated arguments of a tools/call request.
func toolAttrs(req mcp.Request) []any {
	p, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	if !ok || p == nil {
		return nil
	}
	attrs := []any{"tool", p.Name}
	if len(p.Arguments) > 0 {
		attrs = append(attrs, "args", truncate(string(p.Arguments), maxArgLogLen))
	}
	return attrs
}

func isToolError(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}

func resultText(result mcp.Result) string {
	r := result.(*mcp.CallToolResult)
	for _, c := range r.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			return truncate(t.Text, maxArgLogLen)
		}
	}
	return ""
}

// truncate shortens s to maxLen bytes, adding "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
