// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/models"
)

// Radar is what the tools call into. *service.Radar satisfies it.
type Radar interface {
	RunForContent(ctx context.Context, contentID string, requiredKeywords []string) models.Result
	Chat(ctx context.Context, contentHash, query string) (analysis.ChatAnswer, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Radar  Radar
	Logger *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
