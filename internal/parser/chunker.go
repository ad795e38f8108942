package parser

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkResult represents a chunk of content.
type ChunkResult struct {
	Content     string
	Position    int
	HeadingPath string // Section context
}

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// Size is the target chunk length in runes.
	Size int
	// Overlap is the rune overlap between neighbouring chunks of one section.
	Overlap int
}

// DefaultChunkConfig returns a 1500 rune window with 20% overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1500,
		Overlap: 300,
	}
}

// Chunk splits text in two passes: first into heading-scoped sections, then
// each section with a recursive character splitter. Empty sections yield
// no chunks, so whitespace-only input returns nil.
func Chunk(text string, config ChunkConfig) ([]ChunkResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.Size),
		textsplitter.WithChunkOverlap(config.Overlap),
	)

	doc := ParseMarkdown(text)

	var chunks []ChunkResult
	for _, section := range doc.Sections {
		if section.Content == "" {
			continue
		}
		parts, err := splitter.SplitText(section.Content)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, ChunkResult{
				Content:     part,
				Position:    len(chunks),
				HeadingPath: section.Path,
			})
		}
	}
	return chunks, nil
}
