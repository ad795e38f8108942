// Package embedding adds query-side caching on top of any langchaingo embedder.
package embedding

import (
	"context"
	"log/slog"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
)

// DefaultCacheSize is used when a non-positive size is requested.
const DefaultCacheSize = 256

// Cached memoizes EmbedQuery results. The analyzer asks the same fixed
// questions for every item, so query vectors repeat across runs.
// EmbedDocuments always goes to the underlying embedder.
type Cached struct {
	next    embeddings.Embedder
	queries *lru.Cache[string, []float32]
}

var _ embeddings.Embedder = (*Cached)(nil)

// NewCached wraps next with an LRU of the given size.
func NewCached(next embeddings.Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, []float32](size)
	return &Cached{next: next, queries: cache}
}

// EmbedDocuments passes through to the wrapped embedder.
func (c *Cached) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

// EmbedQuery returns a cached vector when the exact query was seen before.
// Failed lookups are not cached. Callers get their own copy of the vector.
func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.queries.Get(text); ok {
		slog.Debug("query embedding cache hit", "text_len", len(text))
		return slices.Clone(v), nil
	}
	v, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.queries.Add(text, slices.Clone(v))
	return v, nil
}

// Len returns the number of cached query vectors.
func (c *Cached) Len() int {
	return c.queries.Len()
}
