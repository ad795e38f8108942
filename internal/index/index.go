// Package index chunks extracted text into a shared vector store and serves
// similarity search restricted to one content hash.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/parser"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"golang.org/x/time/rate"
)

// Metadata keys stamped on every indexed chunk.
const (
	MetaContentHash = "content_hash"
	MetaSource      = "source"
	MetaHeadingPath = "heading_path"
)

// DefaultBatchSize is the number of chunks sent to the store per request.
const DefaultBatchSize = 20

// ErrEmbedding is returned when a batch could not be embedded or stored.
var ErrEmbedding = errors.New("embedding failed")

// Options configures an Index.
type Options struct {
	BatchSize int
	// BatchesPerSecond paces sequential batches; 0 means no pacing.
	BatchesPerSecond float64
	Chunking         parser.ChunkConfig
	Metrics          *metrics.Collector
}

// Index is the retrieval index shared by every run in the process.
type Index struct {
	store     vectorstores.VectorStore
	batchSize int
	limiter   *rate.Limiter
	chunking  parser.ChunkConfig
	metrics   *metrics.Collector
}

// New creates an Index over store. The store must be safe for concurrent use.
func New(store vectorstores.VectorStore, opts Options) *Index {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Chunking.Size <= 0 {
		opts.Chunking = parser.DefaultChunkConfig()
	}
	idx := &Index{
		store:     store,
		batchSize: opts.BatchSize,
		chunking:  opts.Chunking,
		metrics:   opts.Metrics,
	}
	if opts.BatchesPerSecond > 0 {
		idx.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}
	return idx
}

// ContentHash returns the hex SHA-256 digest identifying text in the index.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Index chunks text, stamps every chunk with contentHash and sourceURL, and
// adds the chunks in sequential batches. Text without any content is a no-op.
func (i *Index) Index(ctx context.Context, contentHash, sourceURL, text string) error {
	chunks, err := parser.Chunk(text, i.chunking)
	if err != nil {
		return fmt.Errorf("chunk text: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("nothing to index", "content_hash", contentHash)
		return nil
	}

	docs := make([]schema.Document, len(chunks))
	for n, c := range chunks {
		meta := map[string]any{
			MetaContentHash: contentHash,
			MetaSource:      sourceURL,
		}
		if c.HeadingPath != "" {
			meta[MetaHeadingPath] = c.HeadingPath
		}
		docs[n] = schema.Document{PageContent: c.Content, Metadata: meta}
	}

	batches := (len(docs) + i.batchSize - 1) / i.batchSize
	slog.Info("indexing content", "content_hash", contentHash, "chunks", len(docs), "batches", batches)

	for b := 0; b < batches; b++ {
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("index batch %d/%d: %w", b+1, batches, err)
			}
		}

		end := min((b+1)*i.batchSize, len(docs))
		start := time.Now()
		_, err := i.store.AddDocuments(ctx, docs[b*i.batchSize:end])
		i.metrics.RecordTiming(metrics.OpIndexBatch, time.Since(start), err)
		if err != nil {
			slog.Error("index batch failed", "content_hash", contentHash, "batch", b+1, "batches", batches, "error", err)
			return fmt.Errorf("%w: batch %d/%d: %w", ErrEmbedding, b+1, batches, err)
		}
		slog.Debug("index batch stored", "content_hash", contentHash, "batch", b+1, "batches", batches)
	}
	return nil
}

// Search returns up to k chunks most similar to query. When contentHash is
// set only chunks carrying that hash are considered. Search never fails:
// a non-positive k, no matches or a store error all yield an empty result.
func (i *Index) Search(ctx context.Context, query string, k int, contentHash string) []models.Chunk {
	if k <= 0 {
		return nil
	}

	var opts []vectorstores.Option
	if contentHash != "" {
		opts = append(opts, vectorstores.WithFilters(map[string]any{MetaContentHash: contentHash}))
	}

	start := time.Now()
	docs, err := i.store.SimilaritySearch(ctx, query, k, opts...)
	i.metrics.RecordTiming(metrics.OpSearch, time.Since(start), err)
	if err != nil {
		slog.Warn("search failed", "content_hash", contentHash, "k", k, "error", err)
		return nil
	}

	chunks := make([]models.Chunk, 0, len(docs))
	for _, d := range docs {
		c := models.Chunk{
			Text:        d.PageContent,
			ContentHash: metaString(d.Metadata, MetaContentHash),
			HeadingPath: metaString(d.Metadata, MetaHeadingPath),
			Source:      metaString(d.Metadata, MetaSource),
			Score:       d.Score,
		}
		// Stores that ignore filters must not leak other items' chunks.
		if contentHash != "" && c.ContentHash != contentHash {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
