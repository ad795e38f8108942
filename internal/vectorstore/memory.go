// Package vectorstore provides an in-process langchaingo vector store.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

var (
	// ErrNoEmbedder is returned when neither the store nor the call options carry an embedder.
	ErrNoEmbedder = errors.New("vectorstore: no embedder configured")
	// ErrUnsupportedFilter is returned for filter values other than metadata maps.
	ErrUnsupportedFilter = errors.New("vectorstore: unsupported filter type")
)

type entry struct {
	id   string
	doc  schema.Document
	vec  []float32
	norm float64
}

// Memory is a process-wide collection searched by cosine similarity.
// Writers take the lock only to append, so a slow embedding call never blocks
// searches. Entries live until the process exits.
type Memory struct {
	embedder embeddings.Embedder

	mu      sync.RWMutex
	entries []entry
}

var _ vectorstores.VectorStore = (*Memory)(nil)

// NewMemory creates an empty store that embeds with embedder.
func NewMemory(embedder embeddings.Embedder) *Memory {
	return &Memory{embedder: embedder}
}

// AddDocuments embeds docs and appends them to the collection.
func (m *Memory) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := m.options(options)
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}

	if opts.Deduplicater != nil {
		kept := docs[:0:0]
		for _, doc := range docs {
			if !opts.Deduplicater(ctx, doc) {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("vectorstore: got %d vectors for %d documents", len(vectors), len(docs))
	}

	added := make([]entry, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.New().String()
		added[i] = entry{
			id:   ids[i],
			doc:  schema.Document{PageContent: doc.PageContent, Metadata: maps.Clone(doc.Metadata)},
			vec:  vectors[i],
			norm: norm(vectors[i]),
		}
	}

	m.mu.Lock()
	m.entries = append(m.entries, added...)
	m.mu.Unlock()

	return ids, nil
}

// SimilaritySearch returns up to numDocuments documents ordered by descending
// cosine similarity. Filters must be a map of metadata key to exact value;
// every pair has to match. A non-positive numDocuments returns nothing.
func (m *Memory) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, nil
	}
	opts := m.options(options)
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	filter, err := toFilter(opts.Filters)
	if err != nil {
		return nil, err
	}

	qvec, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	qnorm := norm(qvec)

	type scored struct {
		doc   schema.Document
		score float32
	}
	var hits []scored

	m.mu.RLock()
	for _, e := range m.entries {
		if !matches(e.doc.Metadata, filter) {
			continue
		}
		score := cosine(qvec, qnorm, e.vec, e.norm)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, scored{doc: e.doc, score: score})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}

	out := make([]schema.Document, len(hits))
	for i, h := range hits {
		out[i] = schema.Document{
			PageContent: h.doc.PageContent,
			Metadata:    maps.Clone(h.doc.Metadata),
			Score:       h.score,
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) options(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{Embedder: m.embedder}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

func toFilter(f any) (map[string]any, error) {
	switch v := f.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFilter, f)
	}
}

func matches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for zero vectors and mismatched dimensions.
func cosine(a []float32, anorm float64, b []float32, bnorm float64) float32 {
	if len(a) != len(b) || anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (anorm * bnorm))
}
