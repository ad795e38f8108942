package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// vocabEmbedder counts vocabulary words, one dimension per word.
type vocabEmbedder struct {
	vocab []string
	fail  bool
}

func (v vocabEmbedder) embed(text string) []float32 {
	vec := make([]float32, len(v.vocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, term := range v.vocab {
			if w == term {
				vec[i]++
			}
		}
	}
	return vec
}

func (v vocabEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if v.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = v.embed(t)
	}
	return out, nil
}

func (v vocabEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	return v.embed(text), nil
}

var testVocab = vocabEmbedder{vocab: []string{"transformer", "attention", "diffusion", "image", "audio"}}

func doc(text, hash string) schema.Document {
	return schema.Document{PageContent: text, Metadata: map[string]any{"content_hash": hash}}
}

func TestSimilaritySearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testVocab)

	ids, err := store.AddDocuments(ctx, []schema.Document{
		doc("diffusion image image", "h1"),
		doc("transformer attention", "h1"),
		doc("transformer attention attention", "h1"),
	})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	got, err := store.SimilaritySearch(ctx, "attention", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "transformer attention attention", got[0].PageContent)
	assert.Equal(t, "transformer attention", got[1].PageContent)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestSimilaritySearchFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testVocab)

	_, err := store.AddDocuments(ctx, []schema.Document{
		doc("transformer attention", "h1"),
		doc("transformer attention", "h2"),
		doc("diffusion image", "h2"),
	})
	require.NoError(t, err)

	got, err := store.SimilaritySearch(ctx, "transformer", 10,
		vectorstores.WithFilters(map[string]any{"content_hash": "h2"}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Equal(t, "h2", d.Metadata["content_hash"])
	}

	got, err = store.SimilaritySearch(ctx, "transformer", 10,
		vectorstores.WithFilters(map[string]string{"content_hash": "missing"}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSimilaritySearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testVocab)
	_, err := store.AddDocuments(ctx, []schema.Document{doc("audio", "h1")})
	require.NoError(t, err)

	t.Run("non-positive k", func(t *testing.T) {
		for _, k := range []int{0, -3} {
			got, err := store.SimilaritySearch(ctx, "audio", k)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
	})

	t.Run("unsupported filter", func(t *testing.T) {
		_, err := store.SimilaritySearch(ctx, "audio", 1, vectorstores.WithFilters("h1"))
		assert.ErrorIs(t, err, ErrUnsupportedFilter)
	})

	t.Run("score threshold", func(t *testing.T) {
		got, err := store.SimilaritySearch(ctx, "diffusion", 5, vectorstores.WithScoreThreshold(0.5))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no embedder", func(t *testing.T) {
		_, err := NewMemory(nil).SimilaritySearch(ctx, "audio", 1)
		assert.ErrorIs(t, err, ErrNoEmbedder)
	})
}

func TestAddDocumentsEmbeddingFailureStoresNothing(t *testing.T) {
	store := NewMemory(vocabEmbedder{vocab: testVocab.vocab, fail: true})

	_, err := store.AddDocuments(context.Background(), []schema.Document{doc("audio", "h1")})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestAddDocumentsDeduplicater(t *testing.T) {
	store := NewMemory(testVocab)
	skip := func(_ context.Context, d schema.Document) bool { return d.PageContent == "audio" }

	ids, err := store.AddDocuments(context.Background(),
		[]schema.Document{doc("audio", "h1"), doc("image", "h1")},
		vectorstores.WithDeduplicater(skip))
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, store.Len())
}

func TestResultsDoNotAliasStoredMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testVocab)
	_, err := store.AddDocuments(ctx, []schema.Document{doc("audio", "h1")})
	require.NoError(t, err)

	got, err := store.SimilaritySearch(ctx, "audio", 1)
	require.NoError(t, err)
	got[0].Metadata["content_hash"] = "tampered"

	again, err := store.SimilaritySearch(ctx, "audio", 1)
	require.NoError(t, err)
	assert.Equal(t, "h1", again[0].Metadata["content_hash"])
}

func TestConcurrentAddAndSearchKeepPartitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(testVocab)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		hash := fmt.Sprintf("h%d", i%2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.AddDocuments(ctx, []schema.Document{doc("transformer attention", hash)})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			got, err := store.SimilaritySearch(ctx, "transformer", 20,
				vectorstores.WithFilters(map[string]any{"content_hash": hash}))
			assert.NoError(t, err)
			for _, d := range got {
				assert.Equal(t, hash, d.Metadata["content_hash"])
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, store.Len())
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0, cosine(a, norm(a), b, norm(b)), 1e-6)
	assert.InDelta(t, 1, cosine(a, norm(a), a, norm(a)), 1e-6)
	assert.Zero(t, cosine(a, norm(a), []float32{1, 0, 0}, 1))
	assert.Zero(t, cosine(a, norm(a), []float32{0, 0}, 0))
}
