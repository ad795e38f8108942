package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/research-radar/internal/analysis"
	"github.com/raphaelgruber/research-radar/internal/config"
	"github.com/raphaelgruber/research-radar/internal/db"
	"github.com/raphaelgruber/research-radar/internal/embedding"
	"github.com/raphaelgruber/research-radar/internal/index"
	"github.com/raphaelgruber/research-radar/internal/llm"
	"github.com/raphaelgruber/research-radar/internal/metrics"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/raphaelgruber/research-radar/internal/relevance"
	"github.com/raphaelgruber/research-radar/internal/sources"
	"github.com/raphaelgruber/research-radar/internal/vectorstore"
	"github.com/raphaelgruber/research-radar/internal/workflow"
)

// Sources returns the production adapters for every source type.
func Sources(cfg config.Config) map[models.SourceType]workflow.Source {
	return map[models.SourceType]workflow.Source{
		models.SourcePaper: {
			Metadata: sources.NewPaperMetadata(),
			Content:  sources.NewPaperContent(),
		},
		models.SourceVideo: {
			Metadata: &sources.VideoMetadata{APIKey: cfg.YouTubeAPIKey, YtDlp: cfg.YtDlpPath, Run: sources.ExecRunner},
			Content:  sources.NewVideoContent(cfg.YtDlpPath),
		},
	}
}

// Build wires providers, the shared index, the engine and the optional
// history store from cfg. Close the returned Radar when done.
func Build(ctx context.Context, cfg config.Config) (*Radar, error) {
	collector := metrics.NewCollector()

	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	catalogue, err := llm.LoadPrompts()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	store := vectorstore.NewMemory(embedding.NewCached(embedder, cfg.QueryCacheSize))
	idx := index.New(store, index.Options{
		BatchSize:        cfg.IndexBatchSize,
		BatchesPerSecond: cfg.IndexBatchesPerSecond,
		Metrics:          collector,
	})

	gate, err := relevance.NewGate(model, catalogue, cfg.RelevanceMinMatches)
	if err != nil {
		return nil, fmt.Errorf("create relevance gate: %w", err)
	}
	analyzer := analysis.New(idx, model, catalogue)

	engine, err := workflow.New(workflow.Deps{
		Sources:  Sources(cfg),
		Gate:     gate,
		Index:    idx,
		Analyzer: analyzer,
		Metrics:  collector,
	})
	if err != nil {
		return nil, err
	}

	radar := New(engine, analyzer, nil, collector)

	if cfg.HistoryEnabled() {
		client, err := openHistory(ctx, cfg)
		if err != nil {
			slog.Warn("run history disabled", "error", err)
		} else {
			radar.history = client
			radar.closers = append(radar.closers, client.Close)
		}
	}

	slog.Info("radar ready",
		"llm", cfg.LLMProvider+"/"+model.Model(),
		"embeddings", cfg.EmbedProvider+"/"+embedder.Model(),
		"history", radar.HistoryEnabled())
	return radar, nil
}

func openHistory(ctx context.Context, cfg config.Config) (*db.Client, error) {
	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return client, nil
}
