// Package config loads Research Radar configuration and sets up logging.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Provider names accepted for generation and embeddings.
const (
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderGoogle      = "google"
	ProviderBedrock     = "bedrock"
	ProviderHuggingFace = "huggingface"
)

// Config holds all configuration values.
type Config struct {
	// Generation
	LLMProvider string
	LLMModel    string

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Provider credentials and endpoints
	OllamaHost       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	HuggingFaceToken string
	AWSRegion        string

	// Source adapters
	YouTubeAPIKey string
	YtDlpPath     string

	// Pipeline tuning
	RelevanceMinMatches   int
	IndexBatchSize        int
	IndexBatchesPerSecond float64
	QueryCacheSize        int

	// Surfaces
	HTTPAddr string
	MCPAddr  string

	// SurrealDB run history (disabled when URL is empty)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Watchlist
	WatchlistSchedule string
	Watchlist         []string
	WatchlistKeywords []string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// keys maps viper keys to the environment variables that override them.
var keys = map[string]string{
	"llm.provider":             "LLM_PROVIDER",
	"llm.model":                "LLM_MODEL",
	"embeddings.provider":      "EMBEDDINGS_PROVIDER",
	"embeddings.model":         "EMBEDDINGS_MODEL_NAME",
	"embeddings.dimension":     "EMBEDDINGS_DIMENSION",
	"ollama.base_url":          "OLLAMA_BASE_URL",
	"openai.api_key":           "OPENAI_API_KEY",
	"anthropic.api_key":        "ANTHROPIC_API_KEY",
	"google.api_key":           "GOOGLE_API_KEY",
	"huggingface.token":        "HUGGINGFACEHUB_API_TOKEN",
	"aws.region":               "AWS_REGION",
	"youtube.api_key":          "YOUTUBE_API_KEY",
	"ytdlp.path":               "YTDLP_PATH",
	"relevance.min_matches":    "RELEVANCE_MIN_MATCHES",
	"index.batch_size":         "INDEX_BATCH_SIZE",
	"index.batches_per_second": "INDEX_BATCHES_PER_SECOND",
	"index.query_cache_size":   "QUERY_CACHE_SIZE",
	"http.addr":                "RADAR_HTTP_ADDR",
	"mcp.addr":                 "RADAR_MCP_ADDR",
	"surrealdb.url":            "SURREALDB_URL",
	"surrealdb.namespace":      "SURREALDB_NAMESPACE",
	"surrealdb.database":       "SURREALDB_DATABASE",
	"surrealdb.user":           "SURREALDB_USER",
	"surrealdb.pass":           "SURREALDB_PASS",
	"surrealdb.auth_level":     "SURREALDB_AUTH_LEVEL",
	"watchlist.schedule":       "RADAR_WATCHLIST_SCHEDULE",
	"watchlist.ids":            "RADAR_WATCHLIST",
	"watchlist.keywords":       "RADAR_WATCHLIST_KEYWORDS",
	"log.file":                 "RADAR_LOG_FILE",
	"log.level":                "RADAR_LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("embeddings.provider", ProviderOllama)
	v.SetDefault("embeddings.model", "mxbai-embed-large")
	v.SetDefault("embeddings.dimension", 0)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("ytdlp.path", "yt-dlp")
	v.SetDefault("relevance.min_matches", 1)
	v.SetDefault("index.batch_size", 20)
	v.SetDefault("index.batches_per_second", 0.0)
	v.SetDefault("index.query_cache_size", 256)
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("mcp.addr", "127.0.0.1:5555")
	v.SetDefault("surrealdb.url", "")
	v.SetDefault("surrealdb.namespace", "radar")
	v.SetDefault("surrealdb.database", "runs")
	v.SetDefault("surrealdb.user", "root")
	v.SetDefault("surrealdb.pass", "root")
	v.SetDefault("surrealdb.auth_level", "root")
	v.SetDefault("watchlist.schedule", "")
	v.SetDefault("watchlist.ids", "")
	v.SetDefault("watchlist.keywords", "")
	v.SetDefault("log.file", "/tmp/radar.log")
	v.SetDefault("log.level", "INFO")
}

// Load reads configuration from defaults, an optional radar.yaml and the environment.
// Environment variables win over the file. A missing config file is not an error.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("radar")
	v.SetConfigType("yaml")
	if path := os.Getenv("RADAR_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "radar"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := Config{
		LLMProvider: strings.ToLower(v.GetString("llm.provider")),
		LLMModel:    v.GetString("llm.model"),

		EmbedProvider:  strings.ToLower(v.GetString("embeddings.provider")),
		EmbedModel:     v.GetString("embeddings.model"),
		EmbedDimension: v.GetInt("embeddings.dimension"),

		OllamaHost:       v.GetString("ollama.base_url"),
		OpenAIAPIKey:     v.GetString("openai.api_key"),
		AnthropicAPIKey:  v.GetString("anthropic.api_key"),
		GoogleAPIKey:     v.GetString("google.api_key"),
		HuggingFaceToken: v.GetString("huggingface.token"),
		AWSRegion:        v.GetString("aws.region"),

		YouTubeAPIKey: v.GetString("youtube.api_key"),
		YtDlpPath:     v.GetString("ytdlp.path"),

		RelevanceMinMatches:   v.GetInt("relevance.min_matches"),
		IndexBatchSize:        v.GetInt("index.batch_size"),
		IndexBatchesPerSecond: v.GetFloat64("index.batches_per_second"),
		QueryCacheSize:        v.GetInt("index.query_cache_size"),

		HTTPAddr: v.GetString("http.addr"),
		MCPAddr:  v.GetString("mcp.addr"),

		SurrealDBURL:       v.GetString("surrealdb.url"),
		SurrealDBNamespace: v.GetString("surrealdb.namespace"),
		SurrealDBDatabase:  v.GetString("surrealdb.database"),
		SurrealDBUser:      v.GetString("surrealdb.user"),
		SurrealDBPass:      v.GetString("surrealdb.pass"),
		SurrealDBAuthLevel: v.GetString("surrealdb.auth_level"),

		WatchlistSchedule: v.GetString("watchlist.schedule"),
		Watchlist:         splitList(v.GetString("watchlist.ids")),
		WatchlistKeywords: splitList(v.GetString("watchlist.keywords")),

		LogFile:  v.GetString("log.file"),
		LogLevel: parseLogLevel(v.GetString("log.level")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderBedrock:
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLMProvider)
	}
	switch c.EmbedProvider {
	case ProviderOllama, ProviderOpenAI, ProviderGoogle, ProviderHuggingFace, ProviderBedrock:
	default:
		return fmt.Errorf("unsupported embeddings provider: %q", c.EmbedProvider)
	}
	if c.IndexBatchSize <= 0 {
		return fmt.Errorf("index batch size must be positive, got %d", c.IndexBatchSize)
	}
	if c.RelevanceMinMatches <= 0 {
		return fmt.Errorf("relevance min matches must be positive, got %d", c.RelevanceMinMatches)
	}
	return nil
}

// HistoryEnabled reports whether run history should be written to SurrealDB.
func (c Config) HistoryEnabled() bool {
	return c.SurrealDBURL != ""
}

// splitList parses a comma separated list, dropping empty items.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
