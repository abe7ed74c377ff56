package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Qdrant connection
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Cohere embeddings
	CohereAPIKey string
	CohereModel  string

	// OpenRouter generation
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	// MongoDB user store
	MongoURL      string
	MongoDatabase string

	// Ingestion sources
	ContentDir string
	SitemapURL string
	MaxURLs    int

	// Embedding / indexing
	EmbedDimension  int
	EmbedBatchSize  int
	UpsertBatchSize int

	// Retrieval
	TopK            int
	MaxChunkLength  int
	MaxContextChars int

	// Timeouts and pacing
	RequestTimeout time.Duration
	FetchDelay     time.Duration
	JobTTL         time.Duration

	// When set, error responses include upstream details.
	DevMode bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "3001"),

		QdrantURL:        envOr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "course_content"),

		CohereAPIKey: os.Getenv("COHERE_API_KEY"),
		CohereModel:  envOr("COHERE_MODEL", "embed-english-v3.0"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   envOr("OPENROUTER_MODEL", "meta-llama/llama-3.2-3b-instruct"),
		OpenRouterBaseURL: envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),

		MongoURL:      os.Getenv("MONGODB_URL"),
		MongoDatabase: os.Getenv("MONGODB_DATABASE"),

		ContentDir: envOr("CONTENT_DIR", "./docs"),
		SitemapURL: os.Getenv("SITEMAP_URL"),
		MaxURLs:    envInt("MAX_URLS", 50),

		EmbedDimension:  envInt("EMBED_DIMENSION", 1024),
		EmbedBatchSize:  envInt("EMBED_BATCH_SIZE", 50),
		UpsertBatchSize: envInt("UPSERT_BATCH_SIZE", 50),

		TopK:            envInt("TOP_K", 5),
		MaxChunkLength:  envInt("MAX_CHUNK_LENGTH", 1000),
		MaxContextChars: envInt("MAX_CONTEXT_CHARS", 0),

		RequestTimeout: envDuration("REQUEST_TIMEOUT", 10*time.Second),
		FetchDelay:     envDuration("FETCH_DELAY", 1*time.Second),
		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),

		DevMode: envBool("DEV_MODE", false),
	}

	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 50
	}
	if cfg.EmbedDimension <= 0 {
		cfg.EmbedDimension = 1024
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 50
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 50
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxChunkLength <= 0 {
		cfg.MaxChunkLength = 1000
	}
	if cfg.MaxContextChars <= 0 {
		// Bounded by what retrieval can produce at most.
		cfg.MaxContextChars = cfg.TopK * cfg.MaxChunkLength
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.FetchDelay < 0 {
		cfg.FetchDelay = time.Second
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks the minimum a running service needs. Embedding, generation
// and user-store credentials are optional: their absence switches the
// corresponding component into a documented degraded mode instead of
// preventing startup.
func (c Config) Validate() error {
	if c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	if c.QdrantCollection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
