// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from its environment.
type Config struct {
	HTTPAddr string

	Postgres   PostgresConfig
	Qdrant     QdrantConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	S3         S3Config
	ClickHouse ClickHouseConfig

	Embedding  EmbeddingConfig
	Extraction ExtractionConfig
	Chunking   ChunkingConfig

	JWTSecret string
}

type PostgresConfig struct {
	DSN string
}

type QdrantConfig struct {
	DSN string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
}

type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string
}

type ClickHouseConfig struct {
	Enabled bool
	DSN     string
}

// EmbeddingConfig selects and configures an embedding provider. When Provider
// is empty, the gateway returns zero vectors so downstream paths remain
// exercisable without upstream credentials.
type EmbeddingConfig struct {
	Provider  string // "openai", "gemini", or "" (unconfigured)
	Model     string
	Dimension int
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
}

// ExtractionConfig selects and configures the LLM used for entity/relationship
// extraction during ingestion.
type ExtractionConfig struct {
	Provider string // "anthropic" or "" (unconfigured)
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

type ChunkingConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Load reads configuration from the environment (optionally a local .env).
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.HTTPAddr = firstNonEmpty(strings.TrimSpace(os.Getenv("HTTP_ADDR")), ":8080")

	cfg.Postgres.DSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	cfg.Qdrant.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("QDRANT_DSN")), "http://localhost:6334")

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Redis.Enabled = cfg.Redis.Addr != ""
	cfg.Redis.Password = strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))
	cfg.Redis.DB = atoiDefault(os.Getenv("REDIS_DB"), 0)

	cfg.Kafka.Brokers = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Enabled = cfg.Kafka.Brokers != ""
	cfg.Kafka.Topic = firstNonEmpty(strings.TrimSpace(os.Getenv("KAFKA_TOPIC")), "kgraph.events")

	cfg.S3.Bucket = strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET"))
	cfg.S3.Enabled = cfg.S3.Bucket != ""
	cfg.S3.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("AWS_REGION")), "us-east-1")
	cfg.S3.Prefix = strings.TrimSpace(os.Getenv("SNAPSHOT_S3_PREFIX"))

	cfg.ClickHouse.DSN = strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN"))
	cfg.ClickHouse.Enabled = cfg.ClickHouse.DSN != ""

	cfg.Embedding.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDING_PROVIDER")))
	cfg.Embedding.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")), "text-embedding-3-small")
	cfg.Embedding.Dimension = atoiDefault(os.Getenv("EMBEDDING_DIMENSION"), 1536)
	cfg.Embedding.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.Embedding.OpenAI.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	cfg.Embedding.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	cfg.Extraction.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("EXTRACTION_PROVIDER")))
	cfg.Extraction.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("EXTRACTION_MODEL")), "claude-3-7-sonnet-latest")
	cfg.Extraction.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.Extraction.BaseURL = strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
	cfg.Extraction.Timeout = time.Duration(atoiDefault(os.Getenv("EXTRACTION_TIMEOUT_SECONDS"), 60)) * time.Second

	cfg.Chunking.ChunkSize = atoiDefault(os.Getenv("CHUNK_SIZE"), 500)
	cfg.Chunking.ChunkOverlap = atoiDefault(os.Getenv("CHUNK_OVERLAP"), 50)

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))

	// Default provider inference: if a provider's credentials are present but
	// the selector env var was not set, prefer it over the zero-vector fallback.
	if cfg.Embedding.Provider == "" {
		if cfg.Embedding.OpenAI.APIKey != "" {
			cfg.Embedding.Provider = "openai"
		} else if cfg.Embedding.Gemini.APIKey != "" {
			cfg.Embedding.Provider = "gemini"
		}
	}
	if cfg.Extraction.Provider == "" && cfg.Extraction.APIKey != "" {
		cfg.Extraction.Provider = "anthropic"
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func atoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
