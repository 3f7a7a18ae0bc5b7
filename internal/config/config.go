package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Language model
	LLMProvider        string // "openai" or "anthropic"
	OpenAIAPIKey       string
	OpenAIModel        string
	AnthropicAPIKey    string
	AnthropicModel     string
	LLMMaxTokens       int
	LLMTemperature     float64
	LLMTokensPerSecond int
	LLMBurstTokens     int

	// Blob storage
	BlobBackend string // "dir" or "s3"
	BlobDir     string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string

	// Record store
	DatabasePath string

	// Section headings vocabulary (YAML); empty uses the built-in set
	HeadingsFile string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentExtract int

	// Upload limits
	MaxUploadBytes int64

	// Chunking defaults
	DefaultChunkSize    int
	DefaultChunkOverlap int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel slog.Level
}

// LoadDotEnv reads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8000"),

		LLMProvider:        strings.ToLower(envOr("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        envOr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		LLMMaxTokens:       envInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature:     envFloat("LLM_TEMPERATURE", 0.2),
		LLMTokensPerSecond: envInt("LLM_TOKENS_PER_SECOND", 30000),
		LLMBurstTokens:     envInt("LLM_BURST_TOKENS", 60000),

		BlobBackend: strings.ToLower(envOr("BLOB_BACKEND", "dir")),
		BlobDir:     envOr("BLOB_DIR", "data/blobs"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),

		DatabasePath: envOr("DATABASE_PATH", "data/parsemed.db"),
		HeadingsFile: os.Getenv("HEADINGS_FILE"),

		WorkerCount:          envInt("WORKER_COUNT", 4),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 5),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 1500),
		DefaultChunkOverlap: envInt("DEFAULT_CHUNK_OVERLAP", 200),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 2048
	}
	if cfg.LLMTemperature < 0 {
		cfg.LLMTemperature = 0.2
	}
	if cfg.LLMTokensPerSecond <= 0 {
		cfg.LLMTokensPerSecond = 30000
	}
	if cfg.LLMBurstTokens <= 0 {
		cfg.LLMBurstTokens = 2 * cfg.LLMTokensPerSecond
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 1500
	}
	if cfg.DefaultChunkOverlap <= 0 {
		cfg.DefaultChunkOverlap = 200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLMProvider)
	}
	switch c.BlobBackend {
	case "dir":
		if c.BlobDir == "" {
			return fmt.Errorf("BLOB_DIR is required")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be dir or s3, got %q", c.BlobBackend)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.DefaultChunkOverlap >= c.DefaultChunkSize {
		return fmt.Errorf("DEFAULT_CHUNK_OVERLAP (%d) must be below DEFAULT_CHUNK_SIZE (%d)", c.DefaultChunkOverlap, c.DefaultChunkSize)
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

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return fallback
}
