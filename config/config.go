package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// ModelConfig selects the chat model
type ModelConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Name        string        `yaml:"name"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig selects the embedding model
type EmbeddingConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StoreConfig selects and configures the vector store
type StoreConfig struct {
	Backend        string        `yaml:"backend"` // redis or memory
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	PoolSize       int           `yaml:"pool_size"`
	IndexName      string        `yaml:"index_name"`
	KeyPrefix      string        `yaml:"key_prefix"`
	EFConstruction int           `yaml:"ef_construction"`
	M              int           `yaml:"m"`
	SnapshotPath   string        `yaml:"snapshot_path"`
	Timeout        time.Duration `yaml:"timeout"`
}

// IngestConfig tunes the ingestion pipeline
type IngestConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`
	BatchSize      int           `yaml:"batch_size"`
	Concurrency    int           `yaml:"concurrency"`
	RateLimit      float64       `yaml:"rate_limit"`
	Policy         string        `yaml:"policy"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// RetrievalConfig fixes the retriever parameters
type RetrievalConfig struct {
	TopK      int     `yaml:"top_k"`
	Threshold float32 `yaml:"threshold"`
}

// AgentConfig bounds the agent loop
type AgentConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	ObservationLimit int `yaml:"observation_limit"`
}

// TracingConfig enables CozeLoop tracing
type TracingConfig struct {
	APIToken    string `yaml:"api_token"`
	WorkspaceID string `yaml:"workspace_id"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config holds all configuration values.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Agent     AgentConfig     `yaml:"agent"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: "openai",
			Name:     "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			Timeout:   30 * time.Second,
		},
		Store: StoreConfig{
			Backend:        "redis",
			RedisAddr:      "localhost:6379",
			PoolSize:       10,
			IndexName:      "bookworm-books",
			KeyPrefix:      "book:",
			EFConstruction: 200,
			M:              16,
			SnapshotPath:   "./data/bookworm_index.json",
			Timeout:        30 * time.Second,
		},
		Ingest: IngestConfig{
			ChunkSize:      2000,
			BatchSize:      10,
			Concurrency:    4,
			Policy:         "replace",
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			Threshold: 0.2,
		},
		Agent: AgentConfig{
			MaxIterations:    5,
			ObservationLimit: 12000,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "./data/bookworm.log",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is not empty, then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables that are set
func (c *Config) applyEnv() {
	c.Model.Provider = getEnv("MODEL_PROVIDER", c.Model.Provider)
	c.Model.APIKey = getEnv("OPENAI_API_KEY", c.Model.APIKey)
	if strings.EqualFold(c.Model.Provider, "gemini") {
		c.Model.APIKey = getEnv("GEMINI_API_KEY", c.Model.APIKey)
	}
	c.Model.BaseURL = getEnv("MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.Name = getEnv("MODEL", c.Model.Name)
	c.Model.Temperature = float32(getEnvFloat("MODEL_TEMPERATURE", float64(c.Model.Temperature)))
	c.Model.Timeout = getEnvDuration("MODEL_TIMEOUT", c.Model.Timeout)

	c.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", c.Embedding.APIKey))
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = getEnvInt("EMBEDDING_DIM", c.Embedding.Dimension)
	c.Embedding.Timeout = getEnvDuration("EMBED_TIMEOUT", c.Embedding.Timeout)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.RedisAddr = getEnv("REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = getEnv("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvInt("REDIS_DB", c.Store.RedisDB)
	c.Store.IndexName = getEnv("REDIS_INDEX", c.Store.IndexName)
	c.Store.SnapshotPath = getEnv("STORE_SNAPSHOT", c.Store.SnapshotPath)
	c.Store.Timeout = getEnvDuration("STORE_TIMEOUT", c.Store.Timeout)

	c.Ingest.ChunkSize = getEnvInt("INGEST_CHUNK_SIZE", c.Ingest.ChunkSize)
	c.Ingest.BatchSize = getEnvInt("INGEST_BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.Concurrency = getEnvInt("INGEST_CONCURRENCY", c.Ingest.Concurrency)
	c.Ingest.RateLimit = getEnvFloat("INGEST_RATE_LIMIT", c.Ingest.RateLimit)
	c.Ingest.Policy = getEnv("INGEST_POLICY", c.Ingest.Policy)

	c.Retrieval.TopK = getEnvInt("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.Threshold = float32(getEnvFloat("RETRIEVAL_THRESHOLD", float64(c.Retrieval.Threshold)))

	c.Agent.MaxIterations = getEnvInt("AGENT_MAX_ITERATIONS", c.Agent.MaxIterations)
	c.Agent.ObservationLimit = getEnvInt("AGENT_OBSERVATION_LIMIT", c.Agent.ObservationLimit)

	c.Tracing.APIToken = getEnv("COZELOOP_API_TOKEN", c.Tracing.APIToken)
	c.Tracing.WorkspaceID = getEnv("COZELOOP_WORKSPACE_ID", c.Tracing.WorkspaceID)

	c.Logging.Level = getEnv("BOOKWORM_LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("BOOKWORM_LOG_FILE", c.Logging.File)
}

// Validate reports every out of range value at once
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, llm.InvalidInput(format, args...))
		}
	}

	provider := strings.ToLower(c.Model.Provider)
	check(provider == "openai" || provider == "gemini", "model provider must be openai or gemini, got %q", c.Model.Provider)
	backend := strings.ToLower(c.Store.Backend)
	check(backend == "redis" || backend == "memory", "store backend must be redis or memory, got %q", c.Store.Backend)
	check(c.Embedding.Dimension > 0, "embedding dimension must be positive")
	check(c.Ingest.ChunkSize > 0, "chunk size must be positive")
	check(c.Ingest.BatchSize > 0, "batch size must be positive")
	check(c.Ingest.Concurrency > 0, "ingest concurrency must be positive")
	check(c.Ingest.RateLimit >= 0, "ingest rate limit cannot be negative")
	check(c.Ingest.MaxRetries >= 0, "max retries cannot be negative")
	policy := strings.ToLower(c.Ingest.Policy)
	check(policy == "replace" || policy == "skip", "ingest policy must be replace or skip, got %q", c.Ingest.Policy)
	check(c.Retrieval.TopK > 0, "retrieval top-k must be positive")
	check(c.Retrieval.Threshold >= 0 && c.Retrieval.Threshold <= 1, "retrieval threshold must be within [0,1]")
	check(c.Agent.MaxIterations > 0, "agent max iterations must be positive")
	check(c.Agent.ObservationLimit > 0, "agent observation limit must be positive")

	return errors.Join(errs...)
}

// LogLevel returns the parsed logging level
func (c *Config) LogLevel() slog.Level {
	return parseLogLevel(c.Logging.Level)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		slog.Warn("ignoring invalid integer setting", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		slog.Warn("ignoring invalid number setting", "key", key, "value", val)
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45")
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("ignoring invalid duration setting", "key", key, "value", val)
	return defaultVal
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
