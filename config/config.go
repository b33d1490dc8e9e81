package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DirName  = ".docqa"
	FileName = "docqa.yaml"
)

// Config holds all configuration for docqa.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Lock      LockConfig      `yaml:"lock"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig controls how documents are segmented.
type IngestConfig struct {
	Chunker          string   `yaml:"chunker"` // "sentence" or "fixed"
	MinPageChars     int      `yaml:"min_page_chars"`
	MinSentenceChars int      `yaml:"min_sentence_chars"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
	Includes         []string `yaml:"includes"`
	Excludes         []string `yaml:"excludes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK          int  `yaml:"top_k"`
	SortByChunkID bool `yaml:"sort_by_chunk_id"`
	CacheSize     int  `yaml:"cache_size"`
	CacheTTLSecs  int  `yaml:"cache_ttl_secs"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "openai", "gemini", "ollama", "local"
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

// LLMConfig configures the answering and judging model.
type LLMConfig struct {
	Provider         string  `yaml:"provider"`
	Model            string  `yaml:"model"`
	JudgeModel       string  `yaml:"judge_model"`
	APIKeyEnv        string  `yaml:"api_key_env"`
	BaseURL          string  `yaml:"base_url"`
	Temperature      float32 `yaml:"temperature"`
	MaxOutputTokens  int     `yaml:"max_output_tokens"`
	JudgeTemperature float32 `yaml:"judge_temperature"`
	TimeoutSecs      int     `yaml:"timeout_secs"`
}

// StoreConfig selects the vector index backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"` // "bolt", "qdrant", "memory"
	Path    string       `yaml:"path"`    // bolt file, relative to the data dir
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	URL         string `yaml:"url"`
	Collection  string `yaml:"collection"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LockConfig selects how concurrent ingestion of one hash is serialized.
type LockConfig struct {
	Backend   string `yaml:"backend"` // "local" or "redis"
	RedisAddr string `yaml:"redis_addr"`
	TTLSecs   int    `yaml:"ttl_secs"` // key expiry; renewed while held
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Chunker:          "sentence",
			MinPageChars:     50,
			MinSentenceChars: 40,
			ChunkSize:        1024,
			ChunkOverlap:     200,
			Includes:         []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes:         []string{"**/.git/**", "**/node_modules/**", "**/.docqa/**"},
		},
		Retrieve: RetrieveConfig{
			TopK:          5,
			SortByChunkID: false,
			CacheSize:     100,
			CacheTTLSecs:  300,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			BatchSize:   100,
			Concurrency: 1,
			MaxRetries:  3,
			TimeoutSecs: 60,
		},
		LLM: LLMConfig{
			Provider:         "openai",
			Model:            "gpt-4o-mini",
			JudgeModel:       "gpt-4o-mini",
			APIKeyEnv:        "OPENAI_API_KEY",
			Temperature:      0.7,
			MaxOutputTokens:  1024,
			JudgeTemperature: 0.1,
			TimeoutSecs:      120,
		},
		Store: StoreConfig{
			Backend: "bolt",
			Path:    "chunks.db",
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				Collection:  "documents",
				APIKeyEnv:   "QDRANT_API_KEY",
				TimeoutSecs: 30,
			},
		},
		Lock: LockConfig{
			Backend:   "local",
			RedisAddr: "localhost:6379",
			TTLSecs:   300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (docqa.yaml, then .docqa/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// applyDefaults fills zero values left behind by a partial YAML file.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Ingest.Chunker == "" {
		cfg.Ingest.Chunker = def.Ingest.Chunker
	}
	if cfg.Ingest.MinPageChars == 0 {
		cfg.Ingest.MinPageChars = def.Ingest.MinPageChars
	}
	if cfg.Ingest.MinSentenceChars == 0 {
		cfg.Ingest.MinSentenceChars = def.Ingest.MinSentenceChars
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = def.Ingest.ChunkSize
	}
	if cfg.Retrieve.TopK == 0 {
		cfg.Retrieve.TopK = def.Retrieve.TopK
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = def.Embedding.Concurrency
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Store.Qdrant.Collection == "" {
		cfg.Store.Qdrant.Collection = def.Store.Qdrant.Collection
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = def.Lock.Backend
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// Validate checks value ranges and enum fields.
func (c *Config) Validate() error {
	switch c.Ingest.Chunker {
	case "sentence", "fixed":
	default:
		return fmt.Errorf("ingest.chunker must be sentence or fixed, got %q", c.Ingest.Chunker)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive")
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("embedding.batch_size and embedding.concurrency must be positive")
	}
	switch c.Store.Backend {
	case "bolt", "qdrant", "memory":
	default:
		return fmt.Errorf("store.backend must be bolt, qdrant or memory, got %q", c.Store.Backend)
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Seconds converts a *_secs field into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// DataDir returns the directory holding local state for dir.
func DataDir(dir string) string {
	return filepath.Join(dir, DirName)
}

// StorePath returns the bolt file path for dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(DataDir(dir), c.Store.Path)
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
