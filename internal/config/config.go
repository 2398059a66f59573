// Package config provides configuration loading for fortressd.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/fortressd/internal/tenant"
)

// ErrInvalidConfig indicates a configuration value that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full daemon configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Tenancy    TenancyConfig    `koanf:"tenancy"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig configures on-disk layout.
type StorageConfig struct {
	// Root holds indexes/ and manifests/ subdirectories.
	Root     string `koanf:"root"`
	Compress bool   `koanf:"compress"`
}

// TenancyConfig configures namespace resolution.
type TenancyConfig struct {
	// Mode is "dept" or "user".
	Mode string `koanf:"mode"`
}

// ChunkingConfig configures passage splitting.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// RetrievalConfig configures the answer pipeline widths.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
	TopN int `koanf:"top_n"`
}

// EmbeddingsConfig configures the embedding backend (OpenAI-compatible).
type EmbeddingsConfig struct {
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            Secret  `koanf:"api_key"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// LLMConfig configures the chat model backend (OpenAI-compatible) used for
// reranking and generation.
type LLMConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `koanf:"level"`
	// Format is "console" or "json".
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8600
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Tenancy.Mode == "" {
		cfg.Tenancy.Mode = string(tenant.ModeDept)
	}

	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 900
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 150
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.TopN == 0 {
		cfg.Retrieval.TopN = 4
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:8000/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be 1-65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("%w: storage.root is required", ErrInvalidConfig)
	}
	if _, err := tenant.ParseMode(c.Tenancy.Mode); err != nil {
		return fmt.Errorf("%w: tenancy.mode: %v", ErrInvalidConfig, err)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive", ErrInvalidConfig)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, size)", ErrInvalidConfig)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.TopN <= 0 || c.Retrieval.TopN > c.Retrieval.TopK {
		return fmt.Errorf("%w: retrieval.top_n must be in (0, top_k]", ErrInvalidConfig)
	}
	if c.Embeddings.BaseURL == "" || c.Embeddings.Model == "" {
		return fmt.Errorf("%w: embeddings.base_url and embeddings.model are required", ErrInvalidConfig)
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.base_url and llm.model are required", ErrInvalidConfig)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format must be console or json", ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn, or error", ErrInvalidConfig)
	}
	return nil
}

// Mode returns the parsed tenancy mode. Call after Validate.
func (c *Config) Mode() tenant.Mode {
	mode, _ := tenant.ParseMode(c.Tenancy.Mode)
	return mode
}
