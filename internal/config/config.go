// Package config provides configuration loading for distilld.
package config

import (
	"fmt"
	"time"
)

// Config is the full distilld configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Mistral     MistralConfig     `koanf:"mistral"`
	Distill     DistillConfig     `koanf:"distill"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// VectorStoreConfig configures the embedded session vector store.
type VectorStoreConfig struct {
	// Path is the persistence directory. Empty keeps everything in
	// memory, matching the non-durable session registry.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig configures the local embedding model.
type EmbeddingsConfig struct {
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// MistralConfig configures the external reasoning service.
type MistralConfig struct {
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// DistillConfig holds the pipeline thresholds.
type DistillConfig struct {
	MinClusterSize        int     `koanf:"min_cluster_size"`
	MinSamples            int     `koanf:"min_samples"`
	NoiseThreshold        float64 `koanf:"noise_threshold"`
	MinExtractionMessages int     `koanf:"min_extraction_messages"`
	MinExtractionChars    int     `koanf:"min_extraction_chars"`
	SummaryMaxWords       int     `koanf:"summary_max_words"`
	ExtractionParallelism int     `koanf:"extraction_parallelism"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Mistral.Model == "" {
		cfg.Mistral.Model = "mistral-small-2409"
	}
	if cfg.Mistral.BaseURL == "" {
		cfg.Mistral.BaseURL = "https://api.mistral.ai/v1"
	}

	if cfg.Distill.MinClusterSize == 0 {
		cfg.Distill.MinClusterSize = 2
	}
	if cfg.Distill.MinSamples == 0 {
		cfg.Distill.MinSamples = 1
	}
	if cfg.Distill.NoiseThreshold == 0 {
		cfg.Distill.NoiseThreshold = 0.7
	}
	if cfg.Distill.MinExtractionMessages == 0 {
		cfg.Distill.MinExtractionMessages = 2
	}
	if cfg.Distill.MinExtractionChars == 0 {
		cfg.Distill.MinExtractionChars = 20
	}
	if cfg.Distill.SummaryMaxWords == 0 {
		cfg.Distill.SummaryMaxWords = 250
	}
	if cfg.Distill.ExtractionParallelism == 0 {
		cfg.Distill.ExtractionParallelism = 4
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Distill.MinClusterSize < 2 {
		return fmt.Errorf("distill.min_cluster_size must be at least 2, got %d", c.Distill.MinClusterSize)
	}
	if c.Distill.MinSamples < 1 {
		return fmt.Errorf("distill.min_samples must be at least 1, got %d", c.Distill.MinSamples)
	}
	if c.Distill.NoiseThreshold <= 0 || c.Distill.NoiseThreshold > 1 {
		return fmt.Errorf("distill.noise_threshold must be in (0, 1], got %g", c.Distill.NoiseThreshold)
	}
	if c.Distill.ExtractionParallelism < 1 {
		return fmt.Errorf("distill.extraction_parallelism must be at least 1, got %d", c.Distill.ExtractionParallelism)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
