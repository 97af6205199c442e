// Package embeddings generates sentence embeddings for chat messages
// using local ONNX models via FastEmbed.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// Sentinel errors for embedding generation.
var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrEmbeddingFailed indicates the model failed to produce vectors.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Config holds configuration for the FastEmbed provider.
type Config struct {
	// Model is the embedding model. Default: BAAI/bge-small-en-v1.5 (384-dim).
	Model string

	// CacheDir is the directory to cache model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Default: 512.
	MaxLength int
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their embedding dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.AllMiniLML6V2: 384,
}

// Provider generates embeddings with one shared, lazily-initialized model
// handle. The model is loaded on first use; initialization is guarded so
// concurrent first calls race safely. Identical text always yields the
// identical vector for a fixed model.
type Provider struct {
	cfg       Config
	model     *fastembed.FlagEmbedding
	dimension int

	initOnce sync.Once
	initErr  error
}

// NewProvider creates a FastEmbed provider. The model itself is not loaded
// until the first embedding call.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-small-en-v1.5"
	}
	model, ok := modelMapping[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, cfg.Model)
	}
	return &Provider{cfg: cfg, dimension: modelDimensions[model]}, nil
}

// init loads the shared model handle exactly once.
func (p *Provider) init() error {
	p.initOnce.Do(func() {
		cacheDir := p.cfg.CacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(".", "local_cache")
		}
		maxLength := p.cfg.MaxLength
		if maxLength == 0 {
			maxLength = 512
		}
		showProgress := false

		model, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
			Model:                modelMapping[p.cfg.Model],
			CacheDir:             cacheDir,
			MaxLength:            maxLength,
			ShowDownloadProgress: &showProgress,
		})
		if err != nil {
			p.initErr = fmt.Errorf("initializing FastEmbed: %w", err)
			return
		}
		p.model = model
	})
	return p.initErr
}

// Embed generates an embedding for a single query string. Empty input
// yields a nil vector sentinel without touching the model.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	vec, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// EmbedBatch generates one embedding per input text, order-preserving.
// The returned slice always has the same length as texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	vecs, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *Provider) Dimension() int {
	return p.dimension
}

// Close releases the model handle if it was ever loaded.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}
