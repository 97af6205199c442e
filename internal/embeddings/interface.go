package embeddings

import "context"

// Embedder is the interface consumed by the pipeline and the answer
// engine. Provider is the production implementation; tests substitute
// deterministic fakes.
type Embedder interface {
	// Embed generates an embedding for a single query string.
	// Empty input yields a nil vector sentinel.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input text, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

var _ Embedder = (*Provider)(nil)
