package distill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/clustering"
	"github.com/fyrsmithlabs/distilld/internal/extraction"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
	"github.com/fyrsmithlabs/distilld/internal/vectorstore"
)

// mapEmbedder returns a fixed vector per content string, so tests can
// choose the cluster geometry up front.
type mapEmbedder struct {
	vectors  map[string][]float32
	dropLast bool
}

func (m *mapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.vectors[text], nil
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := m.vectors[t]
		if !ok {
			v = []float32{0, 0}
		}
		out = append(out, v)
	}
	if m.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeLLM struct {
	content string
	calls   int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.content, nil
}

func TestOptions_PartialOverrideKeepsOtherDefaults(t *testing.T) {
	opts := Options{NoiseThreshold: 0.9}.withDefaults()

	assert.Equal(t, 0.9, opts.NoiseThreshold)
	assert.Equal(t, DefaultOptions().MinClusterSize, opts.MinClusterSize)
	assert.Equal(t, DefaultOptions().MinExtractionChars, opts.MinExtractionChars)
	assert.Equal(t, DefaultOptions().ExtractionParallelism, opts.ExtractionParallelism)

	assert.Equal(t, DefaultOptions(), Options{}.withDefaults())
}

func newTestStore(t *testing.T) *vectorstore.SessionStore {
	t.Helper()
	store, err := vectorstore.NewSessionStore(vectorstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func msg(author, content string) transcript.Message {
	return transcript.Message{Author: author, Content: content, Source: transcript.SourcePaste}
}

func TestProcess_EmptySession(t *testing.T) {
	p := NewPipeline(&mapEmbedder{}, newTestStore(t), nil, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", nil)

	require.NoError(t, err)
	assert.Equal(t, "s1", result.SessionID)
	assert.Zero(t, result.MessageCount)
	assert.Empty(t, result.Clusters)
	assert.Empty(t, result.NoiseScores)
	assert.Empty(t, result.Extractions)
	assert.Empty(t, result.Summary)
}

func TestProcess_NoCredentialSkipsExtraction(t *testing.T) {
	msgs := []transcript.Message{
		msg("Alex", "we should use SQLite for storage here"),
		msg("Sam", "agreed, SQLite keeps the setup simple"),
		msg("Pat", "deploy target is fly.io for the demo"),
	}
	embedder := &mapEmbedder{vectors: map[string][]float32{
		msgs[0].Content: {1, 0},
		msgs[1].Content: {0.9, 0.1},
		msgs[2].Content: {0, 1},
	}}
	store := newTestStore(t)
	p := NewPipeline(embedder, store, nil, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", msgs)

	require.NoError(t, err)
	assert.Equal(t, 3, result.MessageCount)
	assert.NotEmpty(t, result.Clusters)
	assert.Len(t, result.NoiseScores, 3)
	assert.Empty(t, result.Extractions)
	assert.Empty(t, result.Summary)
	// Vectors are stored regardless of extraction, so the answer engine
	// still works without a credential.
	assert.Equal(t, 3, store.Count("s1"))
}

func TestProcess_ExtractsEligibleClusters(t *testing.T) {
	msgs := []transcript.Message{
		msg("Alex", "we should use SQLite for storage here"),
		msg("Sam", "agreed, SQLite keeps the setup simple"),
		msg("Pat", "frontend will be React with Vite tooling"),
		msg("Kim", "React works, I will scaffold the frontend"),
		msg("Jo", "random offtopic message far away from it all"),
	}
	embedder := &mapEmbedder{vectors: map[string][]float32{
		msgs[0].Content: {0, 0},
		msgs[1].Content: {0.1, 0},
		msgs[2].Content: {10, 10},
		msgs[3].Content: {10.1, 10},
		msgs[4].Content: {100, -100},
	}}
	llm := &fakeLLM{content: `{"decisions": [{"description": "Use SQLite"}], "summary": "db talk"}`}
	extractor := extraction.NewWithModel(llm, zap.NewNop())
	p := NewPipeline(embedder, newTestStore(t), extractor, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", msgs)

	require.NoError(t, err)
	// Two 2-message clusters are eligible; the noise singleton is not.
	require.Len(t, result.Extractions, 2)
	for _, te := range result.Extractions {
		assert.NotEqual(t, clustering.NoiseLabel, te.TopicID)
		require.Len(t, te.Extraction.Decisions, 1)
		assert.Equal(t, "Use SQLite", te.Extraction.Decisions[0].Description)
	}
	// Two extraction calls plus one summary call.
	assert.Equal(t, 3, llm.calls)
	assert.NotEmpty(t, result.Summary)
}

func TestProcess_FallbackToWholeConversation(t *testing.T) {
	// Three nearby points form no selectable cluster; everything lands in
	// Unclustered, and noise filtering then drops two of the three. No
	// cluster keeps 2+ messages, so the whole conversation is extracted
	// under the "Conversation" topic.
	msgs := []transcript.Message{
		msg("Alex", "ok"),
		msg("Sam", "lol"),
		msg("Pat", "we decided to ship on friday after the review"),
	}
	embedder := &mapEmbedder{vectors: map[string][]float32{
		msgs[0].Content: {1, 0},
		msgs[1].Content: {1.1, 0},
		msgs[2].Content: {0.9, 0.1},
	}}
	llm := &fakeLLM{content: `{}`}
	extractor := extraction.NewWithModel(llm, zap.NewNop())
	p := NewPipeline(embedder, newTestStore(t), extractor, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", msgs)

	require.NoError(t, err)
	require.Len(t, result.Extractions, 1)
	assert.Equal(t, "Conversation", result.Extractions[0].TopicName)
	assert.Equal(t, 0, result.Extractions[0].TopicID)
}

func TestProcess_NoiseScoresRoundedAndAligned(t *testing.T) {
	msgs := []transcript.Message{
		msg("Alex", "ok"),
		msg("Sam", "we decided to ship on friday after the review"),
	}
	embedder := &mapEmbedder{vectors: map[string][]float32{
		msgs[0].Content: {1, 0},
		msgs[1].Content: {0, 1},
	}}
	p := NewPipeline(embedder, newTestStore(t), nil, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", msgs)

	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 0.0}, result.NoiseScores)
}

func TestProcess_CountMismatchFailsLoudly(t *testing.T) {
	msgs := []transcript.Message{
		msg("Alex", "first message in the session"),
		msg("Sam", "second message in the session"),
	}
	embedder := &mapEmbedder{dropLast: true, vectors: map[string][]float32{}}
	p := NewPipeline(embedder, newTestStore(t), nil, DefaultOptions(), zap.NewNop())

	_, err := p.Process(context.Background(), "s1", msgs)

	assert.ErrorIs(t, err, vectorstore.ErrCountMismatch)
}

func TestProcess_ClusterPartitionInvariant(t *testing.T) {
	msgs := []transcript.Message{
		msg("Alex", "we should use SQLite for storage here"),
		msg("Sam", "ok"),
		msg("Pat", "frontend will be React with Vite tooling"),
		msg("Kim", "React works, I will scaffold the frontend"),
	}
	embedder := &mapEmbedder{vectors: map[string][]float32{
		msgs[0].Content: {0, 0},
		msgs[1].Content: {0.1, 0},
		msgs[2].Content: {10, 10},
		msgs[3].Content: {10.1, 10},
	}}
	p := NewPipeline(embedder, newTestStore(t), nil, DefaultOptions(), zap.NewNop())

	result, err := p.Process(context.Background(), "s1", msgs)

	require.NoError(t, err)
	seen := map[int]int{}
	for _, c := range result.Clusters {
		assert.Equal(t, len(c.MessageIndices), c.MessageCount)
		assert.Equal(t, len(c.FilteredIndices), c.FilteredCount)
		for _, idx := range c.MessageIndices {
			seen[idx]++
		}
		for _, idx := range c.FilteredIndices {
			seen[idx]++
		}
	}
	for idx := range msgs {
		assert.Equal(t, 1, seen[idx], "message %d must appear exactly once", idx)
	}
}
