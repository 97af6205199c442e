package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
	"github.com/fyrsmithlabs/distilld/internal/vectorstore"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

type fakeLLM struct {
	content string
	err     error
	calls   int
	prompts []string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	for _, m := range messages {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tp.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.content, f.err
}

func newStore(t *testing.T) *vectorstore.SessionStore {
	t.Helper()
	store, err := vectorstore.NewSessionStore(vectorstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func seedSession(t *testing.T, store *vectorstore.SessionStore, sessionID string) {
	t.Helper()
	ts := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	msgs := []transcript.Message{
		{Author: "Alex", Content: "let's use SQLite for the hackathon", Timestamp: &ts, Source: transcript.SourcePaste},
		{Author: "Sam", Content: "agreed, keep it simple", Source: transcript.SourcePaste},
	}
	vectors := [][]float32{{1, 0, 0}, {0.9, 0.1, 0}}
	require.NoError(t, store.Replace(context.Background(), sessionID, msgs, vectors))
}

func TestAsk_BlankQuestion(t *testing.T) {
	embedder := &fakeEmbedder{}
	llm := &fakeLLM{}
	e := NewEngine(embedder, newStore(t), llm, zap.NewNop())

	assert.Equal(t, "Please ask a question.", e.Ask(context.Background(), "s1", "   "))
	assert.Zero(t, embedder.calls, "blank question must not reach the embedder")
	assert.Zero(t, llm.calls, "blank question must not reach the reasoning service")
}

func TestAsk_EmptySessionDeclinesBeforeEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	llm := &fakeLLM{}
	e := NewEngine(embedder, newStore(t), llm, zap.NewNop())

	answer := e.Ask(context.Background(), "missing-session", "what was decided?")

	assert.Equal(t, "No relevant context found. Try a different question.", answer)
	assert.Zero(t, embedder.calls)
	assert.Zero(t, llm.calls)
}

func TestAsk_GroundsAnswerInRetrievedContext(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1")
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	llm := &fakeLLM{content: "They decided on SQLite."}
	e := NewEngine(embedder, store, llm, zap.NewNop())

	answer := e.Ask(context.Background(), "s1", "what database did they pick?")

	assert.Equal(t, "They decided on SQLite.", answer)
	require.Equal(t, 1, llm.calls)
	joined := strings.Join(llm.prompts, "\n")
	assert.Contains(t, joined, "Alex: let's use SQLite for the hackathon")
	assert.Contains(t, joined, "what database did they pick?")
	// Timestamped and timestampless entries both render.
	assert.Contains(t, joined, "[2025-01-15T10:00:00Z] Alex")
	assert.Contains(t, joined, "[] Sam")
}

func TestAsk_EmbeddingErrorBecomesAnswerText(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1")
	embedder := &fakeEmbedder{err: errors.New("model not loaded")}
	e := NewEngine(embedder, store, &fakeLLM{}, zap.NewNop())

	answer := e.Ask(context.Background(), "s1", "anything?")

	assert.Equal(t, "Error: model not loaded", answer)
}

func TestAsk_ServiceErrorBecomesAnswerText(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1")
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	llm := &fakeLLM{err: errors.New("rate limited")}
	e := NewEngine(embedder, store, llm, zap.NewNop())

	assert.Equal(t, "Error: rate limited", e.Ask(context.Background(), "s1", "anything?"))
}

func TestAsk_NilLLMReturnsCredentialMessage(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1")
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	e := NewEngine(embedder, store, nil, zap.NewNop())

	answer := e.Ask(context.Background(), "s1", "what was decided?")

	assert.Contains(t, answer, "API key not configured")
}

func TestAsk_EmptyCompletionFallsBack(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1")
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	llm := &fakeLLM{content: "   "}
	e := NewEngine(embedder, store, llm, zap.NewNop())

	assert.Equal(t, "No answer generated.", e.Ask(context.Background(), "s1", "anything?"))
}
