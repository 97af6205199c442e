// Package chat answers questions about a processed session by grounding
// the reasoning service in the nearest stored message vectors.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/embeddings"
	"github.com/fyrsmithlabs/distilld/internal/vectorstore"
)

// Fixed terminal answers. Query-time problems are always returned as the
// answer text itself; Ask never fails.
const (
	msgAskQuestion  = "Please ask a question."
	msgNoContext    = "No relevant context found. Try a different question."
	msgNoCredential = "API key not configured. Set DISTILLD_MISTRAL_API_KEY."
	msgNoAnswer     = "No answer generated."
)

// defaultTopK is how many stored messages ground an answer.
const defaultTopK = 8

const maxAnswerTokens = 400

// Engine is the retrieval-augmented answer engine. It reuses the
// pipeline's embedder and similarity index and runs independently of
// processing.
type Engine struct {
	embedder embeddings.Embedder
	store    *vectorstore.SessionStore
	llm      llms.Model
	logger   *zap.Logger
	topK     int
}

// NewEngine wires an answer engine. llm may be nil when no credential is
// configured; Ask then returns the fixed credential message.
func NewEngine(embedder embeddings.Embedder, store *vectorstore.SessionStore, llm llms.Model, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		llm:      llm,
		logger:   logger,
		topK:     defaultTopK,
	}
}

// Ask answers a question about a session. The three terminal outcomes:
// a blank question returns the fixed prompt, a session with no stored
// vectors returns the fixed decline (both without touching the embedder
// or the reasoning service), and the normal path embeds, retrieves and
// answers. Every failure is converted into answer text.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return msgAskQuestion
	}

	if e.store.Count(sessionID) == 0 {
		return msgNoContext
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		e.logger.Error("question embedding failed", zap.Error(err))
		return errorAnswer(err)
	}

	results, err := e.store.Query(ctx, sessionID, vector, e.topK)
	if err != nil {
		e.logger.Error("context retrieval failed", zap.Error(err))
		return errorAnswer(err)
	}
	grounding := formatContext(results)
	if grounding == "" {
		return msgNoContext
	}

	if e.llm == nil {
		return msgNoCredential
	}

	prompt := fmt.Sprintf(`You are answering questions about a team chat. Use only the context below. Be concise.

Context:
%s

Question: %s

Answer (brief, based only on the context):`, grounding, question)

	resp, err := e.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(maxAnswerTokens),
	)
	if err != nil {
		e.logger.Error("answer generation failed", zap.String("session_id", sessionID), zap.Error(err))
		return errorAnswer(err)
	}

	answer := ""
	if len(resp.Choices) > 0 && resp.Choices[0] != nil {
		answer = strings.TrimSpace(resp.Choices[0].Content)
	}
	if answer == "" {
		return msgNoAnswer
	}
	e.logger.Info("answer generated", zap.String("session_id", sessionID))
	return answer
}

// formatContext renders retrieved messages as grounding lines.
func formatContext(results []vectorstore.Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", r.Timestamp, r.Author, r.Content))
	}
	return strings.Join(lines, "\n")
}

func errorAnswer(err error) string {
	return "Error: " + err.Error()
}
