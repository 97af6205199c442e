package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrMissingAPIKey indicates no reasoning-service credential was
// configured. Callers treat this as a first-class, non-fatal condition.
var ErrMissingAPIKey = errors.New("reasoning service API key is not configured")

// Config holds reasoning-service configuration. The service speaks the
// OpenAI-compatible chat API, which Mistral's platform exposes.
type Config struct {
	// APIKey is the reasoning-service credential.
	APIKey string

	// BaseURL defaults to the Mistral platform endpoint.
	BaseURL string

	// Model defaults to mistral-small-2409.
	Model string
}

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	defaultModel   = "mistral-small-2409"

	extractionMaxTokens = 2048
	summaryMaxTokens    = 500
)

const extractionSystemPrompt = `You are an expert at extracting structured project intelligence from group chat conversations.
Given a set of messages from a single topic/discussion, extract:
1. decisions: Key decisions made (description, optional context, participants involved)
2. action_items: Concrete tasks (task, optional assignee, optional due_context)
3. responsibilities: Who is responsible for what (person, responsibility)
4. open_questions: Questions raised but not yet answered (question, optional context)
5. critical_notes: Blockers, risks, dependencies (note, optional category)
6. summary: Brief 1-2 sentence topic summary

Extract only what is explicitly or clearly implied. Leave lists empty if nothing applies.
Return valid JSON matching the schema.`

// Extractor drives structured extraction and summary generation against
// the reasoning service. A nil *Extractor is the "no credential" state:
// its methods degrade to empty results without calling anything.
type Extractor struct {
	llm    llms.Model
	logger *zap.Logger
}

// NewClient builds a reasoning-service client, or ErrMissingAPIKey when
// no credential is configured. The same client serves extraction and the
// answer engine.
func NewClient(cfg Config) (llms.Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reasoning service client: %w", err)
	}
	return llm, nil
}

// New creates an Extractor, or ErrMissingAPIKey when no credential is
// configured.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	llm, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, logger), nil
}

// NewWithModel wires an Extractor around an existing LLM client.
func NewWithModel(llm llms.Model, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{llm: llm, logger: logger}
}

// ExtractCluster asks the reasoning service for the six-field extraction
// over one cluster's formatted messages. Every failure mode (transport,
// non-JSON content, malformed JSON) degrades to the empty extraction for
// this cluster only; it is never propagated.
func (e *Extractor) ExtractCluster(ctx context.Context, topicName, messagesText string) ClusterExtraction {
	if e == nil {
		return ClusterExtraction{}
	}

	userPrompt := fmt.Sprintf(`Topic: %s

Messages:
%s

Extract the structured intelligence. Return JSON with keys: decisions, action_items, responsibilities, open_questions, critical_notes, summary.`, topicName, messagesText)

	resp, err := e.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, extractionSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
		},
		llms.WithJSONMode(),
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(extractionMaxTokens),
	)
	if err != nil {
		e.logger.Error("extraction call failed", zap.String("topic", topicName), zap.Error(err))
		return ClusterExtraction{}
	}
	content := firstChoice(resp)
	if content == "" {
		return ClusterExtraction{}
	}

	extraction, err := decodeExtraction([]byte(content))
	if err != nil {
		e.logger.Warn("failed to parse extraction response", zap.String("topic", topicName), zap.Error(err))
		return ClusterExtraction{}
	}
	return extraction
}

// summaryContextLimit bounds the raw-transcript fallback context, in runes.
const summaryContextLimit = 3000

// GenerateSummary produces the session prose summary from the aggregated
// extractions, falling back to the head of the raw transcript when no
// extractions exist. Failure degrades to an empty string.
func (e *Extractor) GenerateSummary(ctx context.Context, extractions []TopicExtraction, fullText string, maxWords int) string {
	if e == nil {
		return ""
	}

	contextText := summaryContext(extractions)
	if contextText == "" {
		// Rune-boundary truncation keeps the prompt valid UTF-8.
		if r := []rune(fullText); len(r) > summaryContextLimit {
			fullText = string(r[:summaryContextLimit])
		}
		contextText = fullText
	}

	prompt := fmt.Sprintf(`Summarize this team chat in under %d words. Focus on: key decisions, who is doing what, open questions, and any blockers. Be concise and actionable.

Context:
%s

Write a clear, readable summary (no bullet points):`, maxWords, contextText)

	resp, err := e.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(summaryMaxTokens),
	)
	if err != nil {
		e.logger.Error("summary generation failed", zap.Error(err))
		return ""
	}
	summary := strings.TrimSpace(firstChoice(resp))
	e.logger.Info("summary generated", zap.Int("chars", len(summary)))
	return summary
}

// summaryContext condenses decisions, action items and open questions
// across all extractions into a compact context block.
func summaryContext(extractions []TopicExtraction) string {
	var parts []string
	for _, te := range extractions {
		ext := te.Extraction
		if len(ext.Decisions) > 0 {
			descs := make([]string, len(ext.Decisions))
			for i, d := range ext.Decisions {
				descs[i] = d.Description
			}
			parts = append(parts, fmt.Sprintf("[%s] Decisions: %s", te.TopicName, strings.Join(descs, "; ")))
		}
		if len(ext.ActionItems) > 0 {
			items := make([]string, len(ext.ActionItems))
			for i, a := range ext.ActionItems {
				items[i] = fmt.Sprintf("%s (→%s)", a.Task, a.Assignee)
			}
			parts = append(parts, fmt.Sprintf("[%s] Action items: %s", te.TopicName, strings.Join(items, "; ")))
		}
		if len(ext.OpenQuestions) > 0 {
			qs := make([]string, len(ext.OpenQuestions))
			for i, q := range ext.OpenQuestions {
				qs[i] = q.Question
			}
			parts = append(parts, fmt.Sprintf("[%s] Open questions: %s", te.TopicName, strings.Join(qs, "; ")))
		}
	}
	return strings.Join(parts, "\n\n")
}

// firstChoice returns the first generation's text content, or "".
func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return ""
	}
	return resp.Choices[0].Content
}
