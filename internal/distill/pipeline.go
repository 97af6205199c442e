// Package distill runs the transcript distillation pipeline: embed,
// store, cluster, noise-filter, extract, summarize.
package distill

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/distilld/internal/clustering"
	"github.com/fyrsmithlabs/distilld/internal/embeddings"
	"github.com/fyrsmithlabs/distilld/internal/extraction"
	"github.com/fyrsmithlabs/distilld/internal/noise"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
	"github.com/fyrsmithlabs/distilld/internal/vectorstore"
)

var tracer = otel.Tracer("distilld.pipeline")

var (
	sessionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distilld_sessions_processed_total",
		Help: "Total sessions run through the distillation pipeline.",
	})

	messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distilld_messages_processed_total",
		Help: "Total messages embedded, clustered and scored.",
	})

	extractionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distilld_extractions_total",
		Help: "Total per-cluster extraction calls issued.",
	})
)

// Options are the pipeline's tunable thresholds. They are heuristics,
// not fixed law; see DefaultOptions for the observed-good values.
type Options struct {
	// MinClusterSize is the smallest group HDBSCAN may call a cluster.
	MinClusterSize int

	// MinSamples controls HDBSCAN core-distance smoothing.
	MinSamples int

	// NoiseThreshold is the score at or above which a message is
	// filtered from its cluster's kept set.
	NoiseThreshold float64

	// MinExtractionMessages is the minimum surviving messages a cluster
	// needs to be sent for extraction.
	MinExtractionMessages int

	// MinExtractionChars is the minimum formatted-text length worth
	// sending to the reasoning service.
	MinExtractionChars int

	// SummaryMaxWords bounds the prose summary length.
	SummaryMaxWords int

	// ExtractionParallelism caps concurrent per-cluster extraction
	// calls. Failures stay isolated per cluster regardless.
	ExtractionParallelism int
}

// DefaultOptions returns the standard pipeline thresholds.
func DefaultOptions() Options {
	return Options{
		MinClusterSize:        2,
		MinSamples:            1,
		NoiseThreshold:        noise.DefaultThreshold,
		MinExtractionMessages: 2,
		MinExtractionChars:    20,
		SummaryMaxWords:       250,
		ExtractionParallelism: 4,
	}
}

// withDefaults fills unset fields individually, so a caller overriding
// one threshold keeps the defaults for the rest.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = def.MinClusterSize
	}
	if o.MinSamples <= 0 {
		o.MinSamples = def.MinSamples
	}
	if o.NoiseThreshold <= 0 {
		o.NoiseThreshold = def.NoiseThreshold
	}
	if o.MinExtractionMessages <= 0 {
		o.MinExtractionMessages = def.MinExtractionMessages
	}
	if o.MinExtractionChars <= 0 {
		o.MinExtractionChars = def.MinExtractionChars
	}
	if o.SummaryMaxWords <= 0 {
		o.SummaryMaxWords = def.SummaryMaxWords
	}
	if o.ExtractionParallelism <= 0 {
		o.ExtractionParallelism = def.ExtractionParallelism
	}
	return o
}

// ProcessedResult is the full distillation output for one session.
type ProcessedResult struct {
	SessionID    string                       `json:"session_id"`
	MessageCount int                          `json:"message_count"`
	Clusters     []clustering.TopicCluster    `json:"clusters"`
	NoiseScores  []float64                    `json:"noise_scores"`
	Extractions  []extraction.TopicExtraction `json:"extractions"`
	Summary      string                       `json:"summary"`
}

// Pipeline wires the distillation stages together. The extractor may be
// nil (no reasoning-service credential): extraction and summary are then
// skipped and the caller still gets a full structural result.
type Pipeline struct {
	embedder  embeddings.Embedder
	store     *vectorstore.SessionStore
	extractor *extraction.Extractor
	logger    *zap.Logger
	opts      Options
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(embedder embeddings.Embedder, store *vectorstore.SessionStore, extractor *extraction.Extractor, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// Process runs the full pipeline for one session's ordered messages.
// Stage errors before clustering (embedding, index replacement) fail the
// call; everything downstream degrades per cluster instead of failing.
func (p *Pipeline) Process(ctx context.Context, sessionID string, msgs []transcript.Message) (*ProcessedResult, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("message_count", len(msgs)),
	)

	result := &ProcessedResult{
		SessionID:    sessionID,
		MessageCount: len(msgs),
		Clusters:     []clustering.TopicCluster{},
		NoiseScores:  []float64{},
		Extractions:  []extraction.TopicExtraction{},
	}
	if len(msgs) == 0 {
		return result, nil
	}

	contents := make([]string, len(msgs))
	for i, m := range msgs {
		contents[i] = m.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding messages: %w", err)
	}

	if err := p.store.Replace(ctx, sessionID, msgs, vectors); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("storing embeddings: %w", err)
	}

	labels := clustering.Cluster(vectors, p.opts.MinClusterSize, p.opts.MinSamples)
	scores := noise.Scores(msgs)
	clusters := clustering.Summarize(labels, msgs)
	clusters = noise.FilterClusters(clusters, msgs, scores, p.opts.NoiseThreshold)
	result.Clusters = clusters

	result.NoiseScores = make([]float64, len(scores))
	for i, s := range scores {
		result.NoiseScores[i] = math.Round(s*100) / 100
	}

	if p.extractor != nil {
		result.Extractions = p.extract(ctx, msgs, clusters)
		fullText := formatMessages(msgs)
		result.Summary = p.extractor.GenerateSummary(ctx, result.Extractions, fullText, p.opts.SummaryMaxWords)
	} else {
		p.logger.Warn("no reasoning service credential, skipping extraction",
			zap.String("session_id", sessionID))
	}

	sessionsProcessed.Inc()
	messagesProcessed.Add(float64(len(msgs)))

	p.logger.Info("session processed",
		zap.String("session_id", sessionID),
		zap.Int("messages", len(msgs)),
		zap.Int("clusters", len(clusters)),
		zap.Int("extractions", len(result.Extractions)),
	)
	return result, nil
}

// extract runs per-cluster extraction over every eligible cluster, in
// parallel, preserving cluster order in the output. When no cluster is
// eligible the whole conversation is extracted as one "Conversation"
// topic, provided it clears the same minimums.
func (p *Pipeline) extract(ctx context.Context, msgs []transcript.Message, clusters []clustering.TopicCluster) []extraction.TopicExtraction {
	type job struct {
		topicID   int
		topicName string
		text      string
	}

	var jobs []job
	for _, c := range clusters {
		if c.MessageCount < p.opts.MinExtractionMessages {
			continue
		}
		text := formatMessages(c.Messages)
		if len(text) < p.opts.MinExtractionChars {
			continue
		}
		jobs = append(jobs, job{topicID: c.TopicID, topicName: c.TopicName, text: text})
	}

	if len(jobs) == 0 {
		if len(msgs) < p.opts.MinExtractionMessages {
			return []extraction.TopicExtraction{}
		}
		text := formatMessages(msgs)
		if len(text) < p.opts.MinExtractionChars {
			return []extraction.TopicExtraction{}
		}
		jobs = []job{{topicID: 0, topicName: "Conversation", text: text}}
	}

	out := make([]extraction.TopicExtraction, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ExtractionParallelism)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			// ExtractCluster degrades to the empty extraction on failure,
			// so one bad cluster never poisons the others.
			extractionsTotal.Inc()
			out[i] = extraction.TopicExtraction{
				TopicID:    j.topicID,
				TopicName:  j.topicName,
				Extraction: p.extractor.ExtractCluster(ctx, j.topicName, j.text),
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// formatMessages renders messages as prompt text, one line per message,
// with the ISO timestamp when present.
func formatMessages(msgs []transcript.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		if ts := m.TimestampISO(); ts != "" {
			lines[i] = fmt.Sprintf("[%s] %s: %s", ts, m.Author, m.Content)
		} else {
			lines[i] = fmt.Sprintf("%s: %s", m.Author, m.Content)
		}
	}
	return strings.Join(lines, "\n")
}
