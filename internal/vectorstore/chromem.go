// Package vectorstore persists per-session message embeddings and serves
// nearest-neighbor retrieval, backed by chromem-go.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

var tracer = otel.Tracer("distilld.vectorstore")

// Sentinel errors for vector store operations.
var (
	// ErrCountMismatch indicates a message/vector length mismatch.
	// This is a pipeline contract violation, not an external condition.
	ErrCountMismatch = errors.New("message and embedding counts differ")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")
)

// metadataContentLimit caps stored message content per entry, in runes.
const metadataContentLimit = 500

// Config holds configuration for the session vector store.
type Config struct {
	// Path is the directory for persistent storage. Empty means a pure
	// in-memory store, which is fine for a registry that is not durable
	// across restarts anyway.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// Result is one retrieved message chunk with its stored metadata.
type Result struct {
	ID         string
	Similarity float32
	Author     string
	Content    string
	Timestamp  string
}

// SessionStore keeps one chromem collection per session. A session's
// collection is replaced wholesale on each processing run; there is no
// incremental update path.
type SessionStore struct {
	db     *chromem.DB
	logger *zap.Logger
}

// NewSessionStore creates a session store. With a configured path the
// store persists to disk; otherwise it is in-memory only.
func NewSessionStore(cfg Config, logger *zap.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		if err = os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	logger.Info("session vector store initialized",
		zap.String("path", cfg.Path),
		zap.Bool("persistent", cfg.Path != ""),
	)

	return &SessionStore{db: db, logger: logger}, nil
}

// collectionName maps a session ID onto a chromem collection name.
func collectionName(sessionID string) string {
	return "session_" + strings.ReplaceAll(sessionID, "-", "_")
}

// noEmbedFunc guards against accidental embedding via chromem itself; all
// vectors are precomputed by the embeddings provider.
func noEmbedFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("vectorstore: embeddings must be precomputed")
}

// Replace deletes any existing collection for the session and stores the
// given messages with their embeddings. Message and vector order must
// match 1:1; a length mismatch is an invariant breach and fails loudly.
func (s *SessionStore) Replace(ctx context.Context, sessionID string, msgs []transcript.Message, vectors [][]float32) error {
	ctx, span := tracer.Start(ctx, "SessionStore.Replace")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("message_count", len(msgs)),
	)

	if len(msgs) != len(vectors) {
		err := fmt.Errorf("%w: %d messages, %d vectors", ErrCountMismatch, len(msgs), len(vectors))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	name := collectionName(sessionID)

	// Wholesale replacement: delete-then-recreate. Racing reprocessing of
	// the same session is last-write-wins.
	if err := s.db.DeleteCollection(name); err != nil {
		s.logger.Debug("delete collection before replace", zap.String("collection", name), zap.Error(err))
	}

	collection, err := s.db.GetOrCreateCollection(name, nil, noEmbedFunc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, len(msgs))
	for i, m := range msgs {
		content := m.Content
		// Truncate on a rune boundary so a multi-byte rune at the cut
		// never leaves invalid UTF-8 in the metadata.
		if r := []rune(content); len(r) > metadataContentLimit {
			content = string(r[:metadataContentLimit])
		}
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("msg_%d", i),
			Content:   m.Content,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"author":    m.Author,
				"content":   content,
				"timestamp": m.TimestampISO(),
			},
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}

	s.logger.Debug("replaced session collection",
		zap.String("collection", name),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns up to k stored message chunks nearest to the given vector
// by cosine similarity. A missing or empty collection yields no results
// rather than an error.
func (s *SessionStore) Query(ctx context.Context, sessionID string, vector []float32, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "SessionStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := s.db.GetCollection(collectionName(sessionID), noEmbedFunc)
	if collection == nil {
		return nil, nil
	}
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying session %s: %w", sessionID, err)
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{
			ID:         r.ID,
			Similarity: r.Similarity,
			Author:     r.Metadata["author"],
			Content:    r.Metadata["content"],
			Timestamp:  r.Metadata["timestamp"],
		}
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// Count returns the number of stored vectors for a session; zero when the
// collection is absent.
func (s *SessionStore) Count(sessionID string) int {
	collection := s.db.GetCollection(collectionName(sessionID), noEmbedFunc)
	if collection == nil {
		return 0
	}
	return collection.Count()
}

// Delete removes a session's collection if present.
func (s *SessionStore) Delete(sessionID string) error {
	return s.db.DeleteCollection(collectionName(sessionID))
}
