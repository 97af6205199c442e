package vectorstore

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(Config{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func msg(author, content string) transcript.Message {
	return transcript.Message{Author: author, Content: content, Source: transcript.SourcePaste}
}

func TestReplace_CountMismatchFailsLoudly(t *testing.T) {
	s := newTestStore(t)

	err := s.Replace(context.Background(), "sess-1",
		[]transcript.Message{msg("Alex", "hello")},
		[][]float32{{1, 0}, {0, 1}},
	)

	require.ErrorIs(t, err, ErrCountMismatch)
}

func TestReplace_AndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	msgs := []transcript.Message{
		{Author: "Alex", Content: "deploy friday", Timestamp: &ts, Source: transcript.SourcePaste},
		msg("Sam", "lunch plans"),
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}

	require.NoError(t, s.Replace(ctx, "sess-1", msgs, vectors))
	assert.Equal(t, 2, s.Count("sess-1"))

	results, err := s.Query(ctx, "sess-1", []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "msg_0", results[0].ID)
	assert.Equal(t, "Alex", results[0].Author)
	assert.Equal(t, "deploy friday", results[0].Content)
	assert.Equal(t, "2024-01-15T10:00:00Z", results[0].Timestamp)
}

func TestReplace_IsWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "sess-1",
		[]transcript.Message{msg("Alex", "one"), msg("Sam", "two"), msg("Riley", "three")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	))
	require.NoError(t, s.Replace(ctx, "sess-1",
		[]transcript.Message{msg("Alex", "only")},
		[][]float32{{1, 0}},
	))

	assert.Equal(t, 1, s.Count("sess-1"))
}

func TestQuery_AbsentSession(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), "never-seen", []float32{1, 0}, 8)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, s.Count("never-seen"))
}

func TestQuery_CapsKAtCollectionSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "sess-1",
		[]transcript.Message{msg("Alex", "one"), msg("Sam", "two")},
		[][]float32{{1, 0}, {0, 1}},
	))

	results, err := s.Query(ctx, "sess-1", []float32{1, 0}, 8)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestReplace_TruncatesStoredContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	long := strings.Repeat("x", 900)

	require.NoError(t, s.Replace(ctx, "sess-1",
		[]transcript.Message{msg("Alex", long)},
		[][]float32{{1, 0}},
	))

	results, err := s.Query(ctx, "sess-1", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Content, 500)
}

func TestReplace_TruncatesOnRuneBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	long := strings.Repeat("日", 600)

	require.NoError(t, s.Replace(ctx, "sess-1",
		[]transcript.Message{msg("Alex", long)},
		[][]float32{{1, 0}},
	))

	results, err := s.Query(ctx, "sess-1", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, utf8.ValidString(results[0].Content))
	assert.Equal(t, 500, utf8.RuneCountInString(results[0].Content))
}

func TestReplace_EmptyInputIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Replace(context.Background(), "sess-1", nil, nil))
	assert.Equal(t, 0, s.Count("sess-1"))
}
