package samples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"hackathon", "startup_channel", "study_group"}, Names())
}

func TestLoad(t *testing.T) {
	content, ok := Load("hackathon")
	require.True(t, ok)
	assert.Contains(t, content, "Alex: Alright team")

	_, ok = Load("missing")
	assert.False(t, ok)

	_, ok = Load("../samples")
	assert.False(t, ok)
}

func TestSamplesParse(t *testing.T) {
	// Every bundled sample must parse under the bracketed-datetime grammar.
	for _, name := range Names() {
		content, ok := Load(name)
		require.True(t, ok)

		msgs := transcript.ParsePaste(content, transcript.SourcePaste)
		require.GreaterOrEqual(t, len(msgs), 8, "sample %s", name)
		for _, m := range msgs {
			assert.NotNil(t, m.Timestamp, "sample %s message %q", name, m.Content)
		}
	}
}
