package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/distilld/internal/clustering"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

func TestScore_Denylist(t *testing.T) {
	for _, content := range []string{"ok", "OK", "  lol ", "👍", "+1", "agreed", "same here"} {
		assert.Equal(t, 1.0, Score(content), "content %q", content)
	}
}

func TestScore_VeryShort(t *testing.T) {
	assert.Equal(t, 0.6, Score("short msg"))
	assert.Equal(t, 0.6, Score("see you at 3"))
}

func TestScore_EmojiHeavy(t *testing.T) {
	// Long enough to dodge the short rule, dense enough in symbols.
	assert.Equal(t, 0.5, Score("🎉🎉🎉🎉🎉🎉 great launch 🎉🎉🎉🎉🎉🎉"))
}

func TestScore_ShortAndEmojiDenseIsCertainNoise(t *testing.T) {
	assert.Equal(t, 1.0, Score("yay 🎉🎉🎉"))
}

func TestScore_Signal(t *testing.T) {
	assert.Equal(t, 0.0, Score("Decision: SQLite, FastAPI backend, React frontend."))
	assert.Equal(t, 0.0, Score("Agreed, no staging environment."))
}

func TestScore_Pure(t *testing.T) {
	content := "we should revisit the deploy pipeline"
	first := Score(content)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(content))
	}
}

func TestScores_OrderPreserving(t *testing.T) {
	msgs := []transcript.Message{
		{Author: "a", Content: "ok"},
		{Author: "b", Content: "we decided to ship friday after review"},
		{Author: "c", Content: "yep"},
	}
	assert.Equal(t, []float64{1.0, 0.0, 1.0}, Scores(msgs))
}

func TestFilterClusters_PartitionsExactly(t *testing.T) {
	msgs := []transcript.Message{
		{Author: "a", Content: "we decided to ship friday after review"},
		{Author: "b", Content: "ok"},
		{Author: "c", Content: "lol"},
		{Author: "d", Content: "blocked on env vars in production"},
	}
	scores := Scores(msgs)
	clusters := []clustering.TopicCluster{
		{TopicID: 0, TopicName: "Topic 0", MessageIndices: []int{0, 1}, MessageCount: 2, Messages: msgs[0:2]},
		{TopicID: clustering.NoiseLabel, TopicName: "Unclustered", MessageIndices: []int{2, 3}, MessageCount: 2, Messages: msgs[2:4]},
	}

	filtered := FilterClusters(clusters, msgs, scores, DefaultThreshold)

	require.Len(t, filtered, 2)
	seen := map[int]int{}
	for i, c := range filtered {
		assert.Equal(t, c.MessageCount+c.FilteredCount, clusters[i].MessageCount,
			"kept + filtered must equal the original member count")
		assert.Len(t, c.Messages, c.MessageCount)
		for _, idx := range c.MessageIndices {
			seen[idx]++
		}
		for _, idx := range c.FilteredIndices {
			seen[idx]++
		}
	}
	for idx := range msgs {
		assert.Equal(t, 1, seen[idx], "index %d must appear exactly once", idx)
	}

	assert.Equal(t, []int{0}, filtered[0].MessageIndices)
	assert.Equal(t, []int{1}, filtered[0].FilteredIndices)
	assert.Equal(t, []int{3}, filtered[1].MessageIndices)
	assert.Equal(t, []int{2}, filtered[1].FilteredIndices)
}

func TestFilterClusters_NothingFiltered(t *testing.T) {
	msgs := []transcript.Message{
		{Author: "a", Content: "we decided to ship friday after review"},
	}
	clusters := []clustering.TopicCluster{
		{TopicID: 0, TopicName: "Topic 0", MessageIndices: []int{0}, MessageCount: 1, Messages: msgs},
	}

	filtered := FilterClusters(clusters, msgs, Scores(msgs), DefaultThreshold)

	assert.Equal(t, 1, filtered[0].MessageCount)
	assert.Equal(t, 0, filtered[0].FilteredCount)
	assert.Empty(t, filtered[0].FilteredIndices)
}
