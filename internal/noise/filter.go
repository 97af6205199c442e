package noise

import (
	"github.com/fyrsmithlabs/distilld/internal/clustering"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

// FilterClusters moves messages whose noise score meets or exceeds the
// threshold from each cluster's kept set into its filtered set. Filtered
// messages stay part of the session record; nothing is deleted, and
// kept + filtered always partition the cluster's original members.
func FilterClusters(clusters []clustering.TopicCluster, msgs []transcript.Message, scores []float64, threshold float64) []clustering.TopicCluster {
	out := make([]clustering.TopicCluster, len(clusters))
	for ci, c := range clusters {
		kept := make([]int, 0, len(c.MessageIndices))
		var filtered []int
		for _, idx := range c.MessageIndices {
			if idx < len(scores) && scores[idx] >= threshold {
				filtered = append(filtered, idx)
			} else {
				kept = append(kept, idx)
			}
		}
		msgList := make([]transcript.Message, len(kept))
		for i, idx := range kept {
			msgList[i] = msgs[idx]
		}
		out[ci] = clustering.TopicCluster{
			TopicID:         c.TopicID,
			TopicName:       c.TopicName,
			MessageIndices:  kept,
			FilteredIndices: filtered,
			MessageCount:    len(kept),
			FilteredCount:   len(filtered),
			Messages:        msgList,
		}
	}
	return out
}
