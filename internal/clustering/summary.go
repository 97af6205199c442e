package clustering

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

// TopicCluster is one topic's view of the session: the member message
// indices into the session's message list, plus the indices moved aside
// by noise filtering. Kept and filtered sets are disjoint, and across all
// clusters their union covers every original index exactly once.
type TopicCluster struct {
	TopicID         int                  `json:"topic_id"`
	TopicName       string               `json:"topic_name"`
	MessageIndices  []int                `json:"message_indices"`
	FilteredIndices []int                `json:"filtered_indices"`
	MessageCount    int                  `json:"message_count"`
	FilteredCount   int                  `json:"filtered_count"`
	Messages        []transcript.Message `json:"messages"`
}

// TopicName renders the display name for a cluster label.
func TopicName(label int) string {
	if label == NoiseLabel {
		return "Unclustered"
	}
	return fmt.Sprintf("Topic %d", label)
}

// Summarize groups message indices by cluster label and orders clusters
// by descending member count. Ties keep the order in which labels first
// appear in the message sequence.
func Summarize(labels []int, msgs []transcript.Message) []TopicCluster {
	var order []int
	members := make(map[int][]int)
	for i, label := range labels {
		if _, seen := members[label]; !seen {
			order = append(order, label)
		}
		members[label] = append(members[label], i)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return len(members[order[a]]) > len(members[order[b]])
	})

	clusters := make([]TopicCluster, 0, len(order))
	for _, label := range order {
		indices := members[label]
		msgList := make([]transcript.Message, len(indices))
		for i, idx := range indices {
			msgList[i] = msgs[idx]
		}
		clusters = append(clusters, TopicCluster{
			TopicID:        label,
			TopicName:      TopicName(label),
			MessageIndices: indices,
			MessageCount:   len(indices),
			Messages:       msgList,
		})
	}
	return clusters
}
