// Package transcript turns raw chat logs in several formats into
// canonical Message records.
package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies where a transcript came from.
type Source string

const (
	// SourcePaste marks messages parsed from pasted text.
	SourcePaste Source = "paste"
	// SourceUpload marks messages parsed from an uploaded file.
	SourceUpload Source = "upload"
	// SourceDiscord marks messages relayed by the Discord bot.
	SourceDiscord Source = "discord"
)

// Message is one canonical chat utterance. Messages are immutable once
// created; downstream stages index and embed them but never mutate them.
type Message struct {
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Source    Source     `json:"source"`
}

// Display formats the message for cluster views and LLM prompts.
func (m Message) Display() string {
	if m.Timestamp != nil {
		return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04"), m.Author, m.Content)
	}
	return fmt.Sprintf("%s: %s", m.Author, m.Content)
}

// TimestampISO returns the timestamp in ISO-8601 form, or "" when absent.
func (m Message) TimestampISO() string {
	if m.Timestamp == nil {
		return ""
	}
	return m.Timestamp.Format(time.RFC3339)
}

// MarshalJSON emits the wire shape: timestamp as ISO-8601 or omitted.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Author    string `json:"author"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp,omitempty"`
		Source    Source `json:"source"`
	}
	w := wire{Author: m.Author, Content: m.Content, Source: m.Source}
	if m.Timestamp != nil {
		w.Timestamp = m.Timestamp.Format(time.RFC3339)
	}
	return json.Marshal(w)
}

// Authors returns the distinct author names in first-appearance order.
func Authors(msgs []Message) []string {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.Author]; ok {
			continue
		}
		seen[m.Author] = struct{}{}
		out = append(out, m.Author)
	}
	return out
}
