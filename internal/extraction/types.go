// Package extraction turns topic clusters into structured project
// intelligence (decisions, action items, responsibilities, open
// questions, critical notes) via an external reasoning service, and
// generates the session prose summary.
package extraction

import (
	"encoding/json"
	"fmt"
)

// Decision is a key decision made in the conversation.
type Decision struct {
	Description  string   `json:"description"`
	Context      string   `json:"context,omitempty"`
	Participants []string `json:"participants"`
}

// ActionItem is a concrete task to be done.
type ActionItem struct {
	Task       string `json:"task"`
	Assignee   string `json:"assignee,omitempty"`
	DueContext string `json:"due_context,omitempty"`
}

// Responsibility records who is responsible for what.
type Responsibility struct {
	Person         string `json:"person"`
	Responsibility string `json:"responsibility"`
}

// OpenQuestion is a question raised but not yet answered.
type OpenQuestion struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// CriticalNote is a blocker, risk or dependency.
type CriticalNote struct {
	Note     string `json:"note"`
	Category string `json:"category,omitempty"`
}

// ClusterExtraction is the structured output for one cluster. The zero
// value is the empty-default every failure path degrades to.
type ClusterExtraction struct {
	Decisions        []Decision       `json:"decisions"`
	ActionItems      []ActionItem     `json:"action_items"`
	Responsibilities []Responsibility `json:"responsibilities"`
	OpenQuestions    []OpenQuestion   `json:"open_questions"`
	CriticalNotes    []CriticalNote   `json:"critical_notes"`
	Summary          string           `json:"summary,omitempty"`
}

// TopicExtraction pairs a ClusterExtraction with its topic for the
// processed result.
type TopicExtraction struct {
	TopicID    int               `json:"topic_id"`
	TopicName  string            `json:"topic_name"`
	Extraction ClusterExtraction `json:"extraction"`
}

// decodeExtraction tolerantly decodes the service's JSON. Each list entry
// defaults its required field independently instead of rejecting the
// whole object; only content that fails to parse as JSON at all yields an
// error (and with it, the empty-default extraction).
func decodeExtraction(content []byte) (ClusterExtraction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return ClusterExtraction{}, fmt.Errorf("extraction response is not a JSON object: %w", err)
	}

	var out ClusterExtraction
	for _, item := range decodeItems(raw["decisions"]) {
		out.Decisions = append(out.Decisions, Decision{
			Description:  requiredString(item, "description"),
			Context:      optionalString(item, "context"),
			Participants: stringList(item["participants"]),
		})
	}
	for _, item := range decodeItems(raw["action_items"]) {
		out.ActionItems = append(out.ActionItems, ActionItem{
			Task:       requiredString(item, "task"),
			Assignee:   optionalString(item, "assignee"),
			DueContext: optionalString(item, "due_context"),
		})
	}
	for _, item := range decodeItems(raw["responsibilities"]) {
		out.Responsibilities = append(out.Responsibilities, Responsibility{
			Person:         optionalString(item, "person"),
			Responsibility: requiredString(item, "responsibility"),
		})
	}
	for _, item := range decodeItems(raw["open_questions"]) {
		out.OpenQuestions = append(out.OpenQuestions, OpenQuestion{
			Question: requiredString(item, "question"),
			Context:  optionalString(item, "context"),
		})
	}
	for _, item := range decodeItems(raw["critical_notes"]) {
		out.CriticalNotes = append(out.CriticalNotes, CriticalNote{
			Note:     requiredString(item, "note"),
			Category: optionalString(item, "category"),
		})
	}
	if s, ok := decodeString(raw["summary"]); ok {
		out.Summary = s
	}
	return out, nil
}

// decodeItems returns the object entries of a JSON list, skipping
// anything that is not an object.
func decodeItems(raw json.RawMessage) []map[string]any {
	if raw == nil {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	items := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		var item map[string]any
		if err := json.Unmarshal(entry, &item); err == nil {
			items = append(items, item)
		}
	}
	return items
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// requiredString returns the field as a string, echoing the whole item
// back as compact JSON when the field is missing or malformed.
func requiredString(item map[string]any, key string) string {
	if s, ok := item[key].(string); ok {
		return s
	}
	b, err := json.Marshal(item)
	if err != nil {
		return ""
	}
	return string(b)
}

// optionalString returns the field as a string, or "".
func optionalString(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

// stringList coerces a field into a list of strings, dropping non-string
// entries.
func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
