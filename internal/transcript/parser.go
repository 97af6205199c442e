package transcript

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors for transcript parsing.
var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// .txt, .json and .csv.
	ErrUnsupportedFormat = errors.New("unsupported transcript format")

	// ErrParse indicates input that could not be tokenized at all.
	ErrParse = errors.New("transcript parse failed")
)

// Line grammars in order of specificity. A grammar wins if it matches at
// least one line across the whole input; the parser never mixes grammars.
var (
	// [2024-01-15 14:30] Author: content
	reDateTimeLine = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}(?::\d{2})?)\]\s+([^:]+?):\s*(.*)$`)

	// [14:30] Author: content
	reTimeLine = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\]\s+([^:]+?):\s*(.*)$`)

	// Author: content
	reAuthorLine = regexp.MustCompile(`^([^:]+?):\s*(.+)$`)
)

// timeNow is swappable in tests; time-only stamps are normalized onto the
// current date.
var timeNow = time.Now

// ParsePaste parses raw pasted chat text. It tries the three line grammars
// in order of specificity and keeps the first that yields any match.
// Duplicate (author, content) pairs within one parse collapse to a single
// message, which makes parsing idempotent against doubled paste.
func ParsePaste(text string, source Source) []Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	for _, grammar := range []*regexp.Regexp{reDateTimeLine, reTimeLine, reAuthorLine} {
		msgs := parseLines(lines, grammar, source)
		if len(msgs) > 0 {
			return msgs
		}
	}
	return nil
}

// parseLines applies one grammar to every line. Lines with an empty author
// or empty content after trimming never produce a record.
func parseLines(lines []string, grammar *regexp.Regexp, source Source) []Message {
	var msgs []Message
	seen := make(map[[2]string]struct{})

	for _, line := range lines {
		m := grammar.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}

		var tsRaw, author, content string
		if len(m) == 4 {
			tsRaw, author, content = m[1], m[2], m[3]
		} else {
			author, content = m[1], m[2]
		}
		author = strings.TrimSpace(author)
		content = strings.TrimSpace(content)
		if author == "" || content == "" {
			continue
		}

		key := [2]string{author, content}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		msgs = append(msgs, Message{
			Author:    author,
			Content:   content,
			Timestamp: parseClock(tsRaw),
			Source:    source,
		})
	}
	return msgs
}

// parseClock parses bracketed timestamps from the plain-text grammars.
// Time-only values are placed on the current date. Unparsable input yields
// nil rather than an error; the grammars never reject on timestamp.
func parseClock(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// "3:04" variants cover single-digit hours, which "15:04" rejects.
	for _, layout := range []string{"15:04:05", "15:04", "3:04:05", "3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			now := timeNow()
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
			return &t
		}
	}
	return nil
}

// ParseFile parses an uploaded chat file by extension. Supported: .txt,
// .json, .csv. Anything else fails with ErrUnsupportedFormat.
func ParseFile(filename string, data []byte, source Source) ([]Message, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return ParsePaste(string(data), source), nil
	case ".json":
		return parseJSON(data, source)
	case ".csv":
		return parseCSV(data, source)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Accepted field aliases for JSON and CSV records, in resolution order.
var (
	authorAliases    = []string{"author", "username", "user"}
	contentAliases   = []string{"content", "message", "text"}
	timestampAliases = []string{"timestamp", "date", "created_at"}
)

// parseJSON accepts either {"messages": [...]} or a bare top-level list.
func parseJSON(data []byte, source Source) ([]Message, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrParse, err)
	}

	var items []any
	switch v := root.(type) {
	case map[string]any:
		items, _ = v["messages"].([]any)
	case []any:
		items = v
	}

	var msgs []Message
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		author := resolveAuthor(item)
		content := strings.TrimSpace(resolveString(item, contentAliases))
		if author == "" || content == "" {
			continue
		}
		msgs = append(msgs, Message{
			Author:    author,
			Content:   content,
			Timestamp: resolveTimestamp(item),
			Source:    source,
		})
	}
	return msgs, nil
}

// resolveString returns the first alias present with a string value.
func resolveString(item map[string]any, aliases []string) string {
	for _, key := range aliases {
		if v, ok := item[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// resolveAuthor resolves the author aliases, unwrapping nested author
// objects (Discord exports) via their name/username field.
func resolveAuthor(item map[string]any) string {
	for _, key := range authorAliases {
		v, ok := item[key]
		if !ok {
			continue
		}
		switch a := v.(type) {
		case string:
			if s := strings.TrimSpace(a); s != "" {
				return s
			}
		case map[string]any:
			if s := strings.TrimSpace(resolveString(a, []string{"name", "username"})); s != "" {
				return s
			}
		}
	}
	return ""
}

// resolveTimestamp accepts ISO-8601 strings or numeric epoch seconds.
// Unparsable timestamps drop to nil rather than failing the parse.
func resolveTimestamp(item map[string]any) *time.Time {
	for _, key := range timestampAliases {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch ts := v.(type) {
		case string:
			if t := parseISO(ts); t != nil {
				return t
			}
		case float64:
			t := time.Unix(int64(ts), 0)
			return &t
		}
	}
	return nil
}

// parseISO parses ISO-8601 with a trailing Z normalized to an explicit
// offset, plus the naive forms common in chat exports.
func parseISO(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseCSV reads one row per message, resolving the same field aliases as
// JSON against the header, case-insensitively.
func parseCSV(data []byte, source Source) ([]Message, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CSV: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	authorCol := findColumn(header, authorAliases)
	contentCol := findColumn(header, contentAliases)
	tsCol := findColumn(header, timestampAliases)

	var msgs []Message
	for _, row := range records[1:] {
		author := strings.TrimSpace(cell(row, authorCol))
		content := strings.TrimSpace(cell(row, contentCol))
		if author == "" || content == "" {
			continue
		}
		msg := Message{Author: author, Content: content, Source: source}
		if raw := strings.TrimSpace(cell(row, tsCol)); raw != "" {
			if t := parseISO(raw); t != nil {
				msg.Timestamp = t
			} else if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
				msg.Timestamp = &t
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// findColumn returns the index of the first header matching any alias,
// or -1 when absent.
func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), alias) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
