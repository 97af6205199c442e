// Package noise scores chat messages for signal content and filters
// high-noise messages out of topic clusters.
package noise

import (
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

// Score levels. Denylisted and short-but-emoji-dense content is certain
// noise; the fractional levels mark the weaker heuristics.
const (
	scoreNoise      = 1.0
	scoreShort      = 0.6
	scoreEmojiHeavy = 0.5

	// DefaultThreshold is the filtering cutoff: scores at or above it move
	// a message into a cluster's filtered set.
	DefaultThreshold = 0.7
)

// denylist of low-information tokens and phrases, matched case-insensitively
// after trimming.
var denylist = map[string]struct{}{
	"lol": {}, "lmao": {}, "haha": {}, "😂": {}, "👍": {}, "👌": {}, "🤣": {},
	"ok": {}, "k": {}, "yeah": {}, "yep": {}, "nice": {}, "cool": {},
	"same": {}, "+1": {}, "agreed": {}, "true": {}, "same here": {},
	"this": {}, "that meme": {}, "gold": {},
}

// isEmojiHeavy reports whether at least ratio of the trimmed content is
// emoji or non-word symbol runes. Content shorter than three runes never
// qualifies.
func isEmojiHeavy(text string, ratio float64) bool {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) < 3 {
		return false
	}
	count := 0
	for _, r := range []rune(text) {
		if isEmojiLike(r) {
			count++
		}
	}
	return float64(count)/float64(len(runes)) >= ratio
}

// isEmojiLike matches emoji blocks plus any rune that is neither a word
// character, whitespace, nor common punctuation.
func isEmojiLike(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F9FF: // pictographs, emoji
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '.', ',', '!', '?', ';', ':', '\'', '"', '-':
		return false
	}
	return true
}

// isVeryShort reports whether the trimmed content is under minRunes runes.
func isVeryShort(text string, minRunes int) bool {
	return len([]rune(strings.TrimSpace(text))) < minRunes
}

// isLikelyNoise applies the certain-noise heuristics: very short and
// emoji-dense content, then the denylist.
func isLikelyNoise(text string) bool {
	if isVeryShort(text, 10) && isEmojiHeavy(text, 0.3) {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	_, listed := denylist[lower]
	return listed
}

// Score assigns a noise score in [0,1] to one message's content.
// 0 is pure signal, 1 is certain noise. The function is pure: identical
// content always yields the identical score.
func Score(content string) float64 {
	text := strings.TrimSpace(content)
	switch {
	case isLikelyNoise(text):
		return scoreNoise
	case isVeryShort(text, 15):
		return scoreShort
	case isEmojiHeavy(text, 0.4):
		return scoreEmojiHeavy
	default:
		return 0.0
	}
}

// Scores computes one noise score per message, order-preserving.
func Scores(msgs []transcript.Message) []float64 {
	scores := make([]float64, len(msgs))
	for i, m := range msgs {
		scores[i] = Score(m.Content)
	}
	return scores
}
