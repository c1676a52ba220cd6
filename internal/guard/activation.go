package guard

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSimilarity is the Jaro-Winkler score a transcript must reach
// against some phrase to count as a match. Whisper often garbles wake
// phrases slightly ("activate guard" as "activates god"), so exact
// matching alone misses too much.
const defaultSimilarity = 0.8

// PhraseMatcher checks transcripts against a set of command phrases,
// tolerating transcription noise via fuzzy matching.
type PhraseMatcher struct {
	phrases   []string
	threshold float64
}

// NewPhraseMatcher creates a matcher over the given phrases. Phrases are
// lowercased once up front. A non-positive threshold falls back to the
// default of 0.8.
func NewPhraseMatcher(phrases []string, threshold float64) *PhraseMatcher {
	if threshold <= 0 {
		threshold = defaultSimilarity
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &PhraseMatcher{phrases: normalized, threshold: threshold}
}

// Match reports whether transcript contains or closely resembles one of
// the phrases, returning the matched phrase and its similarity score.
// A direct substring hit scores 1.0. Otherwise every phrase is compared
// against the whole transcript and against each window of the same word
// length, keeping the best Jaro-Winkler score.
func (m *PhraseMatcher) Match(transcript string) (phrase string, score float64, ok bool) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	if text == "" {
		return "", 0, false
	}

	bestPhrase, bestScore := "", 0.0
	words := strings.Fields(text)

	for _, p := range m.phrases {
		if strings.Contains(text, p) {
			return p, 1.0, true
		}

		if s := matchr.JaroWinkler(text, p, false); s > bestScore {
			bestPhrase, bestScore = p, s
		}

		// Slide a window of the phrase's word count over the transcript, so
		// a phrase buried in surrounding chatter still scores well.
		n := len(strings.Fields(p))
		for i := 0; i+n <= len(words); i++ {
			window := strings.Join(words[i:i+n], " ")
			if s := matchr.JaroWinkler(window, p, false); s > bestScore {
				bestPhrase, bestScore = p, s
			}
		}
	}

	if bestScore >= m.threshold {
		return bestPhrase, bestScore, true
	}
	return "", bestScore, false
}

// Phrases returns the normalized phrase set.
func (m *PhraseMatcher) Phrases() []string {
	out := make([]string, len(m.phrases))
	copy(out, m.phrases)
	return out
}
