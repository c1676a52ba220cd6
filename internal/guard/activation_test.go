package guard

import "testing"

var guardPhrases = []string{"activate guard", "guard the room", "start guarding"}

func TestPhraseMatcherExactSubstring(t *testing.T) {
	t.Parallel()

	m := NewPhraseMatcher(guardPhrases, 0.8)

	phrase, score, ok := m.Match("Hey, please activate guard mode now")
	if !ok {
		t.Fatal("expected match")
	}
	if phrase != "activate guard" {
		t.Errorf("phrase = %q, want activate guard", phrase)
	}
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0 for substring hit", score)
	}
}

func TestPhraseMatcherFuzzy(t *testing.T) {
	t.Parallel()

	m := NewPhraseMatcher(guardPhrases, 0.8)

	tests := []struct {
		name       string
		transcript string
		want       bool
	}{
		{"slight transcription error", "activate gard", true},
		{"case and whitespace", "  ACTIVATE GUARD  ", true},
		{"buried in chatter", "um could you start guardin please", true},
		{"unrelated speech", "what time is dinner tonight", false},
		{"empty transcript", "", false},
		{"whitespace only", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, score, ok := m.Match(tt.transcript)
			if ok != tt.want {
				t.Errorf("Match(%q) = %v (score %.3f), want %v", tt.transcript, ok, score, tt.want)
			}
		})
	}
}

func TestPhraseMatcherThresholdFallback(t *testing.T) {
	t.Parallel()

	m := NewPhraseMatcher([]string{"stop guarding"}, 0)
	if m.threshold != defaultSimilarity {
		t.Fatalf("threshold = %v, want default %v", m.threshold, defaultSimilarity)
	}
}

func TestPhraseMatcherNormalizesPhrases(t *testing.T) {
	t.Parallel()

	m := NewPhraseMatcher([]string{"  Stop Guarding  ", "", "Stand Down"}, 0.8)
	got := m.Phrases()
	want := []string{"stop guarding", "stand down"}
	if len(got) != len(want) {
		t.Fatalf("Phrases() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Phrases()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
