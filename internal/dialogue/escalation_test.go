package dialogue

import (
	"testing"
	"time"
)

func newTestEscalation() (*Escalation, *time.Time) {
	now := time.Date(2026, 8, 1, 22, 0, 0, 0, time.UTC)
	e := &Escalation{now: func() time.Time { return now }}
	e.startedAt = now
	e.level = 1
	e.levelStartedAt = now
	return e, &now
}

func TestEscalationLadder(t *testing.T) {
	t.Parallel()

	e, _ := newTestEscalation()
	if e.Level() != 1 {
		t.Fatalf("initial level = %d, want 1", e.Level())
	}

	for want := 2; want <= MaxLevel; want++ {
		if !e.Escalate() {
			t.Fatalf("Escalate() to %d = false", want)
		}
		if e.Level() != want {
			t.Fatalf("Level() = %d, want %d", e.Level(), want)
		}
	}

	// At the top the ladder stops; no wraparound, no side effect.
	if e.Escalate() {
		t.Fatal("Escalate() at MaxLevel should return false")
	}
	if e.Level() != MaxLevel {
		t.Fatalf("Level() after refused escalation = %d, want %d", e.Level(), MaxLevel)
	}
}

func TestEscalationLevelParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level    int
		duration time.Duration
		maxWords int
	}{
		{1, 15 * time.Second, 20},
		{2, 20 * time.Second, 25},
		{3, 15 * time.Second, 30},
		{4, 30 * time.Second, 35},
		{0, 15 * time.Second, 20},  // clamped up
		{9, 30 * time.Second, 35},  // clamped down
	}
	for _, tt := range tests {
		p := ParamsForLevel(tt.level)
		if p.Duration != tt.duration {
			t.Errorf("ParamsForLevel(%d).Duration = %v, want %v", tt.level, p.Duration, tt.duration)
		}
		if p.MaxWords != tt.maxWords {
			t.Errorf("ParamsForLevel(%d).MaxWords = %d, want %d", tt.level, p.MaxWords, tt.maxWords)
		}
	}
}

func TestEscalationShouldEscalate(t *testing.T) {
	t.Parallel()

	e, now := newTestEscalation()
	if e.ShouldEscalate() {
		t.Fatal("fresh level should not demand escalation")
	}

	*now = now.Add(14 * time.Second)
	if e.ShouldEscalate() {
		t.Fatal("level 1 at 14s should not demand escalation")
	}

	*now = now.Add(time.Second)
	if !e.ShouldEscalate() {
		t.Fatal("level 1 at 15s should demand escalation")
	}

	// Escalating restarts the level clock.
	e.Escalate()
	if e.ShouldEscalate() {
		t.Fatal("fresh level 2 should not demand escalation")
	}
	*now = now.Add(20 * time.Second)
	if !e.ShouldEscalate() {
		t.Fatal("level 2 at 20s should demand escalation")
	}
}

func TestEscalationExpired(t *testing.T) {
	t.Parallel()

	e, now := newTestEscalation()
	*now = now.Add(119 * time.Second)
	if e.Expired() {
		t.Fatal("not expired at 119s")
	}
	*now = now.Add(time.Second)
	if !e.Expired() {
		t.Fatal("expired at 120s")
	}

	e.End("timeout")
	if e.Expired() {
		t.Fatal("ended escalation should not report expired")
	}
}

func TestEscalationProcessResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		level int
		want  Action
	}{
		{"compliance ends", "okay okay, I'm leaving right now", 2, ActionEnd},
		{"apology ends", "sorry, wrong room", 1, ActionEnd},
		{"hostility escalates", "go away, none of your business", 1, ActionEscalate},
		{"profanity escalates", "fuck off", 2, ActionEscalate},
		{"cooperation continues", "my name is Sam, I was invited by Alex", 2, ActionContinue},
		{"identification continues", "I'm a friend of the owner", 3, ActionContinue},
		{"too short clarifies", "uh", 1, ActionClarify},
		{"neutral accepted early", "the weather is nice today", 1, ActionContinue},
		{"neutral accepted at two", "the weather is nice today", 2, ActionContinue},
		{"neutral escalates late", "the weather is nice today", 3, ActionEscalate},
		{"neutral escalates at four", "the weather is nice today", 4, ActionEscalate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestEscalation()
			for e.Level() < tt.level {
				e.Escalate()
			}
			if got := e.ProcessResponse(tt.reply); got != tt.want {
				t.Errorf("ProcessResponse(%q) at level %d = %s, want %s", tt.reply, tt.level, got, tt.want)
			}
		})
	}
}

func TestEscalationTranscript(t *testing.T) {
	t.Parallel()

	e, _ := newTestEscalation()
	e.RecordAgentLine("Hello, who are you?")
	e.AttachReply("none of your business")
	e.RecordAgentLine("Identify yourself now.")

	hist := e.History(0)
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].AgentLine != "Hello, who are you?" || hist[0].PersonReply != "none of your business" {
		t.Errorf("first exchange = %+v", hist[0])
	}
	if hist[1].PersonReply != "" {
		t.Errorf("second exchange has unexpected reply %q", hist[1].PersonReply)
	}

	// A reply with no open agent line gets its own entry.
	e.AttachReply("fine")
	e.AttachReply("I said fine")
	hist = e.History(0)
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[2].PersonReply != "I said fine" {
		t.Errorf("third exchange reply = %q, want I said fine", hist[2].PersonReply)
	}

	if got := len(e.History(2)); got != 2 {
		t.Errorf("History(2) length = %d, want 2", got)
	}
}

func TestEscalationTranscriptBounded(t *testing.T) {
	t.Parallel()

	e, _ := newTestEscalation()
	for i := 0; i < maxExchanges+10; i++ {
		e.RecordAgentLine("line")
	}
	if got := len(e.History(0)); got != maxExchanges {
		t.Fatalf("history length = %d, want %d", got, maxExchanges)
	}
}

func TestEscalationEnd(t *testing.T) {
	t.Parallel()

	e, now := newTestEscalation()
	e.RecordAgentLine("who are you")
	e.Escalate()
	*now = now.Add(42 * time.Second)

	sum := e.End("person-left")
	if sum.Reason != "person-left" {
		t.Errorf("Reason = %q", sum.Reason)
	}
	if sum.FinalLevel != 2 {
		t.Errorf("FinalLevel = %d, want 2", sum.FinalLevel)
	}
	if sum.Escalations != 1 {
		t.Errorf("Escalations = %d, want 1", sum.Escalations)
	}
	if sum.MaxLevelReached != 2 {
		t.Errorf("MaxLevelReached = %d, want 2", sum.MaxLevelReached)
	}
	if sum.Duration != 42*time.Second {
		t.Errorf("Duration = %v, want 42s", sum.Duration)
	}
	if sum.Exchanges != 1 || len(sum.Transcript) != 1 {
		t.Errorf("Exchanges = %d, Transcript = %d, want 1/1", sum.Exchanges, len(sum.Transcript))
	}
	if !e.Ended() {
		t.Error("Ended() = false after End")
	}
	if e.Escalate() {
		t.Error("Escalate() after End should return false")
	}
	if e.ShouldEscalate() {
		t.Error("ShouldEscalate() after End should return false")
	}
}
