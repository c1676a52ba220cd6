// Package dialogue drives the spoken confrontation with an unrecognized
// person: the four-level escalation ladder and the controller that turns
// level changes and replies into generated, synthesized speech.
package dialogue

import (
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/roomguard/pkg/provider/llm"
)

// MaxLevel is the top of the escalation ladder.
const MaxLevel = 4

// conversationTimeout caps a whole confrontation regardless of level.
const conversationTimeout = 120 * time.Second

// maxExchanges bounds the retained transcript.
const maxExchanges = 100

// LevelParams tunes the agent's delivery at one escalation level.
type LevelParams struct {
	// Duration is how long the agent stays at this level without a
	// satisfactory response before escalating.
	Duration time.Duration

	// Tone and Urgency steer the line generator.
	Tone    string
	Urgency string

	// MaxWords caps the generated line length. Higher levels get more
	// room for warnings and consequences.
	MaxWords int
}

var levelParams = map[int]LevelParams{
	1: {Duration: 15 * time.Second, Tone: "polite", Urgency: "low", MaxWords: 20},
	2: {Duration: 20 * time.Second, Tone: "firm", Urgency: "medium", MaxWords: 25},
	3: {Duration: 15 * time.Second, Tone: "stern", Urgency: "high", MaxWords: 30},
	4: {Duration: 30 * time.Second, Tone: "final warning", Urgency: "critical", MaxWords: 35},
}

// ParamsForLevel returns the delivery parameters for a level. Levels
// outside [1, MaxLevel] are clamped.
func ParamsForLevel(level int) LevelParams {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelParams[level]
}

// Action is the controller's next move after a person's reply.
type Action int

const (
	// ActionContinue keeps the conversation at the current level.
	ActionContinue Action = iota

	// ActionEscalate moves one level up.
	ActionEscalate

	// ActionClarify asks the person to repeat or expand.
	ActionClarify

	// ActionEnd closes the conversation as resolved.
	ActionEnd
)

// String returns the lowercase name of the action.
func (a Action) String() string {
	switch a {
	case ActionEscalate:
		return "escalate"
	case ActionClarify:
		return "clarify"
	case ActionEnd:
		return "end"
	default:
		return "continue"
	}
}

// Summary describes a finished confrontation.
type Summary struct {
	Reason      string
	StartedAt   time.Time
	Duration    time.Duration
	FinalLevel  int
	Escalations int

	// MaxLevelReached equals FinalLevel while the ladder only moves up;
	// it is reported separately so summaries stay meaningful if levels
	// ever become reducible.
	MaxLevelReached int

	Exchanges  int
	Transcript []llm.Exchange
}

// Escalation tracks one confrontation: the current level, its timing,
// and the exchange transcript.
//
// All methods are safe for concurrent use.
type Escalation struct {
	mu             sync.Mutex
	startedAt      time.Time
	level          int
	levelStartedAt time.Time
	escalations    int
	exchanges      []llm.Exchange
	ended          bool

	now func() time.Time
}

// NewEscalation starts a confrontation at level 1.
func NewEscalation() *Escalation {
	e := &Escalation{now: time.Now}
	e.startedAt = e.now()
	e.level = 1
	e.levelStartedAt = e.startedAt
	return e
}

// Level returns the current escalation level.
func (e *Escalation) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Params returns the delivery parameters of the current level.
func (e *Escalation) Params() LevelParams {
	return ParamsForLevel(e.Level())
}

// Escalate moves one level up and restarts the level clock. At MaxLevel
// it returns false and changes nothing.
func (e *Escalation) Escalate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended || e.level >= MaxLevel {
		return false
	}
	e.level++
	e.escalations++
	e.levelStartedAt = e.now()
	return true
}

// ShouldEscalate reports whether the current level has run out its
// duration without resolution.
func (e *Escalation) ShouldEscalate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return false
	}
	return e.now().Sub(e.levelStartedAt) >= levelParams[e.level].Duration
}

// Expired reports whether the confrontation as a whole has exceeded the
// conversation timeout.
func (e *Escalation) Expired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return false
	}
	return e.now().Sub(e.startedAt) >= conversationTimeout
}

// RecordAgentLine appends a spoken agent line to the transcript.
func (e *Escalation) RecordAgentLine(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exchanges = append(e.exchanges, llm.Exchange{AgentLine: line})
	if len(e.exchanges) > maxExchanges {
		e.exchanges = e.exchanges[len(e.exchanges)-maxExchanges:]
	}
}

// AttachReply sets the person's reply on the most recent exchange. A
// reply with no preceding agent line gets its own transcript entry.
func (e *Escalation) AttachReply(reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.exchanges); n > 0 && e.exchanges[n-1].PersonReply == "" {
		e.exchanges[n-1].PersonReply = reply
		return
	}
	e.exchanges = append(e.exchanges, llm.Exchange{PersonReply: reply})
}

// History returns up to limit most recent exchanges, oldest first. A
// non-positive limit returns the full retained transcript.
func (e *Escalation) History(limit int) []llm.Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.exchanges)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]llm.Exchange, n)
	copy(out, e.exchanges[len(e.exchanges)-n:])
	return out
}

// ProcessResponse classifies a reply and decides the next move:
//
//   - compliance ("I'm leaving", apologies) ends the confrontation
//   - hostility escalates immediately
//   - cooperation (explaining who they are) continues at the current level
//   - anything too short to read asks for clarification
//   - neutral replies are accepted at low levels but escalate once the
//     confrontation has already reached level 3
func (e *Escalation) ProcessResponse(reply string) Action {
	text := strings.ToLower(strings.TrimSpace(reply))
	if len(text) < 5 {
		return ActionClarify
	}

	switch classify(text) {
	case responseCompliant:
		return ActionEnd
	case responseHostile:
		return ActionEscalate
	case responseCooperative:
		return ActionContinue
	default:
		if e.Level() >= 3 {
			return ActionEscalate
		}
		return ActionContinue
	}
}

// End closes the confrontation and returns its summary. Ending twice is
// safe; the second call reflects the already-ended state.
func (e *Escalation) End(reason string) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ended = true
	transcript := make([]llm.Exchange, len(e.exchanges))
	copy(transcript, e.exchanges)
	return Summary{
		Reason:          reason,
		StartedAt:       e.startedAt,
		Duration:        e.now().Sub(e.startedAt),
		FinalLevel:      e.level,
		Escalations:     e.escalations,
		MaxLevelReached: e.level,
		Exchanges:       len(e.exchanges),
		Transcript:      transcript,
	}
}

// Ended reports whether End has been called.
func (e *Escalation) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

type responseClass int

const (
	responseNeutral responseClass = iota
	responseCompliant
	responseCooperative
	responseHostile
)

var (
	compliantMarkers = []string{
		"i'm leaving", "im leaving", "leaving now", "i'll go", "ill go",
		"i'll leave", "ill leave", "on my way out", "my mistake",
		"wrong room", "sorry", "apolog",
	}
	cooperativeMarkers = []string{
		"my name is", "i'm a friend", "im a friend", "friend of",
		"i was invited", "invited me", "i live here", "i'm here to",
		"im here to", "looking for", "i work", "delivery", "i know",
	}
	hostileMarkers = []string{
		"shut up", "go away", "none of your business", "screw you",
		"fuck", "make me", "whatever", "not telling", "no way",
		"mind your own", "get lost", "leave me alone",
	}
)

func classify(text string) responseClass {
	for _, m := range hostileMarkers {
		if strings.Contains(text, m) {
			return responseHostile
		}
	}
	for _, m := range compliantMarkers {
		if strings.Contains(text, m) {
			return responseCompliant
		}
	}
	for _, m := range cooperativeMarkers {
		if strings.Contains(text, m) {
			return responseCooperative
		}
	}
	return responseNeutral
}
