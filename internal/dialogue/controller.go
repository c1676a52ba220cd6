package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/roomguard/internal/observe"
	"github.com/MrWong99/roomguard/pkg/provider/llm"
	"github.com/MrWong99/roomguard/pkg/provider/tts"
)

const (
	// defaultCheckInterval is how often the watchdog evaluates timeouts.
	defaultCheckInterval = time.Second

	// defaultMaxSilence is how long the agent waits for any reply before
	// escalating on its own.
	defaultMaxSilence = 15 * time.Second

	// defaultHistoryLimit caps the transcript replayed to the generator.
	defaultHistoryLimit = 10

	// playbackGrace bounds how long a reply or shutdown waits for an
	// in-flight speech cycle to finish before forcing it to stop.
	playbackGrace = 10 * time.Second
)

// fallbackLines keep the confrontation going when the generator fails.
var fallbackLines = map[int]string{
	1: "Hello. I don't recognize you. Could you tell me who you are?",
	2: "I need you to identify yourself. Who are you and why are you here?",
	3: "You are not authorized to be here. Identify yourself immediately.",
	4: "This is your final warning. Leave now or security will be alerted.",
}

// Controller runs one confrontation at a time: it generates lines at the
// current escalation level, speaks them, and reacts to replies and
// silence. A background watchdog escalates on level timeouts and ends
// the conversation when it expires.
//
// All methods are safe for concurrent use.
type Controller struct {
	generator llm.Generator
	speaker   tts.Speaker

	checkInterval time.Duration
	maxSilence    time.Duration
	historyLimit  int
	metrics       *observe.Metrics

	onEscalated func(level int)
	onEnd       func(Summary)

	mu           sync.Mutex
	esc          *Escalation
	cancel       context.CancelFunc
	watchdogDone chan struct{}
	lastActivity time.Time

	speaking atomic.Bool
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithCheckInterval sets the watchdog tick. Default: 1s.
func WithCheckInterval(d time.Duration) Option {
	return func(c *Controller) { c.checkInterval = d }
}

// WithMaxSilence sets the silence window before the agent escalates
// unprompted. Default: 15s.
func WithMaxSilence(d time.Duration) Option {
	return func(c *Controller) { c.maxSilence = d }
}

// WithHistoryLimit caps how many past exchanges are replayed to the line
// generator. Default: 10.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) { c.historyLimit = n }
}

// WithMetrics overrides the metrics instance used for generation and
// synthesis latency. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithOnEscalated registers a hook invoked after each successful
// escalation with the new level.
func WithOnEscalated(fn func(level int)) Option {
	return func(c *Controller) { c.onEscalated = fn }
}

// WithOnEnd registers a hook invoked with the summary of every finished
// conversation, however it ended.
func WithOnEnd(fn func(Summary)) Option {
	return func(c *Controller) { c.onEnd = fn }
}

// NewController creates a Controller speaking through speaker with lines
// from generator.
func NewController(generator llm.Generator, speaker tts.Speaker, opts ...Option) *Controller {
	c := &Controller{
		generator:     generator,
		speaker:       speaker,
		checkInterval: defaultCheckInterval,
		maxSilence:    defaultMaxSilence,
		historyLimit:  defaultHistoryLimit,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Active reports whether a conversation is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.esc != nil
}

// Level returns the current escalation level, or 0 when idle.
func (c *Controller) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.esc == nil {
		return 0
	}
	return c.esc.Level()
}

// Start begins a confrontation: it speaks the opening line and launches
// the timeout watchdog. Starting while a conversation is active is an
// error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.esc != nil {
		c.mu.Unlock()
		return fmt.Errorf("dialogue: conversation already active")
	}
	esc := NewEscalation()
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.esc = esc
	c.cancel = cancel
	c.watchdogDone = done
	c.lastActivity = time.Now()
	c.mu.Unlock()

	slog.Info("confrontation started")

	go c.watchdog(watchCtx, esc, done)
	c.speakCycle(ctx, esc, "initial", "")
	return nil
}

// ProcessPersonResponse feeds a transcribed reply into the active
// conversation. It waits for any in-flight agent line to finish playing,
// then runs exactly one follow-up cycle (or ends the conversation, for a
// compliant reply). Replies while idle are dropped.
func (c *Controller) ProcessPersonResponse(ctx context.Context, reply string) {
	c.mu.Lock()
	esc := c.esc
	if esc == nil {
		c.mu.Unlock()
		slog.Debug("reply dropped, no active conversation", "reply", reply)
		return
	}
	c.lastActivity = time.Now()
	c.mu.Unlock()

	c.waitPlayback(ctx)

	esc.AttachReply(reply)
	action := esc.ProcessResponse(reply)
	slog.Info("person replied", "reply", reply, "action", action.String(), "level", esc.Level())

	switch action {
	case ActionEnd:
		c.endConversation(esc, "person-cooperative")
	case ActionEscalate:
		if esc.Escalate() {
			c.notifyEscalated(esc.Level())
			c.speakCycle(ctx, esc, "uncooperative", reply)
		} else {
			// Hostile at the top of the ladder: repeat the final warning
			// rather than cycling endlessly.
			c.speakCycle(ctx, esc, "uncooperative", reply)
		}
	case ActionClarify:
		c.speakCycle(ctx, esc, "clarification", reply)
	default:
		c.speakCycle(ctx, esc, "cooperative", reply)
	}
}

// EndConversation closes the active conversation with the given reason.
// It waits briefly for in-flight speech, then forces playback to stop.
// The second return is false when no conversation was active.
func (c *Controller) EndConversation(reason string) (Summary, bool) {
	c.mu.Lock()
	esc := c.esc
	c.mu.Unlock()
	if esc == nil {
		return Summary{}, false
	}

	deadline := time.Now().Add(playbackGrace)
	for c.speaking.Load() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	sum := c.endConversation(esc, reason)
	return sum, true
}

// endConversation tears down state for esc. Racing enders are safe: only
// the first caller gets the teardown and fires the end hook; later calls
// just receive the summary of the already-ended escalation.
func (c *Controller) endConversation(esc *Escalation, reason string) Summary {
	c.mu.Lock()
	owner := c.esc == esc
	if owner {
		c.esc = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	if !owner {
		return esc.End(reason)
	}

	c.speaker.StopPlayback()

	sum := esc.End(reason)
	slog.Info("confrontation ended",
		"reason", sum.Reason,
		"duration", sum.Duration,
		"final_level", sum.FinalLevel,
		"escalations", sum.Escalations,
		"exchanges", sum.Exchanges)
	if c.onEnd != nil {
		c.onEnd(sum)
	}
	return sum
}

// speakCycle generates and speaks one line. The speaking flag admits a
// single cycle at a time; a cycle arriving while another is mid-speech
// is dropped rather than queued, because its line would be stale by the
// time it played.
func (c *Controller) speakCycle(ctx context.Context, esc *Escalation, reason, reply string) {
	if !c.speaking.CompareAndSwap(false, true) {
		slog.Debug("speak cycle skipped, another in flight", "reason", reason)
		return
	}
	defer c.speaking.Store(false)

	if esc.Ended() {
		return
	}

	c.speaker.StopPlayback()

	level := esc.Level()
	params := ParamsForLevel(level)
	req := llm.Request{
		Level:       level,
		Tone:        params.Tone,
		Urgency:     params.Urgency,
		MaxWords:    params.MaxWords,
		Reason:      reason,
		PersonReply: reply,
		History:     esc.History(c.historyLimit),
	}

	start := time.Now()
	line, err := c.generator.Generate(ctx, req)
	c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil || line == "" {
		c.metrics.RecordProviderError(ctx, "llm", "generate")
		slog.Error("line generation failed, using fallback", "level", level, "error", err)
		line = fallbackLines[level]
	}

	esc.RecordAgentLine(line)
	slog.Info("agent speaking", "level", level, "reason", reason, "line", line)

	start = time.Now()
	if err := c.speaker.SynthesizeAndPlay(ctx, line); err != nil {
		c.metrics.RecordProviderError(ctx, "tts", "synthesize")
		slog.Error("speech synthesis failed", "level", level, "error", err)
	}
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// watchdog escalates on level timeouts and prolonged silence, and ends
// the conversation when it expires outright.
func (c *Controller) watchdog(ctx context.Context, esc *Escalation, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if esc.Ended() {
			return
		}

		if esc.Expired() {
			c.endConversation(esc, "timeout")
			return
		}

		c.mu.Lock()
		silence := time.Since(c.lastActivity)
		c.mu.Unlock()

		timedOut := esc.ShouldEscalate()
		silent := silence >= c.maxSilence && !c.speaking.Load()
		if !timedOut && !silent {
			continue
		}

		if esc.Escalate() {
			c.notifyEscalated(esc.Level())
			slog.Info("escalating", "level", esc.Level(), "level_timeout", timedOut, "silence", silence)
			go c.speakCycle(ctx, esc, "silence-timeout", "")
			c.mu.Lock()
			c.lastActivity = time.Now()
			c.mu.Unlock()
			continue
		}

		// Already at the top and the final level ran out: give up.
		if timedOut {
			c.endConversation(esc, "no-compliance")
			return
		}
	}
}

func (c *Controller) notifyEscalated(level int) {
	if c.onEscalated != nil {
		c.onEscalated(level)
	}
}

// waitPlayback blocks until the current speech cycle finishes, bounded
// by playbackGrace, so the agent does not talk over itself.
func (c *Controller) waitPlayback(ctx context.Context) {
	deadline := time.Now().Add(playbackGrace)
	for (c.speaking.Load() || c.speaker.IsPlaying()) && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}
