package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/roomguard/internal/dialogue"
	"github.com/MrWong99/roomguard/internal/identity"
	"github.com/MrWong99/roomguard/internal/notify"
	"github.com/MrWong99/roomguard/internal/observe"
	"github.com/MrWong99/roomguard/internal/trust"
	"github.com/MrWong99/roomguard/pkg/capture"
	"github.com/MrWong99/roomguard/pkg/provider/stt"
	"github.com/MrWong99/roomguard/pkg/provider/vision"
)

// EventPublisher receives live guard events (state transitions, alerts)
// for streaming to observers. Implemented by the server event hub.
type EventPublisher interface {
	Publish(v any)
}

// Config tunes the Agent's pipelines and decisions.
type Config struct {
	// SampleRate of the audio source in Hz.
	SampleRate int

	// ChunkDuration is how much audio accumulates before transcription.
	ChunkDuration time.Duration

	// AudioQueueSize and FrameQueueSize bound the pipeline queues.
	AudioQueueSize int
	FrameQueueSize int

	// ActivationPhrases and DeactivationPhrases control guard mode by
	// voice; SimilarityThreshold tunes their fuzzy matching.
	ActivationPhrases   []string
	DeactivationPhrases []string
	SimilarityThreshold float64

	// RecognitionThreshold is the minimum face-match confidence to treat
	// a detection as identified.
	RecognitionThreshold float64

	// FrameInterval is the camera cadence while guarding;
	// EscalationFrameInterval the slower cadence during a confrontation.
	FrameInterval           time.Duration
	EscalationFrameInterval time.Duration

	// RequiredTrustLevel is the tier an identity needs to stand the guard
	// down from a confrontation.
	RequiredTrustLevel trust.Level

	// IdleWindow is how long detections are ignored after a trusted
	// identity was confirmed.
	IdleWindow time.Duration
}

// Deps are the Agent's collaborators. Audio, Camera, Transcriber, Vision
// and Controller are required; the rest may be nil for reduced setups.
type Deps struct {
	Audio       capture.AudioSource
	Camera      capture.Camera
	Transcriber stt.Transcriber
	Vision      vision.Service
	Trust       *trust.Manager
	Identities  identity.Store
	Controller  *dialogue.Controller
	Notifier    notify.Notifier
	Metrics     *observe.Metrics
	Events      EventPublisher
}

// Agent is the orchestrator: it runs the audio and vision pipelines,
// owns the state machine, and routes detections and transcripts into
// trust updates or confrontations.
type Agent struct {
	cfg  Config
	deps Deps

	state        *StateManager
	activation   *PhraseMatcher
	deactivation *PhraseMatcher

	audioQ *Queue[[]byte]
	frameQ *Queue[capture.Frame]

	mu        sync.Mutex
	idleUntil time.Time
	startedAt time.Time
}

// New creates an Agent. The camera is opened lazily when guard mode is
// entered and closed when it is left.
func New(cfg Config, deps Deps) (*Agent, error) {
	if deps.Audio == nil || deps.Camera == nil || deps.Transcriber == nil || deps.Vision == nil || deps.Controller == nil {
		return nil, fmt.Errorf("guard: audio, camera, transcriber, vision, and controller are required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("guard: sample rate must be positive")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}

	a := &Agent{
		cfg:          cfg,
		deps:         deps,
		state:        NewStateManager(StateListening),
		activation:   NewPhraseMatcher(cfg.ActivationPhrases, cfg.SimilarityThreshold),
		deactivation: NewPhraseMatcher(cfg.DeactivationPhrases, cfg.SimilarityThreshold),
		audioQ:       NewQueue[[]byte](cfg.AudioQueueSize),
		frameQ:       NewQueue[capture.Frame](cfg.FrameQueueSize),
		startedAt:    time.Now(),
	}
	a.state.Subscribe(a.onStateChange)
	return a, nil
}

// State returns the agent's state manager for observers and tests.
func (a *Agent) State() *StateManager {
	return a.state
}

// Run starts all pipeline loops and blocks until ctx is cancelled or a
// loop fails. On return the audio source is stopped, the camera closed,
// and any active confrontation ended.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.deps.Audio.Start(); err != nil {
		return fmt.Errorf("guard: start audio source: %w", err)
	}
	defer a.deps.Audio.Stop()

	defer func() {
		if sum, ok := a.deps.Controller.EndConversation("shutdown"); ok {
			slog.Info("active confrontation ended on shutdown", "final_level", sum.FinalLevel)
		}
		a.deps.Camera.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.audioCaptureLoop(ctx) })
	g.Go(func() error { return a.audioWorker(ctx) })
	g.Go(func() error { return a.visionCaptureLoop(ctx) })
	g.Go(func() error { return a.visionWorker(ctx) })

	slog.Info("guard agent running", "state", a.state.Current())
	return g.Wait()
}

// ── Audio pipeline ───────────────────────────────────────────────────────

// audioCaptureLoop accumulates raw chunks from the source until a full
// transcription window is collected, then enqueues it.
func (a *Agent) audioCaptureLoop(ctx context.Context) error {
	targetBytes := a.cfg.SampleRate * 2 * int(a.cfg.ChunkDuration.Milliseconds()) / 1000
	if targetBytes <= 0 {
		targetBytes = a.cfg.SampleRate * 2 * 3
	}

	buf := make([]byte, 0, targetBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, ok := a.deps.Audio.ReadChunk(200 * time.Millisecond)
		if !ok {
			continue
		}
		buf = append(buf, chunk...)
		if len(buf) < targetBytes {
			continue
		}
		window := make([]byte, len(buf))
		copy(window, buf)
		buf = buf[:0]
		a.audioQ.Push(window)
	}
}

// audioWorker transcribes queued windows and routes the transcripts.
func (a *Agent) audioWorker(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok := a.audioQ.Pop(500 * time.Millisecond)
		if !ok {
			continue
		}

		start := time.Now()
		text, err := a.deps.Transcriber.Transcribe(ctx, item.Payload, a.cfg.SampleRate)
		a.deps.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			a.deps.Metrics.RecordAudioChunk(ctx, "error")
			a.deps.Metrics.RecordProviderError(ctx, "stt", "transcribe")
			slog.Error("transcription failed", "error", err)
			continue
		}
		if text == "" {
			a.deps.Metrics.RecordAudioChunk(ctx, "silent")
			continue
		}
		a.deps.Metrics.RecordAudioChunk(ctx, "transcribed")
		a.handleTranscript(ctx, text)
	}
}

// handleTranscript routes one transcript: deactivation and activation
// commands first, then replies to an active confrontation; anything else
// is ambient speech and ignored.
func (a *Agent) handleTranscript(ctx context.Context, text string) {
	slog.Debug("transcript", "text", text, "state", a.state.Current())

	if phrase, score, ok := a.deactivation.Match(text); ok && a.state.Is(StateGuardActive) {
		slog.Info("deactivation phrase heard", "phrase", phrase, "score", score)
		a.deps.Controller.EndConversation("deactivated")
		a.state.ChangeState(StateListening, map[string]any{
			"reason": "deactivation phrase",
			"phrase": phrase,
			"score":  score,
		})
		return
	}

	if phrase, score, ok := a.activation.Match(text); ok && a.state.Is(StateListening) {
		slog.Info("activation phrase heard", "phrase", phrase, "score", score)
		a.state.ChangeState(StateGuardActive, map[string]any{
			"reason": "activation phrase",
			"phrase": phrase,
			"score":  score,
		})
		return
	}

	if a.deps.Controller.Active() {
		a.deps.Controller.ProcessPersonResponse(ctx, text)
		return
	}

	slog.Debug("ambient speech ignored", "text", text)
}

// ── Vision pipeline ──────────────────────────────────────────────────────

// visionCaptureLoop grabs frames while guard mode is active. The cadence
// slows to the escalation interval during a confrontation, since the
// camera's job then is only to spot a trusted face arriving.
func (a *Agent) visionCaptureLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !a.state.Is(StateGuardActive) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		frame, ok := a.deps.Camera.Frame()
		if ok {
			a.frameQ.Push(frame)
		}

		interval := a.cfg.FrameInterval
		if a.deps.Controller.Active() {
			interval = a.cfg.EscalationFrameInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// visionWorker identifies faces in queued frames and acts on the result.
func (a *Agent) visionWorker(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok := a.frameQ.Pop(500 * time.Millisecond)
		if !ok {
			continue
		}

		// Inside the idle window after a trusted confirmation the guard
		// stands easy and skips frames entirely.
		if a.idleActive() {
			continue
		}

		start := time.Now()
		detections, err := a.deps.Vision.DetectAndIdentify(ctx, item.Payload)
		a.deps.Metrics.VisionDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			a.deps.Metrics.RecordProviderError(ctx, "vision", "detect")
			slog.Error("face detection failed", "error", err)
			continue
		}
		if len(detections) == 0 {
			a.deps.Metrics.RecordDetection(ctx, "none")
			continue
		}

		// One trusted face stands the guard down for everyone in frame, so
		// identified faces are checked first.
		trusted := false
		for _, det := range detections {
			if det.IdentityID != "" && det.Confidence >= a.cfg.RecognitionThreshold {
				if a.handleIdentified(ctx, det) {
					trusted = true
				}
			}
		}
		if trusted {
			continue
		}
		for _, det := range detections {
			if det.IdentityID == "" || det.Confidence < a.cfg.RecognitionThreshold {
				a.handleUnknown(ctx, det)
				break
			}
		}
	}
}

// handleIdentified refreshes trust for a recognised face and reports
// whether the identity is trusted enough to stand the guard down. When it
// is and a confrontation is running, the confrontation ends and the idle
// window arms. The guard stays in GuardActive; only a deactivation phrase
// leaves it.
func (a *Agent) handleIdentified(ctx context.Context, det vision.Detection) bool {
	slog.Info("face identified", "identity", det.IdentityID, "name", det.Name, "confidence", det.Confidence)

	if a.deps.Trust != nil {
		if err := a.deps.Trust.RecordInteraction(ctx, det.IdentityID, det.Confidence, "face-match"); err != nil {
			slog.Error("trust update failed", "identity", det.IdentityID, "error", err)
		}
	}
	if a.deps.Identities != nil {
		if err := a.deps.Identities.UpdateLastSeen(ctx, det.IdentityID, time.Now()); err != nil {
			slog.Warn("last-seen update failed", "identity", det.IdentityID, "error", err)
		}
	}

	granted := a.deps.Trust != nil && a.deps.Trust.ShouldGrantAccess(det.IdentityID, a.cfg.RequiredTrustLevel)
	if !granted {
		a.deps.Metrics.RecordDetection(ctx, "known")
		return false
	}
	a.deps.Metrics.RecordDetection(ctx, "trusted")

	if sum, ok := a.deps.Controller.EndConversation("trusted-user-identified"); ok {
		a.notifyEvent(ctx, notify.Event{
			Kind:    notify.KindConfrontationEnded,
			Message: fmt.Sprintf("%s arrived; confrontation resolved at level %d", det.Name, sum.FinalLevel),
			Level:   sum.FinalLevel,
			At:      time.Now(),
		})
	}

	a.mu.Lock()
	a.idleUntil = time.Now().Add(a.cfg.IdleWindow)
	a.mu.Unlock()
	return true
}

// handleUnknown starts a confrontation for an unmatched face. The
// controller's Start speaks the opening line synchronously, so it runs on
// its own goroutine to keep the vision worker draining frames.
func (a *Agent) handleUnknown(ctx context.Context, det vision.Detection) {
	a.deps.Metrics.RecordDetection(ctx, "unknown")

	if a.deps.Controller.Active() {
		return
	}
	slog.Warn("unknown person detected", "confidence", det.Confidence)

	a.deps.Metrics.ActiveConversations.Add(ctx, 1)
	a.notifyEvent(ctx, notify.Event{
		Kind: notify.KindIntruderDetected,
		At:   time.Now(),
	})

	go func() {
		if err := a.deps.Controller.Start(context.WithoutCancel(ctx)); err != nil {
			slog.Debug("confrontation not started", "reason", err)
			a.deps.Metrics.ActiveConversations.Add(ctx, -1)
		}
	}()
}

// OnEscalated is wired into the dialogue controller; it raises the final
// warning alert when the top level is reached.
func (a *Agent) OnEscalated(level int) {
	ctx := context.Background()
	a.deps.Metrics.RecordEscalation(ctx, level)
	a.publishEvent(map[string]any{"event": "escalation", "level": level, "at": time.Now()})
	if level == dialogue.MaxLevel {
		a.notifyEvent(ctx, notify.Event{
			Kind:    notify.KindFinalWarning,
			Message: "person still unidentified",
			Level:   level,
			At:      time.Now(),
		})
	}
}

// OnConversationEnd is wired into the dialogue controller.
func (a *Agent) OnConversationEnd(sum dialogue.Summary) {
	ctx := context.Background()
	a.deps.Metrics.ActiveConversations.Add(ctx, -1)
	a.deps.Metrics.RecordConversationEnd(ctx, sum.Reason)
	a.publishEvent(map[string]any{
		"event":       "confrontation-ended",
		"reason":      sum.Reason,
		"final_level": sum.FinalLevel,
		"escalations": sum.Escalations,
		"exchanges":   sum.Exchanges,
		"duration":    sum.Duration.String(),
		"at":          time.Now(),
	})
}

// ── Roster ───────────────────────────────────────────────────────────────

// EnrollIdentity registers a new person in the identity roster and seeds
// their trust record with the identity's base trust.
func (a *Agent) EnrollIdentity(ctx context.Context, id identity.Identity, encodings [][]float32) error {
	if a.deps.Identities == nil {
		return fmt.Errorf("guard: no identity store configured")
	}
	if id.EnrolledAt.IsZero() {
		id.EnrolledAt = time.Now()
	}
	if err := a.deps.Identities.Enroll(ctx, id, encodings); err != nil {
		return fmt.Errorf("guard: enroll identity: %w", err)
	}
	if a.deps.Trust != nil {
		if err := a.deps.Trust.Enroll(ctx, id.ID, id.BaseTrust); err != nil {
			return fmt.Errorf("guard: seed trust record: %w", err)
		}
	}
	slog.Info("identity enrolled", "identity", id.ID, "name", id.Name, "encodings", len(encodings))
	return nil
}

// ListIdentities returns the enrolled roster.
func (a *Agent) ListIdentities(ctx context.Context) ([]identity.Identity, error) {
	if a.deps.Identities == nil {
		return nil, fmt.Errorf("guard: no identity store configured")
	}
	return a.deps.Identities.List(ctx)
}

// ── State handling ───────────────────────────────────────────────────────

// onStateChange manages the camera lifecycle and publishes transitions.
func (a *Agent) onStateChange(old, new State, detail map[string]any) {
	a.deps.Metrics.RecordStateTransition(context.Background(), string(old), string(new))
	a.publishEvent(map[string]any{
		"event":   "state-transition",
		"from":    old,
		"to":      new,
		"context": detail,
		"at":      time.Now(),
	})

	switch {
	case new == StateGuardActive:
		if err := a.deps.Camera.Open(); err != nil {
			slog.Error("camera open failed, guard mode without vision", "error", err)
		}
	case old == StateGuardActive:
		a.deps.Camera.Close()
	}
}

func (a *Agent) idleActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Now().Before(a.idleUntil)
}

func (a *Agent) notifyEvent(ctx context.Context, ev notify.Event) {
	if err := a.deps.Notifier.Notify(ctx, ev); err != nil {
		slog.Error("alert delivery failed", "kind", ev.Kind, "error", err)
	}
	a.publishEvent(map[string]any{"event": ev.Kind, "level": ev.Level, "message": ev.Message, "at": ev.At})
}

func (a *Agent) publishEvent(v any) {
	if a.deps.Events != nil {
		a.deps.Events.Publish(v)
	}
}

// ── Status ───────────────────────────────────────────────────────────────

// StatusSnapshot is the /status payload.
type StatusSnapshot struct {
	State              State        `json:"state"`
	StateFor           string       `json:"state_for"`
	Uptime             string       `json:"uptime"`
	ConversationActive bool         `json:"conversation_active"`
	EscalationLevel    int          `json:"escalation_level"`
	AudioQueueDepth    int          `json:"audio_queue_depth"`
	AudioDropped       uint64       `json:"audio_dropped"`
	FrameQueueDepth    int          `json:"frame_queue_depth"`
	FramesDropped      uint64       `json:"frames_dropped"`
	IdleWindowActive   bool         `json:"idle_window_active"`
	Transitions        []Transition `json:"recent_transitions"`

	// StateEntries counts, per state, how often it was entered; MeanDwell
	// is the average time spent in each state before leaving it.
	StateEntries map[State]int    `json:"state_entries"`
	MeanDwell    map[State]string `json:"state_mean_dwell"`
}

// Status implements the status provider for the HTTP server.
func (a *Agent) Status() any {
	stats := a.state.Stats()
	meanDwell := make(map[State]string, len(stats.MeanDwell))
	for s, d := range stats.MeanDwell {
		meanDwell[s] = d.String()
	}
	return StatusSnapshot{
		State:              a.state.Current(),
		StateFor:           a.state.Duration().String(),
		Uptime:             time.Since(a.startedAt).String(),
		ConversationActive: a.deps.Controller.Active(),
		EscalationLevel:    a.deps.Controller.Level(),
		AudioQueueDepth:    a.audioQ.Len(),
		AudioDropped:       a.audioQ.Dropped(),
		FrameQueueDepth:    a.frameQ.Len(),
		FramesDropped:      a.frameQ.Dropped(),
		IdleWindowActive:   a.idleActive(),
		Transitions:        a.state.History(10),
		StateEntries:       stats.Entries,
		MeanDwell:          meanDwell,
	}
}
