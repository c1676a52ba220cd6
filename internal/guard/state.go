// Package guard implements the surveillance core: the guard-mode state
// machine, the bounded pipeline queues, activation phrase matching, and
// the top-level Agent that wires audio, vision, trust, and escalation
// together.
package guard

import (
	"log/slog"
	"sync"
	"time"
)

// State is the top-level operating mode of the agent.
type State string

const (
	StateIdle            State = "idle"
	StateListening       State = "listening"
	StateGuardActive     State = "guard_active"
	StateProcessing      State = "processing"
	StateFaceRecognition State = "face_recognition"
)

// IsValid reports whether s is a recognised state.
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateListening, StateGuardActive, StateProcessing, StateFaceRecognition:
		return true
	}
	return false
}

// validTransitions is the adjacency table: for each state, the set of
// states it may move to. Self-transitions are always valid and handled
// separately. States absent from the table accept no outgoing transitions.
var validTransitions = map[State][]State{
	StateIdle:        {StateListening, StateGuardActive},
	StateListening:   {StateIdle, StateGuardActive},
	StateGuardActive: {StateIdle, StateListening},
}

// Transition is one recorded state change.
type Transition struct {
	// From and To are the states involved.
	From State
	To   State

	// At is when the transition happened.
	At time.Time

	// Previous is how long the agent had been in From.
	Previous time.Duration

	// Context carries caller-supplied detail about why the transition
	// happened (reason, command text, confidence, …).
	Context map[string]any
}

// Observer is notified after a successful state change. Observers run
// outside the state lock, so they may call back into the StateManager
// (e.g. to trigger a secondary transition) without deadlocking.
type Observer func(old, new State, context map[string]any)

// historyLimit bounds the transition ring.
const historyLimit = 100

// StateManager is the single authority over the guard state. All reads
// and writes of the current state go through it.
//
// All methods are safe for concurrent use.
type StateManager struct {
	mu        sync.Mutex
	current   State
	previous  State
	enteredAt time.Time
	history   []Transition
	observers []Observer
}

// NewStateManager creates a StateManager starting in initial.
func NewStateManager(initial State) *StateManager {
	if !initial.IsValid() {
		initial = StateIdle
	}
	return &StateManager{
		current:   initial,
		enteredAt: time.Now(),
	}
}

// Current returns the current state.
func (m *StateManager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the state before the last transition, or "" if no
// transition has happened yet.
func (m *StateManager) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// Is reports whether the current state equals s.
func (m *StateManager) Is(s State) bool {
	return m.Current() == s
}

// ChangeState moves to target if the adjacency table allows it. On
// success it records history, updates the current state, and — after
// releasing the lock — notifies all observers. Returns false and leaves
// the state untouched on an invalid transition; this is an expected
// outcome, not a fault.
//
// A self-transition (target equals the current state) always succeeds and
// is a no-op: no history entry, no observer notification, and the dwell
// clock keeps running.
func (m *StateManager) ChangeState(target State, context map[string]any) bool {
	if context == nil {
		context = map[string]any{}
	}

	m.mu.Lock()
	if target == m.current {
		m.mu.Unlock()
		return true
	}
	if !transitionAllowed(m.current, target) {
		from := m.current
		m.mu.Unlock()
		slog.Warn("invalid state transition rejected", "from", from, "to", target)
		return false
	}

	now := time.Now()
	old := m.current
	dwell := now.Sub(m.enteredAt)

	m.previous = m.current
	m.current = target
	m.enteredAt = now

	m.history = append(m.history, Transition{
		From:     old,
		To:       target,
		At:       now,
		Previous: dwell,
		Context:  context,
	})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}

	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	slog.Info("state changed", "from", old, "to", target, "dwell", dwell)

	// Observers run outside the lock. A panicking observer is isolated and
	// logged; it neither blocks the remaining observers nor reverts the
	// transition.
	for _, obs := range observers {
		notifyObserver(obs, old, target, context)
	}
	return true
}

func notifyObserver(obs Observer, old, new State, context map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("state observer panicked", "from", old, "to", new, "panic", r)
		}
	}()
	obs(old, new, context)
}

func transitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Subscribe registers an observer for future state changes.
func (m *StateManager) Subscribe(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Duration returns how long the agent has been in the current state.
func (m *StateManager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.enteredAt)
}

// History returns up to limit most recent transitions, oldest first.
// A non-positive limit returns the full retained history.
func (m *StateManager) History(limit int) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Transition, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// StateStats summarises state usage since start.
type StateStats struct {
	// Current is the current state and CurrentDuration its dwell so far.
	Current         State
	CurrentDuration time.Duration

	// Transitions is the number of retained transitions.
	Transitions int

	// Entries counts, per state, how often it was entered.
	Entries map[State]int

	// MeanDwell is the average dwell per state, computed from the dwell
	// recorded when the state was left.
	MeanDwell map[State]time.Duration
}

// Stats computes transition statistics from the retained history.
func (m *StateManager) Stats() StateStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := StateStats{
		Current:         m.current,
		CurrentDuration: time.Since(m.enteredAt),
		Transitions:     len(m.history),
		Entries:         make(map[State]int),
		MeanDwell:       make(map[State]time.Duration),
	}

	totals := make(map[State]time.Duration)
	counts := make(map[State]int)
	for _, tr := range m.history {
		stats.Entries[tr.To]++
		totals[tr.From] += tr.Previous
		counts[tr.From]++
	}
	for s, total := range totals {
		stats.MeanDwell[s] = total / time.Duration(counts[s])
	}
	return stats
}
