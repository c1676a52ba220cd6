// Package notify delivers security alerts to external channels. The
// guard core raises an event when a confrontation starts, when the final
// escalation level is reached, and when a confrontation ends; notifiers
// decide where those events go.
package notify

import (
	"context"
	"time"
)

// Event kinds raised by the guard core.
const (
	KindIntruderDetected   = "intruder-detected"
	KindFinalWarning       = "final-warning"
	KindConfrontationEnded = "confrontation-ended"
)

// Event is one security alert.
type Event struct {
	// Kind is one of the Kind constants.
	Kind string

	// Message is the human-readable alert text.
	Message string

	// Level is the escalation level at the time of the event, 0 when not
	// applicable.
	Level int

	// At is when the event happened.
	At time.Time
}

// Notifier delivers events. Implementations must be safe for concurrent
// use; delivery failures are the notifier's to report, the guard core
// only logs them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Noop discards all events.
type Noop struct{}

var _ Notifier = Noop{}

func (Noop) Notify(ctx context.Context, ev Event) error { return nil }
