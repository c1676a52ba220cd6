// Package llm defines the Generator interface for dialogue generation.
//
// The conversation controller asks a Generator for one confrontation line
// at a time, carrying the current escalation context so the backend can
// match tone and urgency. The guard core never inspects or post-processes
// model output beyond trimming; what comes back is what gets spoken.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Exchange is one completed turn of the confrontation: what the agent said
// and what, if anything, the person replied.
type Exchange struct {
	// AgentLine is the utterance the agent spoke.
	AgentLine string

	// PersonReply is the person's transcribed reply. Empty when the person
	// stayed silent and the agent auto-escalated.
	PersonReply string
}

// Request carries everything the Generator needs to produce the next
// spoken line.
type Request struct {
	// Level is the current escalation level, 1 (polite) through 4 (alarm).
	Level int

	// Tone describes the required delivery, e.g. "polite and curious" or
	// "urgent and alarming".
	Tone string

	// Urgency is the level's urgency label: "low", "medium", "high",
	// "critical".
	Urgency string

	// MaxWords caps the length of the generated line. Zero means no cap.
	MaxWords int

	// Reason is why this line is being generated: "initial",
	// "silence-timeout", "uncooperative", "clarification", "cooperative".
	Reason string

	// PersonReply is the reply that triggered this cycle, if any.
	PersonReply string

	// History is the confrontation so far, oldest first.
	History []Exchange
}

// Generator is the abstraction over any dialogue generation backend.
type Generator interface {
	// Generate produces the next confrontation line for the given context.
	// Returns an error if the backend fails; the caller falls back to a
	// canned line for the level rather than staying silent.
	Generate(ctx context.Context, req Request) (string, error)
}
