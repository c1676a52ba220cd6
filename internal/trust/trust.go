// Package trust maintains per-identity trust scores. Scores blend the
// most recent interaction with long-term history, reward consistent
// behaviour, and decay while an identity stays away. The guard core uses
// them to decide whether a recognised face ends a confrontation.
package trust

import (
	"context"
	"time"
)

// Level is a coarse trust tier derived from the numeric score.
type Level int

const (
	LevelUnknown Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelMaximum
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelMaximum:
		return "maximum"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name ("low", "medium", "high", "maximum")
// to its Level. Unrecognised names map to LevelUnknown.
func ParseLevel(name string) Level {
	switch name {
	case "low":
		return LevelLow
	case "medium":
		return LevelMedium
	case "high":
		return LevelHigh
	case "maximum":
		return LevelMaximum
	default:
		return LevelUnknown
	}
}

// LevelForScore maps a composite score to its tier.
func LevelForScore(score float64) Level {
	switch {
	case score >= 0.9:
		return LevelMaximum
	case score >= 0.7:
		return LevelHigh
	case score >= 0.5:
		return LevelMedium
	case score >= 0.3:
		return LevelLow
	default:
		return LevelUnknown
	}
}

// Interaction is one scored encounter with an identity.
type Interaction struct {
	// At is when the interaction happened.
	At time.Time `json:"at"`

	// Score is the quality of the encounter in [0, 1]. A clean face match
	// scores high; a confrontation that ended badly scores low.
	Score float64 `json:"score"`

	// Kind labels the source of the interaction, e.g. "face-match",
	// "voice-command", "escalation-resolved".
	Kind string `json:"kind"`
}

// Record is the persisted trust state of one identity.
type Record struct {
	// IdentityID references the enrolled identity.
	IdentityID string

	// BaseScore is the score assigned at enrollment. Decay never resets
	// below it going up, and a long absence resets back to it.
	BaseScore float64

	// Interactions is the bounded encounter history, oldest first.
	Interactions []Interaction

	// LastSeen is the time of the most recent interaction.
	LastSeen time.Time

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time
}

// Store persists trust records.
type Store interface {
	// Load returns all persisted records.
	Load(ctx context.Context) ([]Record, error)

	// Save upserts one record.
	Save(ctx context.Context, rec Record) error
}
