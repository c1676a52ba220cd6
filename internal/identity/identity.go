// Package identity manages the roster of enrolled people and their face
// encodings. A vision backend matches frames against these encodings;
// the guard core keys trust records by the resulting identity IDs.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an identity does not exist.
var ErrNotFound = errors.New("identity not found")

// Identity is one enrolled person.
type Identity struct {
	// ID is the stable identifier used by trust records and logs.
	ID string

	// Name is the display name spoken in greetings and alerts.
	Name string

	// BaseTrust is the trust score assigned at enrollment.
	BaseTrust float64

	// EnrolledAt is when the identity was created.
	EnrolledAt time.Time

	// LastSeenAt is the most recent confirmed sighting.
	LastSeenAt time.Time
}

// Match is the result of a nearest-encoding lookup.
type Match struct {
	Identity Identity

	// Distance is the cosine distance between the probe encoding and the
	// closest enrolled encoding. Lower is closer; callers convert it to a
	// confidence and apply their own threshold.
	Distance float64
}

// Store persists identities and their face encodings.
type Store interface {
	// Enroll creates id with its initial face encodings. At least one
	// encoding is required.
	Enroll(ctx context.Context, id Identity, encodings [][]float32) error

	// AddEncoding attaches another face encoding to an existing identity,
	// improving match robustness across angles and lighting.
	AddEncoding(ctx context.Context, identityID string, encoding []float32) error

	// Get returns the identity with the given ID, or ErrNotFound.
	Get(ctx context.Context, identityID string) (Identity, error)

	// List returns all enrolled identities.
	List(ctx context.Context) ([]Identity, error)

	// UpdateLastSeen records a confirmed sighting.
	UpdateLastSeen(ctx context.Context, identityID string, at time.Time) error

	// Nearest returns the identity whose stored encoding is closest to the
	// probe, or ErrNotFound when nothing is enrolled.
	Nearest(ctx context.Context, encoding []float32) (Match, error)
}
