package trust

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Score composition weights. The latest encounter dominates, tempered by
// long-term history, behavioural consistency, and recent activity.
const (
	weightCurrent     = 0.4
	weightHistorical  = 0.3
	weightConsistency = 0.2
	weightRecency     = 0.1
)

const (
	// decayPerDay is the multiplicative score loss per day of absence.
	decayPerDay = 0.02

	// minDecayedScore is the floor decay never crosses.
	minDecayedScore = 0.3

	// resetAfter is the absence after which the score snaps back to the
	// enrollment base instead of decaying further.
	resetAfter = 30 * 24 * time.Hour

	// recencyWindow is the lookback for the recency component.
	recencyWindow = 7 * 24 * time.Hour

	// maxInteractions bounds the per-identity history.
	maxInteractions = 100
)

// Manager computes and persists trust scores. It keeps all records in
// memory and writes through to the Store on every mutation; a failed
// write surfaces as an error but never corrupts the in-memory state.
//
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	store   Store
	records map[string]*Record

	now func() time.Time
}

// NewManager creates a Manager loading existing records from store.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("trust: store must not be nil")
	}
	recs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("trust: load records: %w", err)
	}
	m := &Manager{
		store:   store,
		records: make(map[string]*Record, len(recs)),
		now:     time.Now,
	}
	for i := range recs {
		rec := recs[i]
		m.records[rec.IdentityID] = &rec
	}
	slog.Info("trust records loaded", "count", len(recs))
	return m, nil
}

// Enroll creates a record for a new identity with the given base score.
// Enrolling an existing identity is an error.
func (m *Manager) Enroll(ctx context.Context, identityID string, baseScore float64) error {
	if identityID == "" {
		return fmt.Errorf("trust: identityID must not be empty")
	}
	baseScore = clamp01(baseScore)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[identityID]; ok {
		return fmt.Errorf("trust: identity %q already enrolled", identityID)
	}
	rec := &Record{
		IdentityID: identityID,
		BaseScore:  baseScore,
		LastSeen:   m.now(),
		UpdatedAt:  m.now(),
	}
	if err := m.store.Save(ctx, *rec); err != nil {
		return fmt.Errorf("trust: persist enrollment of %q: %w", identityID, err)
	}
	m.records[identityID] = rec
	return nil
}

// RecordInteraction appends a scored encounter and persists the updated
// record. Unknown identities are rejected. On a persistence failure the
// in-memory record keeps the interaction and the error is returned, so a
// transient database outage does not lose live observations.
func (m *Manager) RecordInteraction(ctx context.Context, identityID string, score float64, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[identityID]
	if !ok {
		return fmt.Errorf("trust: unknown identity %q", identityID)
	}

	now := m.now()
	rec.Interactions = append(rec.Interactions, Interaction{
		At:    now,
		Score: clamp01(score),
		Kind:  kind,
	})
	if len(rec.Interactions) > maxInteractions {
		rec.Interactions = rec.Interactions[len(rec.Interactions)-maxInteractions:]
	}
	rec.LastSeen = now
	rec.UpdatedAt = now

	if err := m.store.Save(ctx, *rec); err != nil {
		return fmt.Errorf("trust: persist interaction for %q: %w", identityID, err)
	}
	return nil
}

// Score returns the composite trust score for identityID, with decay for
// absence applied. Unknown identities score 0.
func (m *Manager) Score(identityID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[identityID]
	if !ok {
		return 0
	}
	return m.composite(rec)
}

// LevelFor returns the trust tier for identityID.
func (m *Manager) LevelFor(identityID string) Level {
	return LevelForScore(m.Score(identityID))
}

// ShouldGrantAccess reports whether identityID meets the required tier.
func (m *Manager) ShouldGrantAccess(identityID string, required Level) bool {
	return m.LevelFor(identityID) >= required
}

// Known reports whether identityID has a trust record.
func (m *Manager) Known(identityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[identityID]
	return ok
}

// Snapshot returns a copy of the record for identityID.
func (m *Manager) Snapshot(identityID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identityID]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Interactions = make([]Interaction, len(rec.Interactions))
	copy(out.Interactions, rec.Interactions)
	return out, true
}

// composite blends the score components and applies absence decay.
// Callers must hold m.mu.
func (m *Manager) composite(rec *Record) float64 {
	if len(rec.Interactions) == 0 {
		return m.decay(rec, rec.BaseScore)
	}

	current := rec.Interactions[len(rec.Interactions)-1].Score

	var sum float64
	for _, in := range rec.Interactions {
		sum += in.Score
	}
	historical := sum / float64(len(rec.Interactions))

	consistency := math.Max(0, 1-2*stddev(rec.Interactions, historical))

	recency := current
	if recent := m.recentMean(rec); recent >= 0 {
		recency = recent
	}

	score := weightCurrent*current +
		weightHistorical*historical +
		weightConsistency*consistency +
		weightRecency*recency

	return m.decay(rec, clamp01(score))
}

// decay reduces score by 2% per full day since the identity was last
// seen, floored at 0.3. Past 30 days the score resets to the enrollment
// base instead.
func (m *Manager) decay(rec *Record, score float64) float64 {
	if rec.LastSeen.IsZero() {
		return score
	}
	absence := m.now().Sub(rec.LastSeen)
	if absence <= 0 {
		return score
	}
	if absence > resetAfter {
		return rec.BaseScore
	}
	days := absence.Hours() / 24
	decayed := score * math.Pow(1-decayPerDay, days)
	if decayed < minDecayedScore {
		decayed = minDecayedScore
	}
	if decayed > score {
		decayed = score
	}
	return decayed
}

// recentMean returns the mean score of interactions inside the recency
// window, or -1 if there are none.
func (m *Manager) recentMean(rec *Record) float64 {
	cutoff := m.now().Add(-recencyWindow)
	var sum float64
	var n int
	for _, in := range rec.Interactions {
		if in.At.After(cutoff) {
			sum += in.Score
			n++
		}
	}
	if n == 0 {
		return -1
	}
	return sum / float64(n)
}

func stddev(ins []Interaction, mean float64) float64 {
	if len(ins) < 2 {
		return 0
	}
	var sum float64
	for _, in := range ins {
		d := in.Score - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(ins)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
