// Package memory provides a volatile identity.Store used when no Postgres
// DSN is configured. Enrollments live for the process lifetime only.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/roomguard/internal/identity"
)

// Compile-time assertion that *Store satisfies identity.Store.
var _ identity.Store = (*Store)(nil)

// Store keeps identities and encodings in process memory.
type Store struct {
	mu         sync.Mutex
	identities map[string]identity.Identity
	encodings  map[string][][]float32
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		identities: make(map[string]identity.Identity),
		encodings:  make(map[string][][]float32),
	}
}

// Enroll implements identity.Store.
func (s *Store) Enroll(ctx context.Context, id identity.Identity, encodings [][]float32) error {
	if len(encodings) == 0 {
		return fmt.Errorf("memory: at least one encoding is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.identities[id.ID]; exists {
		return fmt.Errorf("memory: identity %q already enrolled", id.ID)
	}
	s.identities[id.ID] = id
	s.encodings[id.ID] = append([][]float32(nil), encodings...)
	return nil
}

// AddEncoding implements identity.Store.
func (s *Store) AddEncoding(ctx context.Context, identityID string, encoding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identityID]; !ok {
		return identity.ErrNotFound
	}
	s.encodings[identityID] = append(s.encodings[identityID], encoding)
	return nil
}

// Get implements identity.Store.
func (s *Store) Get(ctx context.Context, identityID string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[identityID]
	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	return id, nil
}

// List implements identity.Store.
func (s *Store) List(ctx context.Context) ([]identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, id)
	}
	return out, nil
}

// UpdateLastSeen implements identity.Store.
func (s *Store) UpdateLastSeen(ctx context.Context, identityID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[identityID]
	if !ok {
		return identity.ErrNotFound
	}
	id.LastSeenAt = at
	s.identities[identityID] = id
	return nil
}

// Nearest implements identity.Store with a linear scan over all stored
// encodings. Fine at the room scale this store is meant for.
func (s *Store) Nearest(ctx context.Context, encoding []float32) (identity.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := identity.Match{Distance: math.Inf(1)}
	found := false
	for idID, encs := range s.encodings {
		for _, enc := range encs {
			d := cosineDistance(encoding, enc)
			if d < best.Distance {
				best = identity.Match{Identity: s.identities[idID], Distance: d}
				found = true
			}
		}
	}
	if !found {
		return identity.Match{}, identity.ErrNotFound
	}
	return best, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.Inf(1)
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
