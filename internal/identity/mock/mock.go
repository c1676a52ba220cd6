// Package mock provides an in-memory test double for the identity.Store
// interface.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/roomguard/internal/identity"
)

// Store is a mock implementation of identity.Store. Nearest computes
// real cosine distances over the stored encodings, so tests can exercise
// matching behaviour with hand-crafted vectors.
type Store struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every method.
	Err error

	identities map[string]identity.Identity
	encodings  map[string][][]float32
}

var _ identity.Store = (*Store)(nil)

func (s *Store) Enroll(ctx context.Context, id identity.Identity, encodings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.identities == nil {
		s.identities = make(map[string]identity.Identity)
		s.encodings = make(map[string][][]float32)
	}
	s.identities[id.ID] = id
	s.encodings[id.ID] = append(s.encodings[id.ID], encodings...)
	return nil
}

func (s *Store) AddEncoding(ctx context.Context, identityID string, encoding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.identities[identityID]; !ok {
		return identity.ErrNotFound
	}
	s.encodings[identityID] = append(s.encodings[identityID], encoding)
	return nil
}

func (s *Store) Get(ctx context.Context, identityID string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return identity.Identity{}, s.Err
	}
	id, ok := s.identities[identityID]
	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	return id, nil
}

func (s *Store) List(ctx context.Context) ([]identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]identity.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, identityID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	id, ok := s.identities[identityID]
	if !ok {
		return identity.ErrNotFound
	}
	id.LastSeenAt = at
	s.identities[identityID] = id
	return nil
}

func (s *Store) Nearest(ctx context.Context, encoding []float32) (identity.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return identity.Match{}, s.Err
	}

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
