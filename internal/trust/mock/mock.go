// Package mock provides an in-memory test double for the trust.Store
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/roomguard/internal/trust"
)

// Store is a mock implementation of trust.Store.
type Store struct {
	mu sync.Mutex

	// Records is the backing map, keyed by identity ID. Pre-populate it
	// to simulate previously persisted state.
	Records map[string]trust.Record

	// LoadErr, if non-nil, is returned by Load.
	LoadErr error

	// SaveErr, if non-nil, is returned by every Save call.
	SaveErr error

	// Saves counts Save invocations, including failed ones.
	Saves int
}

var _ trust.Store = (*Store)(nil)

func (s *Store) Load(ctx context.Context) ([]trust.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	out := make([]trust.Record, 0, len(s.Records))
	for _, rec := range s.Records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, rec trust.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.Records == nil {
		s.Records = make(map[string]trust.Record)
	}
	s.Records[rec.IdentityID] = rec
	return nil
}

// SaveCount returns the number of Save invocations so far.
func (s *Store) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Saves
}
