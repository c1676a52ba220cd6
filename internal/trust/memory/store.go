// Package memory provides a volatile trust.Store used when no Postgres
// DSN is configured. Records live for the process lifetime only.
package memory

import (
	"context"
	"sync"

	"github.com/MrWong99/roomguard/internal/trust"
)

// Compile-time assertion that *Store satisfies trust.Store.
var _ trust.Store = (*Store)(nil)

// Store keeps trust records in process memory.
type Store struct {
	mu      sync.Mutex
	records map[string]trust.Record
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{records: make(map[string]trust.Record)}
}

// Load returns all stored records.
func (s *Store) Load(ctx context.Context) ([]trust.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trust.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

// Save upserts rec.
func (s *Store) Save(ctx context.Context, rec trust.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.IdentityID] = rec
	return nil
}
