package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/roomguard/internal/identity"
)

func TestEnrollAndNearest(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	if err := s.Enroll(ctx, identity.Identity{ID: "alice", Name: "Alice"}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := s.Enroll(ctx, identity.Identity{ID: "bob", Name: "Bob"}, [][]float32{{0, 1}}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	match, err := s.Nearest(ctx, []float32{0.9, 0.1})
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if match.Identity.ID != "alice" {
		t.Errorf("nearest = %q, want alice", match.Identity.ID)
	}
}

func TestEnrollDuplicateRejected(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	if err := s.Enroll(ctx, identity.Identity{ID: "alice"}, [][]float32{{1}}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := s.Enroll(ctx, identity.Identity{ID: "alice"}, [][]float32{{1}}); err == nil {
		t.Error("duplicate enrollment should be rejected")
	}
	if err := s.Enroll(ctx, identity.Identity{ID: "carol"}, nil); err == nil {
		t.Error("enrollment without encodings should be rejected")
	}
}

func TestNearestEmptyRoster(t *testing.T) {
	t.Parallel()

	if _, err := NewStore().Nearest(context.Background(), []float32{1}); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateLastSeen(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	if err := s.Enroll(ctx, identity.Identity{ID: "alice"}, [][]float32{{1}}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	at := time.Now()
	if err := s.UpdateLastSeen(ctx, "alice", at); err != nil {
		t.Fatalf("UpdateLastSeen: %v", err)
	}
	got, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastSeenAt.Equal(at) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, at)
	}
	if err := s.UpdateLastSeen(ctx, "ghost", at); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
