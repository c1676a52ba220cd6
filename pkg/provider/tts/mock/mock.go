// Package mock provides a test double for the tts.Speaker interface.
//
// Playback duration is simulated: SynthesizeAndPlay blocks for PlayDelay
// (or until StopPlayback / context cancellation) while IsPlaying reports
// true, so tests can exercise the "wait for in-flight speech" paths of the
// conversation controller with real timing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/roomguard/pkg/provider/tts"
)

// Speaker is a mock implementation of tts.Speaker.
type Speaker struct {
	mu sync.Mutex

	// PlayDelay is how long each SynthesizeAndPlay call blocks while
	// reporting IsPlaying. Zero means the call returns immediately.
	PlayDelay time.Duration

	// Err, if non-nil, is returned by SynthesizeAndPlay without playing.
	Err error

	// Spoken records every text passed to SynthesizeAndPlay, in order.
	Spoken []string

	// Stops counts calls to StopPlayback.
	Stops int

	playing  bool
	stopping chan struct{}
}

var _ tts.Speaker = (*Speaker)(nil)

func (s *Speaker) SynthesizeAndPlay(ctx context.Context, text string) error {
	s.mu.Lock()
	s.Spoken = append(s.Spoken, text)
	if s.Err != nil {
		s.mu.Unlock()
		return s.Err
	}
	s.playing = true
	s.stopping = make(chan struct{})
	stop := s.stopping
	delay := s.PlayDelay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
	}()

	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
	case <-stop:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Speaker) StopPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stops++
	if s.playing && s.stopping != nil {
		close(s.stopping)
		s.stopping = nil
		s.playing = false
	}
}

func (s *Speaker) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SpokenTexts returns a copy of all texts spoken so far.
func (s *Speaker) SpokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	copy(out, s.Spoken)
	return out
}
