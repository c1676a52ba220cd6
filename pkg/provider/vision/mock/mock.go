// Package mock provides a test double for the vision.Service interface.
//
// Results are consumed in order, one result set per frame; when exhausted
// the mock reports no faces. This lets a test script a scene: a few empty
// frames, then an unknown face, then a trusted face.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/roomguard/pkg/capture"
	"github.com/MrWong99/roomguard/pkg/provider/vision"
)

// Service is a mock implementation of vision.Service.
type Service struct {
	mu sync.Mutex

	// Results is the sequence of detection sets returned by
	// DetectAndIdentify, one per call. When exhausted, calls return no
	// detections.
	Results [][]vision.Detection

	// Err, if non-nil, is returned by every DetectAndIdentify call.
	Err error

	// Frames records every frame passed to DetectAndIdentify.
	Frames []capture.Frame

	next int
}

var _ vision.Service = (*Service)(nil)

func (s *Service) DetectAndIdentify(ctx context.Context, frame capture.Frame) ([]vision.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, frame)
	if s.Err != nil {
		return nil, s.Err
	}
	if s.next >= len(s.Results) {
		return nil, nil
	}
	r := s.Results[s.next]
	s.next++
	return r, nil
}

// CallCount returns the number of DetectAndIdentify invocations so far.
func (s *Service) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}
