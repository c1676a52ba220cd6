// Package mock provides test doubles for the capture.AudioSource and
// capture.Camera interfaces.
//
// AudioSource hands out pre-loaded chunks in order; Camera hands out
// pre-loaded frames. Both record lifecycle calls so tests can assert that
// devices are acquired and released at the right moments.
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/roomguard/pkg/capture"
)

// AudioSource is a mock implementation of capture.AudioSource.
type AudioSource struct {
	mu sync.Mutex

	// Chunks is the sequence of PCM chunks returned by ReadChunk, one per
	// call. When exhausted, ReadChunk returns (nil, false).
	Chunks [][]byte

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// Rate is returned by SampleRate. Defaults to 16000 when zero.
	Rate int

	// --- Recorded state ---

	// Started counts calls to Start.
	Started int

	// Stopped counts calls to Stop.
	Stopped int

	next    int
	running bool
}

var _ capture.AudioSource = (*AudioSource)(nil)

func (a *AudioSource) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Started++
	if a.StartErr != nil {
		return a.StartErr
	}
	a.running = true
	return nil
}

func (a *AudioSource) ReadChunk(timeout time.Duration) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || a.next >= len(a.Chunks) {
		return nil, false
	}
	chunk := a.Chunks[a.next]
	a.next++
	return chunk, true
}

func (a *AudioSource) SampleRate() int {
	if a.Rate == 0 {
		return 16000
	}
	return a.Rate
}

func (a *AudioSource) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Stopped++
	a.running = false
}

// Camera is a mock implementation of capture.Camera.
type Camera struct {
	mu sync.Mutex

	// Frames is the sequence of frames returned by Frame. The last frame
	// is repeated once the sequence is exhausted, mimicking a live camera
	// that keeps serving its most recent frame.
	Frames []capture.Frame

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// --- Recorded state ---

	// Opened counts calls to Open.
	Opened int

	// Closed counts calls to Close.
	Closed int

	next int
	open bool
}

var _ capture.Camera = (*Camera)(nil)

func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Opened++
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.open = true
	return nil
}

func (c *Camera) Frame() (capture.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || len(c.Frames) == 0 {
		return capture.Frame{}, false
	}
	if c.next >= len(c.Frames) {
		return c.Frames[len(c.Frames)-1], true
	}
	f := c.Frames[c.next]
	c.next++
	return f, true
}

func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed++
	c.open = false
}

// IsOpen reports whether the camera is currently open. Test helper.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
