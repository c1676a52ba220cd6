// Package capture defines the collaborator interfaces for raw audio and
// video acquisition. The guard core never touches hardware directly: it
// reads timestamped PCM chunks from an [AudioSource] and frames from a
// [Camera], both of which wrap a platform backend (ALSA, V4L2, a test
// double, …).
//
// Implementations must be safe for concurrent use. ReadChunk and Frame are
// polled from dedicated capture loops; they must never block longer than
// the timeout they were given.
package capture

import "time"

// Frame is an opaque handle to one captured video frame. The core forwards
// frames to the vision collaborator without inspecting the pixel data.
type Frame struct {
	// Data is the raw frame in whatever encoding the camera backend
	// produces (the vision service and the camera must agree on it).
	Data []byte

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// CapturedAt is the wall-clock capture time.
	CapturedAt time.Time
}

// AudioSource is the abstraction over a microphone or other PCM input.
//
// The contract mirrors a blocking device read: Start opens the device and
// begins buffering, ReadChunk hands out buffered PCM with a bounded wait,
// Stop releases the device. Calling ReadChunk before Start or after Stop
// returns (nil, false).
type AudioSource interface {
	// Start opens the input device and begins capturing. Returns an error
	// if the device cannot be acquired; this is the only fatal startup
	// condition in the system.
	Start() error

	// ReadChunk returns the next buffered PCM chunk, waiting at most
	// timeout for data to arrive. The second return value is false when no
	// data arrived within the timeout; the caller simply re-polls on its
	// next loop iteration.
	ReadChunk(timeout time.Duration) ([]byte, bool)

	// SampleRate reports the PCM sample rate in Hz of chunks returned by
	// ReadChunk.
	SampleRate() int

	// Stop halts capture and releases the device. Safe to call more than
	// once.
	Stop()
}

// Camera is the abstraction over a video capture device.
//
// The core opens the camera only while guard mode is active and closes it
// the moment guard mode ends, so recording indicator lights are off
// whenever the room is not being monitored.
type Camera interface {
	// Open acquires the device and starts frame capture. Returns an error
	// if the device cannot be acquired.
	Open() error

	// Frame returns the most recent captured frame. The second return
	// value is false when the camera is closed or no frame is available
	// yet.
	Frame() (Frame, bool)

	// Close stops capture and releases the device. Safe to call more than
	// once and on a camera that was never opened.
	Close()
}
