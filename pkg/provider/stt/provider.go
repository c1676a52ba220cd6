// Package stt defines the Transcriber interface for Speech-to-Text
// backends.
//
// Unlike a live conversation pipeline, the guard core works on discrete
// buffered utterances: the audio pipeline accumulates a few seconds of PCM
// and asks the transcriber for a one-shot result. Streaming partials are
// not needed, so the interface is a single blocking call with context
// cancellation.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Transcriber is the abstraction over any one-shot STT backend.
type Transcriber interface {
	// Transcribe converts a chunk of raw 16-bit mono PCM into text.
	// sampleRate is the PCM sample rate in Hz.
	//
	// An empty string with a nil error means the backend heard nothing
	// intelligible — this is a normal outcome for ambient noise, not a
	// fault. A non-nil error means the backend itself failed; the caller
	// logs it, skips the chunk, and retries on the next one.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}
