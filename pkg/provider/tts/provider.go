// Package tts defines the Speaker interface for speech synthesis and
// playback.
//
// The guard core speaks complete utterances: one escalation line is
// generated, synthesised, and played to the end (or interrupted). There is
// no streaming text-to-audio pipelining here, so the interface is a
// blocking synthesize-and-play call plus playback control.
//
// Implementations must be safe for concurrent use: the conversation
// controller calls SynthesizeAndPlay from its speak cycle while the
// watchdog and the orchestrator poll IsPlaying and may call StopPlayback
// from other goroutines.
package tts

import "context"

// Speaker is the abstraction over a TTS backend plus an audio output
// device.
type Speaker interface {
	// SynthesizeAndPlay converts text to speech and blocks until playback
	// completes, is stopped via StopPlayback, or ctx is cancelled. Only the
	// calling goroutine blocks; the rest of the system keeps running.
	SynthesizeAndPlay(ctx context.Context, text string) error

	// StopPlayback interrupts any in-flight playback. A no-op when nothing
	// is playing.
	StopPlayback()

	// IsPlaying reports whether audio is currently being played.
	IsPlaying() bool
}

// Player is the raw audio output collaborator used by Speaker
// implementations that synthesise remotely and play locally. It wraps a
// platform playback device (ALSA, PortAudio, a test double, …).
type Player interface {
	// Play writes 16-bit mono PCM to the output device and blocks until
	// done or ctx is cancelled.
	Play(ctx context.Context, pcm []byte, sampleRate int) error

	// Stop interrupts an in-flight Play call.
	Stop()

	// IsPlaying reports whether the device is currently playing.
	IsPlaying() bool
}
