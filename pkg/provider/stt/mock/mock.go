// Package mock provides a test double for the stt.Transcriber interface.
//
// Results are consumed in order; when the list is exhausted the mock
// returns an empty transcript, mimicking silence.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/roomguard/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// PCM is the audio passed to Transcribe.
	PCM []byte
	// SampleRate is the sample rate passed to Transcribe.
	SampleRate int
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results is the sequence of transcripts returned by Transcribe, one
	// per call. When exhausted, Transcribe returns "".
	Results []string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every invocation in order.
	Calls []TranscribeCall

	next int
}

var _ stt.Transcriber = (*Transcriber)(nil)

func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, TranscribeCall{PCM: pcm, SampleRate: sampleRate})
	if t.Err != nil {
		return "", t.Err
	}
	if t.next >= len(t.Results) {
		return "", nil
	}
	r := t.Results[t.next]
	t.next++
	return r, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
