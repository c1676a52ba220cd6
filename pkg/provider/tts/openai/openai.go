// Package openai implements tts.Speaker using the OpenAI speech API for
// synthesis and an injected [tts.Player] for local playback.
//
// Synthesis requests raw PCM output (24 kHz, 16-bit mono) so the result
// can be handed straight to the playback device without decoding.
package openai

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/roomguard/pkg/provider/tts"
)

// pcmSampleRate is the sample rate of the OpenAI speech API's PCM output.
const pcmSampleRate = 24000

// Compile-time assertion that *Speaker satisfies tts.Speaker.
var _ tts.Speaker = (*Speaker)(nil)

// Speaker synthesises speech via the OpenAI API and plays it through the
// injected player.
type Speaker struct {
	client oai.Client
	player tts.Player
	model  string
	voice  oai.AudioSpeechNewParamsVoice
}

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithModel sets the speech model. Default: "gpt-4o-mini-tts".
func WithModel(model string) Option {
	return func(s *Speaker) { s.model = model }
}

// WithVoice sets the voice preset. Default: "alloy".
func WithVoice(voice string) Option {
	return func(s *Speaker) { s.voice = oai.AudioSpeechNewParamsVoice(voice) }
}

// New creates a Speaker using the given API key and playback device.
func New(apiKey string, player tts.Player, opts ...Option) (*Speaker, error) {
	if player == nil {
		return nil, fmt.Errorf("openai tts: player must not be nil")
	}

	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}

	s := &Speaker{
		client: oai.NewClient(clientOpts...),
		player: player,
		model:  "gpt-4o-mini-tts",
		voice:  oai.AudioSpeechNewParamsVoiceAlloy,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SynthesizeAndPlay requests PCM speech for text and blocks until the
// player has finished (or was stopped / cancelled).
func (s *Speaker) SynthesizeAndPlay(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	resp, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai tts: read audio: %w", err)
	}

	if err := s.player.Play(ctx, pcm, pcmSampleRate); err != nil {
		return fmt.Errorf("openai tts: playback: %w", err)
	}
	return nil
}

// StopPlayback interrupts any in-flight playback.
func (s *Speaker) StopPlayback() {
	s.player.Stop()
}

// IsPlaying reports whether the playback device is active.
func (s *Speaker) IsPlaying() bool {
	return s.player.IsPlaying()
}
