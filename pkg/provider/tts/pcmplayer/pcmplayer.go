// Package pcmplayer implements tts.Player by piping PCM into an external
// playback command (aplay by default). The placeholder {rate} in the
// command is replaced with the sample rate of the audio being played.
package pcmplayer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/roomguard/pkg/provider/tts"
)

// Compile-time assertion that *Player satisfies tts.Player.
var _ tts.Player = (*Player)(nil)

// Player plays 16-bit mono PCM through an external command.
type Player struct {
	command []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	playing atomic.Bool
}

// New creates a Player around command, which must read raw 16-bit mono PCM
// from stdin and block until playback finishes.
func New(command []string) (*Player, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pcmplayer: playback command must not be empty")
	}
	return &Player{command: command}, nil
}

// Play pipes pcm into the playback command and blocks until it exits, is
// stopped, or ctx is cancelled. A stopped playback is not an error.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}

	playCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return fmt.Errorf("pcmplayer: playback already in progress")
	}
	p.cancel = cancel
	p.mu.Unlock()

	p.playing.Store(true)
	defer func() {
		p.playing.Store(false)
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	args := make([]string, len(p.command))
	for i, a := range p.command {
		args[i] = strings.ReplaceAll(a, "{rate}", strconv.Itoa(sampleRate))
	}

	cmd := exec.CommandContext(playCtx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(pcm)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if playCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("pcmplayer: run %q: %w", args[0], err)
	}
	return nil
}

// Stop interrupts an in-flight Play call. A no-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// IsPlaying reports whether the playback command is running.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}
