// Package pipe implements the capture interfaces on top of external
// commands. The audio source wraps a command that streams raw 16-bit mono
// PCM to stdout (arecord by default); the camera wraps a command that
// writes one encoded frame to stdout per invocation (ffmpeg by default).
//
// Wrapping stock tools keeps the binary free of audio and video CGO while
// still running against real devices.
package pipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/MrWong99/roomguard/pkg/capture"
)

// chunkMillis is how much audio one ReadChunk result carries.
const chunkMillis = 100

// Compile-time assertions that the pipe types satisfy the capture
// interfaces.
var (
	_ capture.AudioSource = (*AudioSource)(nil)
	_ capture.Camera      = (*Camera)(nil)
)

// AudioSource reads PCM from a capture command's stdout.
type AudioSource struct {
	command    []string
	sampleRate int
	chunkSize  int

	mu     sync.Mutex
	cmd    *exec.Cmd
	chunks chan []byte
}

// NewAudioSource creates an AudioSource around command, which must stream
// raw 16-bit mono PCM at sampleRate Hz to stdout until killed.
func NewAudioSource(command []string, sampleRate int) (*AudioSource, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pipe: capture command must not be empty")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pipe: sample rate %d must be positive", sampleRate)
	}
	return &AudioSource{
		command:    command,
		sampleRate: sampleRate,
		chunkSize:  sampleRate * 2 * chunkMillis / 1000,
	}, nil
}

// Start launches the capture command and begins buffering chunks.
func (a *AudioSource) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd != nil {
		return fmt.Errorf("pipe: audio source already started")
	}

	cmd := exec.Command(a.command[0], a.command[1:]...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pipe: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("pipe: start %q: %w", a.command[0], err)
	}

	a.cmd = cmd
	a.chunks = make(chan []byte, 16)
	go a.readLoop(stdout, a.chunks)
	return nil
}

// readLoop slices the command's stdout into fixed-size chunks. When the
// buffer is full the oldest chunk is discarded so a stalled consumer never
// backs up into the device.
func (a *AudioSource) readLoop(r io.Reader, chunks chan []byte) {
	for {
		buf := make([]byte, a.chunkSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF {
				slog.Warn("audio capture stream ended", "error", err)
			}
			return
		}
		select {
		case chunks <- buf:
		default:
			select {
			case <-chunks:
			default:
			}
			select {
			case chunks <- buf:
			default:
			}
		}
	}
}

// ReadChunk returns the next buffered chunk, waiting at most timeout.
func (a *AudioSource) ReadChunk(timeout time.Duration) ([]byte, bool) {
	a.mu.Lock()
	chunks := a.chunks
	a.mu.Unlock()
	if chunks == nil {
		return nil, false
	}

	select {
	case chunk := <-chunks:
		return chunk, true
	case <-time.After(timeout):
		return nil, false
	}
}

// SampleRate reports the configured PCM sample rate.
func (a *AudioSource) SampleRate() int {
	return a.sampleRate
}

// Stop kills the capture command and releases the device. Safe to call
// more than once.
func (a *AudioSource) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd == nil {
		return
	}
	if a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
	}
	_ = a.cmd.Wait()
	a.cmd = nil
	a.chunks = nil
}

// Camera produces frames by periodically invoking a snapshot command.
type Camera struct {
	command  []string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	latest capture.Frame
	have   bool
}

// NewCamera creates a Camera around command, which must write one encoded
// frame to stdout per invocation. A new frame is grabbed every interval
// while the camera is open.
func NewCamera(command []string, interval time.Duration) (*Camera, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pipe: camera command must not be empty")
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Camera{command: command, interval: interval}, nil
}

// Open starts the snapshot loop. A no-op when the camera is already open.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.snapshotLoop(ctx)
	return nil
}

func (c *Camera) snapshotLoop(ctx context.Context) {
	for {
		cmdCtx, cancel := context.WithTimeout(ctx, c.interval+10*time.Second)
		cmd := exec.CommandContext(cmdCtx, c.command[0], c.command[1:]...)
		data, err := cmd.Output()
		cancel()

		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			slog.Warn("camera snapshot failed", "command", c.command[0], "error", err)
		case len(data) > 0:
			c.mu.Lock()
			c.latest = capture.Frame{Data: data, CapturedAt: time.Now()}
			c.have = true
			c.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

// Frame returns the most recent snapshot.
func (c *Camera) Frame() (capture.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil || !c.have {
		return capture.Frame{}, false
	}
	return c.latest, true
}

// Close stops the snapshot loop. Safe to call more than once and on a
// camera that was never opened.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.have = false
}
