package pcmplayer

import (
	"context"
	"testing"
	"time"
)

func TestPlayRunsCommandWithRate(t *testing.T) {
	t.Parallel()

	// $0 is the injected rate; the command fails unless substitution worked.
	p, err := New([]string{"sh", "-c", `[ "$0" = "24000" ] && cat >/dev/null`, "{rate}"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Play(context.Background(), []byte{1, 2, 3, 4}, 24000); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := p.Play(context.Background(), []byte{1, 2, 3, 4}, 16000); err == nil {
		t.Error("wrong rate should fail the guard command")
	}
}

func TestPlayEmptyPCMIsNoop(t *testing.T) {
	t.Parallel()

	p, err := New([]string{"false"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Play(context.Background(), nil, 24000); err != nil {
		t.Errorf("empty PCM should not invoke the command: %v", err)
	}
}

func TestStopInterruptsPlayback(t *testing.T) {
	t.Parallel()

	p, err := New([]string{"sh", "-c", "cat; sleep 60"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), []byte{0, 0}, 24000) }()

	deadline := time.Now().Add(2 * time.Second)
	for !p.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !p.IsPlaying() {
		t.Fatal("playback never started")
	}

	p.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stopped playback should not error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}
	if p.IsPlaying() {
		t.Error("IsPlaying = true after Stop")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("empty command should be rejected")
	}
}
