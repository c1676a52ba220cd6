package dialogue_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/roomguard/internal/dialogue"
	llmmock "github.com/MrWong99/roomguard/pkg/provider/llm/mock"
	ttsmock "github.com/MrWong99/roomguard/pkg/provider/tts/mock"
)

func TestControllerStartSpeaksOpeningLine(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{Lines: []string{"Who are you?"}}
	spk := &ttsmock.Speaker{}
	c := dialogue.NewController(gen, spk)
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !c.Active() {
		t.Fatal("Active() = false after Start")
	}
	if c.Level() != 1 {
		t.Errorf("Level() = %d, want 1", c.Level())
	}
	spoken := spk.SpokenTexts()
	if len(spoken) != 1 || spoken[0] != "Who are you?" {
		t.Fatalf("spoken = %v, want the opening line", spoken)
	}
	req := gen.RequestAt(0)
	if req.Reason != "initial" || req.Level != 1 {
		t.Errorf("opening request = %+v, want initial at level 1", req)
	}

	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start should fail while active")
	}
}

func TestControllerCooperativeReplyEnds(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	var (
		mu  sync.Mutex
		sum *dialogue.Summary
	)
	c := dialogue.NewController(gen, spk,
		dialogue.WithOnEnd(func(s dialogue.Summary) {
			mu.Lock()
			defer mu.Unlock()
			sum = &s
		}))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.ProcessPersonResponse(context.Background(), "sorry, I'm leaving right now")

	if c.Active() {
		t.Fatal("conversation should have ended")
	}
	mu.Lock()
	defer mu.Unlock()
	if sum == nil {
		t.Fatal("OnEnd hook not invoked")
	}
	if sum.Reason != "person-cooperative" {
		t.Errorf("Reason = %q, want person-cooperative", sum.Reason)
	}
	// No follow-up line after the compliant reply, just the opener.
	if got := gen.CallCount(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
}

func TestControllerHostileReplyEscalates(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	var levels []int
	var mu sync.Mutex
	c := dialogue.NewController(gen, spk,
		dialogue.WithOnEscalated(func(level int) {
			mu.Lock()
			defer mu.Unlock()
			levels = append(levels, level)
		}))
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.ProcessPersonResponse(context.Background(), "go away, none of your business")

	if c.Level() != 2 {
		t.Fatalf("Level() = %d, want 2 after hostile reply", c.Level())
	}
	mu.Lock()
	if len(levels) != 1 || levels[0] != 2 {
		t.Errorf("escalation hook calls = %v, want [2]", levels)
	}
	mu.Unlock()

	// Exactly one follow-up cycle, tagged uncooperative.
	if got := gen.CallCount(); got != 2 {
		t.Fatalf("generator calls = %d, want 2", got)
	}
	req := gen.RequestAt(1)
	if req.Reason != "uncooperative" || req.Level != 2 {
		t.Errorf("follow-up request = %+v, want uncooperative at level 2", req)
	}
	if req.PersonReply == "" {
		t.Error("follow-up request should carry the person's reply")
	}
}

func TestControllerShortReplyAsksClarification(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	c := dialogue.NewController(gen, spk)
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.ProcessPersonResponse(context.Background(), "uh")

	if c.Level() != 1 {
		t.Errorf("Level() = %d, want 1 after clarification", c.Level())
	}
	if got := gen.CallCount(); got != 2 {
		t.Fatalf("generator calls = %d, want 2", got)
	}
	if req := gen.RequestAt(1); req.Reason != "clarification" {
		t.Errorf("follow-up reason = %q, want clarification", req.Reason)
	}
}

func TestControllerGeneratorFailureUsesFallback(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{Err: context.DeadlineExceeded}
	spk := &ttsmock.Speaker{}
	c := dialogue.NewController(gen, spk)
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	spoken := spk.SpokenTexts()
	if len(spoken) != 1 {
		t.Fatalf("spoken = %v, want one fallback line", spoken)
	}
	if !strings.Contains(spoken[0], "recognize") {
		t.Errorf("fallback line = %q, want the level 1 fallback", spoken[0])
	}
}

func TestControllerSilenceAutoEscalates(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	c := dialogue.NewController(gen, spk,
		dialogue.WithCheckInterval(10*time.Millisecond),
		dialogue.WithMaxSilence(50*time.Millisecond))
	defer c.EndConversation("test-done")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Level() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Level() < 2 {
		t.Fatalf("Level() = %d, want >= 2 after prolonged silence", c.Level())
	}

	// The watchdog cycle is marked as a silence timeout.
	found := false
	for i := 1; i < gen.CallCount(); i++ {
		if gen.RequestAt(i).Reason == "silence-timeout" {
			found = true
			break
		}
	}
	if !found {
		t.Error("no silence-timeout cycle recorded")
	}
}

func TestControllerReplyWaitsForPlayback(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{PlayDelay: 150 * time.Millisecond}
	c := dialogue.NewController(gen, spk)
	defer c.EndConversation("test-done")

	started := make(chan struct{})
	go func() {
		close(started)
		_ = c.Start(context.Background())
	}()
	<-started
	// Let the opener get into playback.
	deadline := time.Now().Add(time.Second)
	for !spk.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	begin := time.Now()
	c.ProcessPersonResponse(context.Background(), "my name is Sam, I was invited")
	if elapsed := time.Since(begin); elapsed < 50*time.Millisecond {
		t.Errorf("reply processed after %v, should have waited for playback", elapsed)
	}
	if got := gen.CallCount(); got != 2 {
		t.Errorf("generator calls = %d, want 2", got)
	}
}

func TestControllerEndWhileIdle(t *testing.T) {
	t.Parallel()

	c := dialogue.NewController(&llmmock.Generator{}, &ttsmock.Speaker{})
	if _, ok := c.EndConversation("nothing"); ok {
		t.Fatal("EndConversation with no active conversation should report false")
	}
	c.ProcessPersonResponse(context.Background(), "hello?") // dropped, no panic
}

func TestControllerEndStopsPlayback(t *testing.T) {
	t.Parallel()

	gen := &llmmock.Generator{}
	spk := &ttsmock.Speaker{}
	c := dialogue.NewController(gen, spk)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sum, ok := c.EndConversation("trusted-user-identified")
	if !ok {
		t.Fatal("EndConversation = false, want true")
	}
	if sum.Reason != "trusted-user-identified" {
		t.Errorf("Reason = %q", sum.Reason)
	}
	if spk.Stops == 0 {
		t.Error("EndConversation should stop playback")
	}
	if c.Active() {
		t.Error("Active() = true after EndConversation")
	}
}
