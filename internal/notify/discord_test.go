package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// sendRecorder records channel messages for test assertions.
type sendRecorder struct {
	channelIDs []string
	contents   []string
	err        error
}

func (r *sendRecorder) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.channelIDs = append(r.channelIDs, channelID)
	r.contents = append(r.contents, content)
	if r.err != nil {
		return nil, r.err
	}
	return &discordgo.Message{ID: "mock-message"}, nil
}

func TestDiscordNotify(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{}
	d, err := NewDiscord(rec, "chan-1")
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}

	at := time.Date(2026, 8, 1, 23, 15, 30, 0, time.UTC)
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"intruder", Event{Kind: KindIntruderDetected, At: at}, "Unrecognized person"},
		{"final warning", Event{Kind: KindFinalWarning, Level: 4, Message: "still present", At: at}, "level 4"},
		{"ended", Event{Kind: KindConfrontationEnded, Message: "person-cooperative", At: at}, "person-cooperative"},
	}
	for _, tt := range tests {
		if err := d.Notify(context.Background(), tt.ev); err != nil {
			t.Fatalf("%s: Notify: %v", tt.name, err)
		}
	}

	if len(rec.contents) != len(tests) {
		t.Fatalf("sent %d messages, want %d", len(rec.contents), len(tests))
	}
	for i, tt := range tests {
		if rec.channelIDs[i] != "chan-1" {
			t.Errorf("%s: channel = %q, want chan-1", tt.name, rec.channelIDs[i])
		}
		if !strings.Contains(rec.contents[i], tt.want) {
			t.Errorf("%s: message %q does not contain %q", tt.name, rec.contents[i], tt.want)
		}
		if !strings.Contains(rec.contents[i], "23:15:30") {
			t.Errorf("%s: message %q missing timestamp", tt.name, rec.contents[i])
		}
	}
}

func TestDiscordNotifySendError(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{err: errors.New("rate limited")}
	d, err := NewDiscord(rec, "chan-1")
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}
	if err := d.Notify(context.Background(), Event{Kind: KindIntruderDetected, At: time.Now()}); err == nil {
		t.Fatal("Notify should surface the send error")
	}
}

func TestDiscordNotifyCancelledContext(t *testing.T) {
	t.Parallel()

	rec := &sendRecorder{}
	d, err := NewDiscord(rec, "chan-1")
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Notify(ctx, Event{Kind: KindIntruderDetected, At: time.Now()}); err == nil {
		t.Fatal("Notify with cancelled context should fail")
	}
	if len(rec.contents) != 0 {
		t.Error("no message should be sent on cancelled context")
	}
}

func TestNewDiscordValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewDiscord(nil, "chan"); err == nil {
		t.Error("nil sender should be rejected")
	}
	if _, err := NewDiscord(&sendRecorder{}, ""); err == nil {
		t.Error("empty channel should be rejected")
	}
}
