package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// MessageSender is the slice of *discordgo.Session used by the Discord
// notifier, extracted so tests can substitute a recorder.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Compile-time interface checks.
var (
	_ MessageSender = (*discordgo.Session)(nil)
	_ Notifier      = (*Discord)(nil)
)

// Discord posts alerts as messages to a fixed channel.
type Discord struct {
	sender    MessageSender
	channelID string
}

// NewDiscord creates a Discord notifier posting to channelID.
func NewDiscord(sender MessageSender, channelID string) (*Discord, error) {
	if sender == nil {
		return nil, fmt.Errorf("notify: sender must not be nil")
	}
	if channelID == "" {
		return nil, fmt.Errorf("notify: channelID must not be empty")
	}
	return &Discord{sender: sender, channelID: channelID}, nil
}

// NewDiscordSession opens a discordgo session with the given bot token.
// The caller owns the session and should close it on shutdown.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: create discord session: %w", err)
	}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("notify: open discord session: %w", err)
	}
	return s, nil
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.sender.ChannelMessageSend(d.channelID, format(ev)); err != nil {
		return fmt.Errorf("notify: send discord message: %w", err)
	}
	return nil
}

func format(ev Event) string {
	stamp := ev.At.Format("15:04:05")
	switch ev.Kind {
	case KindIntruderDetected:
		return fmt.Sprintf("🚨 [%s] Unrecognized person in the room. Starting confrontation.", stamp)
	case KindFinalWarning:
		return fmt.Sprintf("⚠️ [%s] Escalation reached level %d (final warning). %s", stamp, ev.Level, ev.Message)
	case KindConfrontationEnded:
		return fmt.Sprintf("ℹ️ [%s] Confrontation ended: %s", stamp, ev.Message)
	default:
		return fmt.Sprintf("[%s] %s", stamp, ev.Message)
	}
}
