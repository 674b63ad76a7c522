package dispatch

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mwillard/beacon/internal/config"
)

// discordSender abstracts the discordgo method we use, enabling test mocks.
type discordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordChannel posts alert messages to a caregiver Discord channel.
type DiscordChannel struct {
	session   discordSender
	channelID string
}

// NewDiscordChannel creates a Discord channel from bot credentials.
func NewDiscordChannel(cfg config.DiscordConfig) (*DiscordChannel, error) {
	if cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("dispatch: discord credentials not configured")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("dispatch: discord session: %w", err)
	}
	return &DiscordChannel{session: session, channelID: cfg.ChannelID}, nil
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Send(ctx context.Context, phone, body string) (string, string, error) {
	content := fmt.Sprintf("🚨 **Emergency alert** (for %s)\n%s", phone, body)
	msg, err := c.session.ChannelMessageSend(c.channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", "", fmt.Errorf("discord: send to %s: %w", c.channelID, err)
	}
	return msg.ID, "posted", nil
}
