package dispatch

import (
	"context"
	"fmt"

	"github.com/mwillard/beacon/internal/config"
	slackapi "github.com/slack-go/slack"
)

// slackPoster abstracts the Slack API method we use, enabling test mocks.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackChannel posts alert messages to a caregiver Slack channel. Contacts
// share one channel; the recipient is named in the message text.
type SlackChannel struct {
	client    slackPoster
	channelID string
}

// NewSlackChannel creates a Slack channel from bot credentials.
func NewSlackChannel(cfg config.SlackConfig) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("dispatch: slack credentials not configured")
	}
	return &SlackChannel{
		client:    slackapi.New(cfg.BotToken),
		channelID: cfg.ChannelID,
	}, nil
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, phone, body string) (string, string, error) {
	text := fmt.Sprintf(":rotating_light: *Emergency alert* (for %s)\n%s", phone, body)
	_, ts, err := c.client.PostMessageContext(ctx, c.channelID,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return "", "", fmt.Errorf("slack: post to %s: %w", c.channelID, err)
	}
	return ts, "posted", nil
}
