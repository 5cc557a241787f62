package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/mrsingh86/chronicled/internal/chain"
	"github.com/mrsingh86/chronicled/internal/config"
)

// slackPoster is the slice of the Slack client we use; tests stub it.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier pings operators about chains that need eyes. It implements
// chain.Alerter.
type SlackNotifier struct {
	client  slackPoster
	channel string
}

// NewSlackNotifier builds a notifier from config.
func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(cfg.Token),
		channel: cfg.Channel,
	}
}

// UrgentChain posts when detection opens a communication chain off an
// urgent-sentiment message.
func (n *SlackNotifier) UrgentChain(ctx context.Context, c *chain.Chain) error {
	text := fmt.Sprintf(":rotating_light: Urgent on %s: %s\n%s", c.ShipmentID, c.Headline, c.CurrentState)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post urgent alert: %w", err)
	}
	return nil
}

// StaleChains posts a summary after a sweep marks chains stale.
func (n *SlackNotifier) StaleChains(ctx context.Context, count int) error {
	text := fmt.Sprintf(":hourglass: %d chain(s) went stale with no new activity. Review and refresh or resolve.", count)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post stale alert: %w", err)
	}
	return nil
}
