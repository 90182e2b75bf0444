// Package notify posts session completion notices to Slack.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// SlackNotifier posts a message to a channel when a session finalizes.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlack creates a notifier for the given bot token and channel.
func NewSlack(botToken, channel string) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(botToken),
		channel: channel,
	}
}

// SessionFinalized posts the outcome of a finalized session.
func (n *SlackNotifier) SessionFinalized(ctx context.Context, sess *model.Session, score *model.ScoreResult) error {
	var text string
	switch sess.Status {
	case model.StatusCompleted:
		text = fmt.Sprintf(":white_check_mark: Session `%s` for %s completed", sess.ID, sess.TicketID)
		if sess.ArtifactURL != "" {
			text += fmt.Sprintf(" <%s|view PR>", sess.ArtifactURL)
		}
	case model.StatusFailed:
		text = fmt.Sprintf(":x: Session `%s` for %s failed: %s",
			sess.ID, sess.TicketID, model.Truncate(sess.ErrorMessage, 200))
	default:
		return nil
	}
	if score != nil {
		text += fmt.Sprintf(" (score %d, %s)", score.Score, score.ClarityRating)
	}

	headerText := slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
	headerSection := slack.NewSectionBlock(headerText, nil, nil)

	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(headerSection),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}
