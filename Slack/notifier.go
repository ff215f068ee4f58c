package Slack

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"SpareLink/Models"

	"github.com/slack-go/slack"
)

// BreachNotifier posts TAT breach alerts to one Slack channel.
// Required Bot Token Scopes:
// - chat:write (send messages)
// - chat:write.public (send to channels without being invited)
type BreachNotifier struct {
	client  *slack.Client
	channel string
}

// NewBreachNotifier returns nil when token or channel is empty so callers
// can leave alerts switched off.
func NewBreachNotifier(token, channel string, opts ...slack.Option) *BreachNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &BreachNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

func (n *BreachNotifier) NotifyBreaches(ctx context.Context, breaches []Models.TATBreach) error {
	if len(breaches) == 0 {
		return nil
	}
	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(BreachMessage(breaches, time.Now()), false),
	)
	if err != nil {
		return fmt.Errorf("slack API error: %w", err)
	}
	log.Printf("Sent TAT breach alert for %d calls to %s (ts %s)", len(breaches), n.channel, ts)
	return nil
}

// BreachMessage renders the alert text, one line per call.
func BreachMessage(breaches []Models.TATBreach, at time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(":rotating_light: *TAT breached on %d call(s)*\n", len(breaches)))
	for _, b := range breaches {
		sb.WriteString(fmt.Sprintf("• Call #%d", b.CallID))
		if b.TechnicianID != 0 {
			sb.WriteString(fmt.Sprintf(" (technician %d)", b.TechnicianID))
		}
		sb.WriteString(fmt.Sprintf(": %s net, SLA %s\n", formatMinutes(b.NetMinutes), formatMinutes(b.SLAMinutes)))
	}
	sb.WriteString(fmt.Sprintf("_Checked at %s_", at.Format("2006-01-02 15:04")))
	return sb.String()
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
