package email

import (
	"context"
	"fmt"
	"log"
	"strings"

	"SpareLink/Models"
)

// BreachMailer emails TAT breach alerts to a fixed list of recipients.
type BreachMailer struct {
	Config Models.EmailConfig
	To     []string
	send   func(Models.EmailConfig, Models.EmailMessage) error
}

// NewBreachMailer returns nil when no server or recipients are configured.
func NewBreachMailer(config Models.EmailConfig, to []string) *BreachMailer {
	if config.SMTPServer == "" || len(to) == 0 {
		return nil
	}
	return &BreachMailer{Config: config, To: to, send: SendEmail}
}

func (m *BreachMailer) NotifyBreaches(ctx context.Context, breaches []Models.TATBreach) error {
	if len(breaches) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body strings.Builder
	body.WriteString("The following calls passed their turnaround SLA:\n\n")
	for _, b := range breaches {
		body.WriteString(fmt.Sprintf("Call #%d", b.CallID))
		if b.TechnicianID != 0 {
			body.WriteString(fmt.Sprintf(", technician %d", b.TechnicianID))
		}
		body.WriteString(fmt.Sprintf(": %d net minutes against an SLA of %d\n", b.NetMinutes, b.SLAMinutes))
	}

	err := m.send(m.Config, Models.EmailMessage{
		To:      m.To,
		Subject: fmt.Sprintf("TAT breached on %d call(s)", len(breaches)),
		Body:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("send breach email: %w", err)
	}
	log.Printf("Emailed TAT breach alert for %d calls to %s", len(breaches), strings.Join(m.To, ", "))
	return nil
}
