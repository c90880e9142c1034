// Package mailer forwards contact-form submissions to the Resend email
// provider. Delivery is specified only at this interface boundary; the rest
// of the daemon never talks to the provider directly.
package mailer

import (
	"context"
	"fmt"
	"html"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/resend/resend-go/v2"

	"github.com/andr3so7/folio/config"
)

// ErrDeliveryFailed is returned when the provider rejects or fails a send.
// The caller maps it to a generic failure; provider details stay in logs.
var ErrDeliveryFailed = errors.New("mailer: failed to deliver message")

// Mailer sends a contact-form submission onward.
type Mailer interface {
	SendContactEmail(ctx context.Context, name, email, message string) error
}

type resendMailer struct {
	client *resend.Client
	from   string
	to     string
}

// New builds a Resend-backed mailer from the email configuration.
func New(cfg config.EmailConfiguration) Mailer {
	return &resendMailer{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (m *resendMailer) SendContactEmail(ctx context.Context, name, email, message string) error {
	if m.to == "" {
		log.Warn("mailer: no destination inbox configured, dropping submission")
		return ErrDeliveryFailed
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{m.to},
		Subject: "New message from the portfolio",
		Html: fmt.Sprintf(
			"<p><strong>Name:</strong> %s</p><p><strong>Email:</strong> %s</p><p><strong>Message:</strong><br/>%s</p>",
			html.EscapeString(name), html.EscapeString(email), html.EscapeString(message),
		),
		ReplyTo: email,
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.WithError(err).Error("mailer: provider rejected contact email")
		return ErrDeliveryFailed
	}
	log.WithField("email_id", sent.Id).Info("mailer: contact email delivered")
	return nil
}
