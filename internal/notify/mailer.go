// Package notify delivers outbound email. Delivery is a side effect of state
// changes and never decides their outcome.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	send func(...*gomail.Message) error
	from string
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		send: gomail.NewDialer(host, port, user, pass).DialAndSend,
		from: from,
	}
}

// Send gives up when ctx is done. gomail has no context support, so the
// SMTP exchange itself finishes in the background.

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)

	done := make(chan error, 1)
	go func() { done <- m.send(gm) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", msg.To, ctx.Err())
	}
}

// LogMailer logs messages instead of sending them. Used when SMTP is not
// configured.
type LogMailer struct {
	logger *zap.SugaredLogger
}

// NewLogMailer creates a logging mailer
func NewLogMailer(logger *zap.SugaredLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Infow("Email not sent (SMTP not configured)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
