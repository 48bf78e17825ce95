// Package mailer sends one-time codes over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/oatsaysai/budgetbuddy/internal/config"
	"gopkg.in/gomail.v2"
)

// Dialer sends prepared messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends mail from a fixed address.
type Mailer struct {
	dialer Dialer
	from   string
}

// New returns a Mailer for the SMTP server in cfg.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// NewWithDialer returns a Mailer that sends through d.
func NewWithDialer(d Dialer, from string) *Mailer {
	return &Mailer{dialer: d, from: from}
}

// Compose builds the message without sending it.
func (m *Mailer) Compose(to, subject, text, html string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}
	return msg
}

// SendMail delivers one message. gomail has no context support, so ctx is
// only checked before dialing.
func (m *Mailer) SendMail(ctx context.Context, to, subject, text, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.Compose(to, subject, text, html)); err != nil {
		return fmt.Errorf("error sending mail to %s: %w", to, err)
	}
	return nil
}
