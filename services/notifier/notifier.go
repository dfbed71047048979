package notifier

import (
	"context"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/logger"
	"github.com/dealmungchi/pricewatch/pkg/errors"
)

// Notifier delivers an alert to its recipients
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// EmailNotifier sends plain-text alerts over authenticated SMTP. Port 465
// uses implicit TLS; other ports require STARTTLS.
type EmailNotifier struct {
	cfg    config.SMTP
	dialer *gomail.Dialer
}

// NewEmailNotifier creates a notifier from SMTP settings
func NewEmailNotifier(cfg config.SMTP) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = 10 * time.Second
	// never fall back to a plaintext session on STARTTLS ports
	dialer.StartTLSPolicy = gomail.MandatoryStartTLS
	return &EmailNotifier{cfg: cfg, dialer: dialer}
}

// Send delivers one message to every configured recipient
func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewNotification(subject, "send cancelled", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(n.message(subject, body))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewNotification(subject, "failed to send email", err)
		}
	case <-ctx.Done():
		return errors.NewNotification(subject, "send cancelled", ctx.Err())
	}

	logger.ForNotifier().Info().
		Str("subject", subject).
		Int("recipients", len(n.cfg.To)).
		Msg("Email sent")
	return nil
}

func (n *EmailNotifier) message(subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
