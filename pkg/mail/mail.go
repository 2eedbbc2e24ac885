package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Sender delivers plain-text mails
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP host is configured
func (c Config) Enabled() bool {
	return c.Host != ""
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpSender struct {
	dialer dialer
	from   string
}

// NewSender returns an SMTP sender, or a sender that only logs when no host is configured
func NewSender(cfg Config) Sender {
	if !cfg.Enabled() {
		return NopSender{}
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// NopSender drops mails after logging them at debug level
type NopSender struct{}

func (NopSender) Send(ctx context.Context, to, subject, body string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("mail delivery disabled")
	return nil
}
