// Package smtp sends outreach email through an SMTP relay.
package smtp

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Email is one outbound message.
type Email struct {
	To       string
	Subject  string
	BodyText string
	BodyHTML string
}

// Sender delivers email. Implementations must be safe to call
// sequentially; the send loop never fans out.
type Sender interface {
	Send(email Email) error
}

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type gomailSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender creates a Sender over a gomail SMTP dialer.
func NewSender(cfg Config) Sender {
	return &gomailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *gomailSender) Send(email Email) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/plain", email.BodyText)
	if email.BodyHTML != "" {
		m.AddAlternative("text/html", email.BodyHTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrapf(err, "smtp: send to %s", email.To)
	}
	zap.L().Info("email sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}
