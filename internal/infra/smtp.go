package infra

import (
	"bytes"
	"fmt"
	"net/smtp"

	"foodtruck/internal/config"

	"github.com/jordan-wright/email"
)

// Attachment is an in-memory file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer sends transactional mail (issued boletas) over SMTP.
type Mailer struct {
	from string
	addr string
	auth smtp.Auth
	send func(e *email.Email, addr string, a smtp.Auth) error
}

func NewMailer(cfg *config.Config) *Mailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &Mailer{
		from: fmt.Sprintf("%s <%s>", cfg.NombreComercio, cfg.SMTPUser),
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

// Send delivers a plain-text message with optional attachments.
func (m *Mailer) Send(to, subject, body string, files ...Attachment) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	for _, f := range files {
		if _, err := e.Attach(bytes.NewReader(f.Data), f.Filename, f.ContentType); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", f.Filename, err)
		}
	}
	if err := m.send(e, m.addr, m.auth); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}
