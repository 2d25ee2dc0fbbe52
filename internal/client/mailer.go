package client

import (
	"fmt"
	"log"
	"net/smtp"
)

// Mailer sends transactional email over SMTP. Sends are fire-and-forget from
// the caller's point of view: failures are logged and never gate control flow.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewMailer creates a new SMTP mailer
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers a plain-text email to a single recipient
func (m *Mailer) Send(to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\n", m.from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	log.Printf("[Mailer] Sent %q to %s", subject, to)
	return nil
}
