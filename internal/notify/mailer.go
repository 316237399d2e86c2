package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pwhittaker/playpulse/internal/logging"
)

// SMTPMailer sends notifications over plain SMTP with AUTH PLAIN. When the
// credentials are not configured it degrades to logging the would-be message
// so a bare install still surfaces failures somewhere.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	log      *logging.Logger
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(host string, port int, username, password, from string, to []string, log *logging.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		log:      log,
	}
}

// Configured reports whether the mailer has enough settings to deliver.
func (m *SMTPMailer) Configured() bool {
	return m.username != "" && m.password != "" && len(m.to) > 0
}

// Send delivers one message to all recipients.
func (m *SMTPMailer) Send(subject, body string) error {
	if !m.Configured() {
		m.log.Warnf("Email not configured, would have sent: [Playpulse] %s", subject)
		return fmt.Errorf("smtp not configured")
	}

	from := m.from
	if from == "" {
		from = m.username
	}

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(m.to, ", "),
		"Subject: [Playpulse] " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	if err := smtp.SendMail(addr, auth, from, m.to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}
