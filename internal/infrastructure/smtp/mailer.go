package smtp

import (
	"fmt"
	"net/smtp"

	"github.com/go-auth-api/internal/config"
)

// Mailer is the outbound-notification channel for the auth flows.
// Delivery failure is a recoverable error for the caller, never an invariant
// violation of the issuing flow.
type Mailer interface {
	SendVerificationEmail(to, username, link string) error
	SendPasswordResetEmail(to, username, link string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) SendVerificationEmail(to, username, link string) error {
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nPlease verify your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours. If you did not create this account, ignore this message.",
		username, link)
	return m.send(to, "Verify your email", body)
}

func (m *mailer) SendPasswordResetEmail(to, username, link string) error {
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nA password reset was requested for your account. Open the link below to choose a new password:\r\n\r\n%s\r\n\r\nThe link expires in 1 hour. If you did not request this, ignore this message.",
		username, link)
	return m.send(to, "Reset your password", body)
}

func (m *mailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
