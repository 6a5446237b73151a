package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"

	"github.com/contactvault/server/internal/config"
)

// Dispatcher sends account-lifecycle emails. Implementations must not be
// relied on for request success: callers dispatch in the background and
// only log failures.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, email, username, token string) error
	SendPasswordReset(ctx context.Context, email, username, token string) error
}

// SMTPDispatcher delivers mail over implicit TLS (port 465 style)
type SMTPDispatcher struct {
	cfg     config.SMTPConfig
	baseURL string
}

// NewSMTPDispatcher creates a dispatcher that sends through the configured SMTP server
func NewSMTPDispatcher(cfg config.SMTPConfig, baseURL string) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, baseURL: baseURL}
}

// SendConfirmation sends the email-confirmation link
func (d *SMTPDispatcher) SendConfirmation(ctx context.Context, email, username, token string) error {
	link := fmt.Sprintf("%s/auth/confirmed_email/%s", d.baseURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Please confirm your email by following <a href=%q>this link</a>.</p>",
		username, link)
	return d.send(ctx, email, "Confirm your email", body)
}

// SendPasswordReset sends the password-reset link
func (d *SMTPDispatcher) SendPasswordReset(ctx context.Context, email, username, token string) error {
	link := fmt.Sprintf("%s/auth/reset_password/%s", d.baseURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>To reset your password, follow <a href=%q>this link</a>. If you did not request this, ignore this message.</p>",
		username, link)
	return d.send(ctx, email, "Reset your password", body)
}

func (d *SMTPDispatcher) send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", d.cfg.From) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := d.cfg.Host + ":" + d.cfg.Port

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: d.cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

// LogDispatcher logs instead of sending. Used when SMTP is not configured.
type LogDispatcher struct{}

// SendConfirmation logs the confirmation token
func (LogDispatcher) SendConfirmation(_ context.Context, email, username, token string) error {
	log.Printf("mail (dev): confirmation for %s (%s): token=%s", username, maskEmail(email), token)
	return nil
}

// SendPasswordReset logs the reset token
func (LogDispatcher) SendPasswordReset(_ context.Context, email, username, token string) error {
	log.Printf("mail (dev): password reset for %s (%s): token=%s", username, maskEmail(email), token)
	return nil
}

// maskEmail hides most of the local part for logs
func maskEmail(email string) string {
	for i, r := range email {
		if r == '@' {
			if i <= 2 {
				return "***" + email[i:]
			}
			return email[:2] + "***" + email[i:]
		}
	}
	return "***"
}
