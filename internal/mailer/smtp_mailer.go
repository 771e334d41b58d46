package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPConfig carries the connection settings for an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From defaults to Username; FromName defaults to "HR Onboarding".
	From     string
	FromName string
}

// SMTPMailer delivers messages over SMTP with STARTTLS. The server address
// and credentials come from configuration; a missing credential fails the
// send rather than silently dropping it.
type SMTPMailer struct {
	cfg SMTPConfig

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer for the given SMTP server.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.FromName == "" {
		cfg.FromName = "HR Onboarding"
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return fmt.Errorf("mailer: smtp credentials missing")
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.sendMail(addr, auth, m.cfg.From, []string{msg.To}, buildMIMEMessage(m.cfg.From, m.cfg.FromName, msg)); err != nil {
		return fmt.Errorf("mailer: smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// buildMIMEMessage assembles the RFC 5322 wire form of a message.
func buildMIMEMessage(from, fromName string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
