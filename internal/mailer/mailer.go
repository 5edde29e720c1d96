// Package mailer sends transactional email over SMTP and runs the
// best-effort notification queue.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("mailer: SMTP not configured")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{from: cfg.From}
	if cfg.Host != "" {
		port := cfg.Port
		if port == 0 {
			port = 587
		}
		m.dialer = gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	}
	if m.from == "" {
		m.from = cfg.Username
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.dialer == nil || m.from == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		gm.AddAlternative("text/html", msg.HTML)
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}
