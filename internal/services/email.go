package services

import (
	"context"
	"crypto/tls"
	"hoursrelay/internal/config"

	"gopkg.in/gomail.v2"
)

// Sender - исходящая почта. Подменяется в тестах.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string // необязательная plain-text версия
	Template string // для логов и метрик
}

type EmailService struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewEmailService(cfg *config.Config) *EmailService {
	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	// 587 - STARTTLS, 465 - неявный TLS
	d.SSL = cfg.SMTPPort == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPServer, MinVersion: tls.VersionTLS12}
	return &EmailService{
		dialer:   d,
		from:     cfg.SMTPUsername,
		fromName: cfg.MailFromName,
	}
}

func (s *EmailService) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}
	return m
}

// Send отправляет письмо. gomail не принимает контекст, поэтому отмена
// проверяется только до соединения.
func (s *EmailService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(s.buildMessage(msg))
}
