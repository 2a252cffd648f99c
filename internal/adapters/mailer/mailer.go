package mailer

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/AchilleasB/courierman/parcel-service/internal/config"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// Email is a plain-text message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Settings holds SMTP configuration for sending emails.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends emails over SMTP behind a circuit breaker.
type Mailer struct {
	from   string
	dialer Dialer
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.Mailer = (*Mailer)(nil)

var errNoRecipients = errors.New("no recipients specified")

// NewMailer creates an SMTP mailer from settings.
func NewMailer(s Settings, logger *zap.Logger) (*Mailer, error) {
	if s.Host == "" {
		return nil, fmt.Errorf("missing SMTP host")
	}
	if s.From == "" {
		return nil, fmt.Errorf("missing SMTP from address")
	}
	return NewMailerWithDialer(s.From, gomail.NewDialer(s.Host, s.Port, s.Username, s.Password), logger), nil
}

func NewMailerWithDialer(from string, dialer Dialer, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		from:   from,
		dialer: dialer,
		cb:     config.NewCircuitBreaker(config.BreakerSMTP, logger),
		logger: logger,
	}
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return errNoRecipients
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.dialer.DialAndSend(msg)
	})
	if err != nil {
		return fmt.Errorf("send email %q: %w", email.Subject, err)
	}
	return nil
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)
}

// SendText sends a plain-text email to one recipient.
func (m *Mailer) SendText(to, subject, body string) error {
	return m.Send(Email{To: []string{to}, Subject: subject, Body: body})
}
