package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/nazek/booking-api/internal/model"
	"github.com/nazek/booking-api/pkg/circuitbreaker"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	cb     *circuitbreaker.CircuitBreaker
	logger zerolog.Logger
}

// NewSMTPService delivers mail through an SMTP relay. A run of failures opens
// the breaker so the outbox backs off instead of hammering a dead relay.
func NewSMTPService(cfg SMTPConfig, logger zerolog.Logger) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
			Timeout:     time.Minute,
		}),
		logger: logger.With().Str("component", "smtp").Logger(),
	}
}

func (s *smtpService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	err := s.cb.Execute(func() error {
		return s.dialer.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	s.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

type logService struct {
	logger zerolog.Logger
}

// NewLogService only logs messages. Used when SMTP is not configured.
func NewLogService(logger zerolog.Logger) Service {
	return &logService{logger: logger.With().Str("component", "email").Logger()}
}

func (s *logService) Send(ctx context.Context, msg Message) error {
	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivery disabled, message dropped")
	return nil
}

// RenderNotification turns a notification into the email sent to its recipient.
func RenderNotification(p *model.NotificationPayload) Message {
	greeting := "Hello,"
	if p.RecipientName != "" {
		greeting = fmt.Sprintf("Hello %s,", p.RecipientName)
	}
	return Message{
		To:      p.RecipientEmail,
		Subject: "[Nazek] " + p.Title,
		Body:    fmt.Sprintf("%s\n\n%s\n\nYou can review the details in the Nazek app.\n", greeting, p.Message),
	}
}
