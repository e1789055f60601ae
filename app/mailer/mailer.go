package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/gomail.v2"

	"github.com/FACorreiaa/onelink-market/config"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through a gomail dialer.
type SMTPMailer struct {
	dialer sender
	from   string
	name   string
	logger *slog.Logger
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg config.EmailConfig, logger *slog.Logger) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		name:   cfg.SenderName,
		logger: logger,
	}
}

func (m *SMTPMailer) newMessage(to, subject, html string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.name)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return msg
}

func (m *SMTPMailer) send(ctx context.Context, kind string, msg *gomail.Message) error {
	_, span := otel.Tracer("Mailer").Start(ctx, "Send", trace.WithAttributes(
		attribute.String("mail.kind", kind),
	))
	defer span.End()

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send email", slog.String("kind", kind), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "SMTP send failed")
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	span.SetStatus(codes.Ok, "Email sent")
	return nil
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px;">
			<p>Your verification code is:</p>
			<h1 style="letter-spacing: 5px;">%s</h1>
			<p>This code expires in %d minutes.</p>
			<p>If you did not request this, you can ignore this email.</p>
		</div>`, code, minutes)
	return m.send(ctx, "verification", m.newMessage(to, "Your verification code", body))
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px;">
			<p>Use this token to choose a new password. It is valid for 30 minutes.</p>
			<pre>%s</pre>
			<p>If you did not request a reset, no action is needed.</p>
		</div>`, token)
	return m.send(ctx, "password_reset", m.newMessage(to, "Reset your password", body))
}

// LogMailer stands in when no SMTP host is configured. It records that a
// message would have been sent but never logs its contents.
type LogMailer struct {
	logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendVerificationCode(ctx context.Context, to, _ string, _ time.Time) error {
	m.logger.WarnContext(ctx, "SMTP not configured, verification email dropped", slog.String("to", to))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, _ string) error {
	m.logger.WarnContext(ctx, "SMTP not configured, reset email dropped", slog.String("to", to))
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.EmailConfig, logger *slog.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{logger: logger}
	}
	return NewSMTPMailer(cfg, logger)
}
