// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/redact"
	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when a host is configured and a LogMailer otherwise.
func New(cfg config.MailConfig, log *slog.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(log)
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer sends through an SMTP relay, upgrading to TLS when the server
// offers it and using PLAIN auth when credentials are set.
type SMTPMailer struct {
	host    string
	from    string
	options []gomail.Option
	deliver func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPMailer creates an SMTPMailer from cfg.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		host: cfg.SMTPHost,
		from: cfg.From,
		options: []gomail.Option{
			gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		},
	}
	if cfg.SMTPPort > 0 {
		m.options = append(m.options, gomail.WithPort(cfg.SMTPPort))
	}
	if cfg.Username != "" {
		m.options = append(m.options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	m.deliver = m.dialAndSend
	return m
}

// Send delivers msg. Cancelling ctx aborts the dial and the SMTP exchange.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", m.host, err)
	}
	return nil
}

// compose builds the MIME message. Addresses are parsed, so line breaks in a
// recipient are rejected; the subject is RFC 2047 encoded.
func (m *SMTPMailer) compose(msg Message) (*gomail.Msg, error) {
	out := gomail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(m.host, m.options...)
	if err != nil {
		return fmt.Errorf("failed to configure smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{logger: log.With(slog.String("component", "mailer"))}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	logger.FromContextOrDefault(ctx, m.logger).Info("email not sent, no SMTP host configured",
		slog.String("to", redact.String(msg.To)),
		slog.String("subject", msg.Subject))
	return nil
}
