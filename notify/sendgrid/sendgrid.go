// Package sendgrid delivers notifications as email through SendGrid.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
)

var _ notify.Notifier = (*Notifier)(nil)

// Config holds the SendGrid credentials and sender identity.
type Config struct {
	APIKey   string
	From     string
	FromName string
	Subject  string
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	if c.APIKey == "" || c.From == "" {
		return errors.New("sendgrid: api key and from address are required")
	}
	return nil
}

// sender is the subset of *sendgrid.Client used here.
type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Notifier sends each notification as a single plain-text email.
type Notifier struct {
	cfg    Config
	client sender
	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// withSender replaces the SendGrid client. Used in tests.
func withSender(s sender) Option {
	return func(n *Notifier) { n.client = s }
}

// New creates a SendGrid notifier.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Subject == "" {
		cfg.Subject = "Garage Scholars update"
	}
	n := &Notifier{
		cfg:    cfg,
		client: sg.NewSendClient(cfg.APIKey),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send emails message to address. A non-202 response is reported as
// undelivered with an error.
func (n *Notifier) Send(ctx context.Context, address, message string) (bool, error) {
	from := mail.NewEmail(n.cfg.FromName, n.cfg.From)
	to := mail.NewEmail("", address)
	email := mail.NewSingleEmail(from, n.cfg.Subject, to, message, "")

	resp, err := n.client.SendWithContext(ctx, email)
	if err != nil {
		return false, fmt.Errorf("%w: sendgrid: %w", fieldwork.ErrNotificationFailed, err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return false, fmt.Errorf("%w: sendgrid: status %d", fieldwork.ErrNotificationFailed, resp.StatusCode)
	}
	n.logger.Debug("email sent", "recipient", address)
	return true, nil
}
