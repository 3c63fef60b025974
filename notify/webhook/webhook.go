// Package webhook delivers notifications to an SMS gateway over HTTP.
//
// Each send is a JSON POST of {"to": address, "message": text}. A circuit
// breaker stops hammering a failing gateway; while open, sends fail fast.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
)

var _ notify.Notifier = (*Notifier)(nil)

type payload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Notifier posts notifications to a gateway URL.
type Notifier struct {
	url     string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(n *Notifier) { n.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithBreakerSettings overrides the circuit breaker settings.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(n *Notifier) { n.breaker = gobreaker.NewCircuitBreaker(s) }
}

// New creates a gateway notifier posting to url.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: slog.Default(),
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sms-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State reports the breaker state.
func (n *Notifier) State() gobreaker.State { return n.breaker.State() }

// Send posts one message. A 2xx response means delivered.
func (n *Notifier) Send(ctx context.Context, address, message string) (bool, error) {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.post(ctx, address, message)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", fieldwork.ErrNotificationFailed, err)
	}
	return true, nil
}

func (n *Notifier) post(ctx context.Context, address, message string) error {
	body, err := json.Marshal(payload{To: address, Message: message})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: gateway status %d", resp.StatusCode)
	}
	n.logger.Debug("sms sent", "recipient", address)
	return nil
}
