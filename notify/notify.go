// Package notify defines the notification capability used for milestone
// broadcasts and admin/worker alerts, plus a bounded fan-out helper.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Notifier delivers a message to one address. It reports whether the
// message was accepted for delivery.
type Notifier interface {
	Send(ctx context.Context, address, message string) (bool, error)
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, address, message string) (bool, error)

// Send calls f.
func (f Func) Send(ctx context.Context, address, message string) (bool, error) {
	return f(ctx, address, message)
}

// ErrNoChannel is returned by Router when no channel serves an address.
var ErrNoChannel = errors.New("notify: no channel for address")

// Router sends addresses containing "@" through Email and everything else
// through SMS.
type Router struct {
	Email Notifier
	SMS   Notifier
}

// Send dispatches to the channel that serves address.
func (r Router) Send(ctx context.Context, address, message string) (bool, error) {
	n := r.SMS
	if strings.Contains(address, "@") {
		n = r.Email
	}
	if n == nil {
		return false, ErrNoChannel
	}
	return n.Send(ctx, address, message)
}

// Delivery is the outcome of one send.
type Delivery struct {
	Recipient string `json:"recipient"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// Log is a Notifier that only logs. Useful for development.
type Log struct {
	Logger *slog.Logger
}

// Send logs the message and reports it delivered.
func (l Log) Send(_ context.Context, address, message string) (bool, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "recipient", address, "message", message)
	return true, nil
}

// Message is a send captured by Memory.
type Message struct {
	Address string
	Body    string
}

// Memory records every send. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	sent []Message
	// Fail, when set, decides per address whether a send is rejected.
	Fail func(address string) bool
}

// Send records the message.
func (m *Memory) Send(_ context.Context, address, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil && m.Fail(address) {
		return false, nil
	}
	m.sent = append(m.sent, Message{Address: address, Body: message})
	return true, nil
}

// Sent returns a copy of the recorded messages.
func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// SentTo returns the messages recorded for one address.
func (m *Memory) SentTo(address string) []Message {
	var out []Message
	for _, msg := range m.Sent() {
		if msg.Address == address {
			out = append(out, msg)
		}
	}
	return out
}
