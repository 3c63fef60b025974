package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Broadcaster fans a message out to many recipients with bounded
// concurrency and an optional rate limit. One recipient's failure never
// stops the others.
type Broadcaster struct {
	notifier    Notifier
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// BroadcastOption configures a Broadcaster.
type BroadcastOption func(*Broadcaster)

// WithConcurrency caps in-flight sends.
func WithConcurrency(n int) BroadcastOption {
	return func(b *Broadcaster) { b.concurrency = n }
}

// WithRate caps sends per second. Zero or negative disables limiting.
func WithRate(perSecond float64) BroadcastOption {
	return func(b *Broadcaster) {
		if perSecond <= 0 {
			b.limiter = nil
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// WithLogger sets the logger used for per-recipient outcomes.
func WithLogger(l *slog.Logger) BroadcastOption {
	return func(b *Broadcaster) { b.logger = l }
}

// NewBroadcaster creates a Broadcaster over n.
func NewBroadcaster(n Notifier, opts ...BroadcastOption) *Broadcaster {
	b := &Broadcaster{
		notifier:    n,
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send delivers one message and converts the result to a Delivery.
func (b *Broadcaster) Send(ctx context.Context, address, message string) Delivery {
	d := Delivery{Recipient: address}
	ok, err := b.notifier.Send(ctx, address, message)
	d.Delivered = ok && err == nil
	if err != nil {
		d.Error = err.Error()
	}
	b.logger.Info("notification delivery",
		"recipient", address,
		"delivered", d.Delivered,
		"error", d.Error,
	)
	return d
}

// Broadcast sends message to every recipient and returns one Delivery per
// recipient in input order. It returns early only if ctx is cancelled, in
// which case unsent recipients are reported undelivered.
func (b *Broadcaster) Broadcast(ctx context.Context, recipients []string, message string) []Delivery {
	out := make([]Delivery, len(recipients))
	var g errgroup.Group
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, addr := range recipients {
		g.Go(func() error {
			if b.limiter != nil {
				if err := b.limiter.Wait(ctx); err != nil {
					out[i] = Delivery{Recipient: addr, Error: err.Error()}
					return nil
				}
			}
			out[i] = b.Send(ctx, addr, message)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors
	return out
}
