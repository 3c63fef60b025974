// Package stream fans job changes out to in-process watchers. It backs the
// change feed of stores that have no native one (the memory store) and is
// safe for concurrent use.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// DefaultBufferSize is the default per-subscriber change buffer.
const DefaultBufferSize = 256

// Broker publishes job changes to topic subscribers.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	subscribers sync.Map // subscriberID → *Subscriber

	totalPublished atomic.Int64

	bufferSize int
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber change buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// NewBroker creates a new change broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:     NewTopicRegistry(),
		logger:     logger,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe creates a subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, f job.Filter, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, f)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// Watch subscribes to the topics that can satisfy f and returns a channel
// that is closed when ctx is done.
func (b *Broker) Watch(ctx context.Context, f job.Filter) <-chan job.Change {
	topic := TopicJobs
	if f.AssigneeID != "" {
		topic = ScholarTopic(f.AssigneeID)
	}
	subID := id.NewEventID().String()
	sub := b.Subscribe(subID, f, topic)
	go func() {
		<-ctx.Done()
		b.RemoveSubscriber(subID)
	}()
	return sub.C()
}

// Publish delivers a change to every matching subscriber. The job is
// cloned so subscribers never share memory with the publisher.
func (b *Broker) Publish(c job.Change) {
	c.Job = c.Job.Clone()
	topics := resolveTopics(c)
	delivered := b.topics.Broadcast(topics, c)
	b.totalPublished.Add(int64(delivered))
}

// Close removes every subscriber.
func (b *Broker) Close() {
	b.subscribers.Range(func(key, _ any) bool {
		b.RemoveSubscriber(key.(string)) //nolint:errcheck // keys are always strings
		return true
	})
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	var dropped int64
	b.subscribers.Range(func(_, v any) bool {
		count++
		dropped += v.(*Subscriber).Dropped() //nolint:errcheck // sync.Map always stores *Subscriber
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    dropped,
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}
