package stream

import (
	"sync"
	"sync/atomic"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// Subscriber receives job changes from the topics it is subscribed to.
type Subscriber struct {
	id     string
	ch     chan job.Change
	filter job.Filter

	// mu serialises send against Close so a send never hits a closed channel.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewSubscriber creates a subscriber with the given buffer size and filter.
func NewSubscriber(id string, bufferSize int, f job.Filter) *Subscriber {
	return &Subscriber{
		id:     id,
		ch:     make(chan job.Change, bufferSize),
		filter: f,
	}
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only change channel.
func (s *Subscriber) C() <-chan job.Change { return s.ch }

// Dropped returns how many changes were discarded because the buffer was full.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// send attempts a non-blocking delivery. Returns false when the change is
// filtered out, the subscriber is closed, or the buffer is full.
func (s *Subscriber) send(c job.Change) bool {
	if !s.filter.Match(c.Job) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- c:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Close closes the subscriber channel. Safe to call multiple times.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
