package stream

import (
	"sync"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// Topic names follow a pattern:
//
//	jobs             every job change
//	job:<jobID>      changes to one job
//	scholar:<id>     changes to jobs held by one scholar
const TopicJobs = "jobs"

// JobTopic returns the topic name for a specific job.
func JobTopic(jobID string) string { return "job:" + jobID }

// ScholarTopic returns the topic name for jobs held by a scholar.
func ScholarTopic(scholarID string) string { return "scholar:" + scholarID }

// TopicRegistry manages subscriber sets per topic.
// It is safe for concurrent use.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber // topic → subscriberID → subscriber
}

// NewTopicRegistry creates an empty topic registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{
		topics: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe adds a subscriber to a topic, creating the topic on demand.
func (tr *TopicRegistry) Subscribe(topic string, sub *Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	subs, ok := tr.topics[topic]
	if !ok {
		subs = make(map[string]*Subscriber)
		tr.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// UnsubscribeAll removes a subscriber from all topics and drops empty ones.
func (tr *TopicRegistry) UnsubscribeAll(subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for topic, subs := range tr.topics {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(tr.topics, topic)
		}
	}
}

// Broadcast sends a change to all subscribers on the listed topics.
// Subscribers present on more than one topic receive it once.
// Returns the number of subscribers that accepted the change.
func (tr *TopicRegistry) Broadcast(topics []string, c job.Change) int {
	tr.mu.RLock()
	seen := make(map[string]*Subscriber)
	for _, topic := range topics {
		for id, sub := range tr.topics[topic] {
			seen[id] = sub
		}
	}
	tr.mu.RUnlock()

	delivered := 0
	for _, sub := range seen {
		if sub.send(c) {
			delivered++
		}
	}
	return delivered
}

// TopicCount returns the number of active topics.
func (tr *TopicRegistry) TopicCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics)
}

// resolveTopics returns every topic a change is published to.
func resolveTopics(c job.Change) []string {
	topics := []string{TopicJobs}
	if c.Job == nil {
		return topics
	}
	topics = append(topics, JobTopic(c.Job.ID.String()))
	if c.Job.AssigneeID != "" {
		topics = append(topics, ScholarTopic(c.Job.AssigneeID))
	}
	return topics
}
