package sop

import (
	"sync"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// DraftState is the state of a review session's draft.
type DraftState string

const (
	DraftGenerating   DraftState = "GENERATING"
	DraftReview       DraftState = "REVIEW"
	DraftRegenerating DraftState = "REGENERATING"
	DraftApproved     DraftState = "APPROVED"
	DraftCancelled    DraftState = "CANCELLED"
	// DraftFailed means generation failed and the job was reverted to LEAD.
	DraftFailed DraftState = "FAILED"
)

// Session is the admin's in-flight review context for one job: the
// conversion form, the draft under review and the guidance given so far.
// It is held apart from the persisted job and passed explicitly.
type Session struct {
	JobID      id.JobID            `json:"job_id"`
	AdminID    string              `json:"admin_id"`
	Form       *job.ConversionForm `json:"form,omitempty"`
	Draft      string              `json:"draft"`
	State      DraftState          `json:"state"`
	AdminNotes []string            `json:"admin_notes,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Document parses the current draft.
func (s *Session) Document() Document { return Parse(s.Draft) }

func (s *Session) clone() *Session {
	cp := *s
	cp.AdminNotes = append([]string(nil), s.AdminNotes...)
	if s.Form != nil {
		f := *s.Form
		cp.Form = &f
	}
	return &cp
}

// Sessions is a concurrency-safe registry of review sessions keyed by job.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*Session)}
}

// Get returns a copy of the session for a job.
func (r *Sessions) Get(jobID id.JobID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[jobID.String()]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// Put stores a copy of s, replacing any previous session for the job.
func (r *Sessions) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.JobID.String()] = s.clone()
}

// Delete removes a job's session.
func (r *Sessions) Delete(jobID id.JobID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, jobID.String())
}

// Len returns the number of sessions held.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
