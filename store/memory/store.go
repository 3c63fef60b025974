// Package memory provides an in-memory implementation of store.Store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/stream"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store     = (*Store)(nil)
	_ scholar.Store = (*Store)(nil)
	_ payout.Store  = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
// Every read returns a copy so callers never alias stored state.
type Store struct {
	mu sync.RWMutex

	jobs       map[string]*job.Job
	scholars   map[string]*scholar.Scholar
	milestones map[string]map[int]time.Time // key: "scholarID:period"
	payouts    map[string]*payout.Payout

	broker *stream.Broker
	closed bool
}

// Option configures a memory Store.
type Option func(*Store)

// WithBroker sets the broker used for the job change feed.
func WithBroker(b *stream.Broker) Option {
	return func(s *Store) { s.broker = b }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:       make(map[string]*job.Job),
		scholars:   make(map[string]*scholar.Scholar),
		milestones: make(map[string]map[int]time.Time),
		payouts:    make(map[string]*payout.Payout),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = stream.NewBroker(nil)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate, Ping, Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping fails once the store is closed.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fieldwork.ErrStoreClosed
	}
	return nil
}

// Close closes every change feed.
func (m *Store) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.broker.Close()
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job with Version 1.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		m.mu.Unlock()
		return fieldwork.ErrJobExists
	}
	j.Version = 1
	m.jobs[key] = j.Clone()
	m.mu.Unlock()

	m.publish(job.ChangeCreated, j)
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, fieldwork.ErrJobNotFound
	}
	return j.Clone(), nil
}

// UpdateJob persists j if the stored Version matches.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	key := j.ID.String()
	cur, ok := m.jobs[key]
	if !ok {
		m.mu.Unlock()
		return fieldwork.ErrJobNotFound
	}
	if cur.Version != j.Version {
		m.mu.Unlock()
		return fieldwork.ErrVersionConflict
	}
	j.Version++
	m.jobs[key] = j.Clone()
	m.mu.Unlock()

	m.publish(job.ChangeUpdated, j)
	return nil
}

// ClaimJob persists j only while the stored job is still claimable.
func (m *Store) ClaimJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	key := j.ID.String()
	cur, ok := m.jobs[key]
	if !ok {
		m.mu.Unlock()
		return fieldwork.ErrJobNotFound
	}
	if cur.Status != job.StateApprovedForPosting || cur.AssigneeID != "" {
		m.mu.Unlock()
		return fieldwork.ErrAlreadyClaimed
	}
	if cur.Version != j.Version {
		m.mu.Unlock()
		return fieldwork.ErrVersionConflict
	}
	j.Version = cur.Version + 1
	m.jobs[key] = j.Clone()
	m.mu.Unlock()

	m.publish(job.ChangeUpdated, j)
	return nil
}

// ListJobs returns jobs matching opts, oldest first.
func (m *Store) ListJobs(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*job.Job
	for _, j := range m.jobs {
		if opts.Match(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].ID.String() < out[k].ID.String()
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

// WatchJobs streams job changes until ctx is cancelled.
func (m *Store) WatchJobs(ctx context.Context, f job.Filter) (<-chan job.Change, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, fieldwork.ErrStoreClosed
	}
	return m.broker.Watch(ctx, f), nil
}

func (m *Store) publish(op job.ChangeOp, j *job.Job) {
	m.broker.Publish(job.Change{Op: op, Job: j, At: time.Now().UTC()})
}

// ──────────────────────────────────────────────────
// Scholar Store
// ──────────────────────────────────────────────────

// CreateScholar persists a new scholar.
func (m *Store) CreateScholar(_ context.Context, s *scholar.Scholar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, exists := m.scholars[key]; exists {
		return fieldwork.ErrScholarExists
	}
	cp := *s
	m.scholars[key] = &cp
	return nil
}

// GetScholar retrieves a scholar by ID.
func (m *Store) GetScholar(_ context.Context, scholarID id.ID) (*scholar.Scholar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scholars[scholarID.String()]
	if !ok {
		return nil, fieldwork.ErrScholarNotFound
	}
	cp := *s
	return &cp, nil
}

// UpdateScholar persists changes to an existing scholar.
func (m *Store) UpdateScholar(_ context.Context, s *scholar.Scholar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, ok := m.scholars[key]; !ok {
		return fieldwork.ErrScholarNotFound
	}
	cp := *s
	m.scholars[key] = &cp
	return nil
}

// ListScholars returns every scholar, oldest first.
func (m *Store) ListScholars(_ context.Context) ([]*scholar.Scholar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*scholar.Scholar, 0, len(m.scholars))
	for _, s := range m.scholars {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].ID.String() < out[k].ID.String()
	})
	return out, nil
}

// ListMilestones returns recorded thresholds for a scholar and period.
func (m *Store) ListMilestones(_ context.Context, scholarID id.ID, period string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.milestones[milestoneKey(scholarID, period)]
	out := make([]int, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	slices.Sort(out)
	return out, nil
}

// RecordMilestone adds the threshold if absent.
func (m *Store) RecordMilestone(_ context.Context, ms scholar.Milestone) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := milestoneKey(ms.ScholarID, ms.Period)
	set, ok := m.milestones[key]
	if !ok {
		set = make(map[int]time.Time)
		m.milestones[key] = set
	}
	if _, exists := set[ms.Threshold]; exists {
		return false, nil
	}
	set[ms.Threshold] = ms.AchievedAt
	return true, nil
}

func milestoneKey(scholarID id.ID, period string) string {
	return scholarID.String() + ":" + period
}

// ──────────────────────────────────────────────────
// Payout Store
// ──────────────────────────────────────────────────

// CreatePayout persists a new payout, one per job and type.
func (m *Store) CreatePayout(_ context.Context, p *payout.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.payouts {
		if existing.JobID == p.JobID && existing.Type == p.Type {
			return fieldwork.ErrPayoutExists
		}
	}
	cp := *p
	m.payouts[p.ID.String()] = &cp
	return nil
}

// GetPayout retrieves a payout by ID.
func (m *Store) GetPayout(_ context.Context, payoutID id.ID) (*payout.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payouts[payoutID.String()]
	if !ok {
		return nil, fieldwork.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPayouts returns a job's payouts, first half first.
func (m *Store) ListPayouts(_ context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*payout.Payout
	for _, p := range m.payouts {
		if p.JobID == jobID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Type < out[k].Type })
	return out, nil
}

// UpdatePayout persists changes to an existing payout.
func (m *Store) UpdatePayout(_ context.Context, p *payout.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.ID.String()
	if _, ok := m.payouts[key]; !ok {
		return fieldwork.ErrPayoutNotFound
	}
	cp := *p
	m.payouts[key] = &cp
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
