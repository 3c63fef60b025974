package sop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// Emitter receives pipeline lifecycle notifications.
type Emitter interface {
	SopGenerated(ctx context.Context, j *job.Job, regenerated bool)
	SopReconciled(ctx context.Context, jobID id.JobID, outcome Outcome, err error)
}

type nopEmitter struct{}

func (nopEmitter) SopGenerated(context.Context, *job.Job, bool) {}
func (nopEmitter) SopReconciled(context.Context, id.JobID, Outcome, error) {}

// PhotoResolver turns a stored media path into a URL the generator can
// fetch.
type PhotoResolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// Pipeline drives a job's document through generation, review,
// regeneration and approval or cancellation.
type Pipeline struct {
	jobs      job.Store
	applier   job.Applier
	generator generate.Generator
	guard     *Guard
	sessions  *Sessions
	emitter   Emitter
	photos    PhotoResolver
	timeout   time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSessions sets the session registry. Defaults to a private registry.
func WithSessions(s *Sessions) PipelineOption {
	return func(p *Pipeline) { p.sessions = s }
}

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) PipelineOption {
	return func(p *Pipeline) { p.emitter = e }
}

// WithPhotoResolver passes intake photos to the generator as URLs.
func WithPhotoResolver(r PhotoResolver) PipelineOption {
	return func(p *Pipeline) { p.photos = r }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

// WithClock sets the pipeline clock.
func WithClock(c func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline. Lifecycle writes go through applier so
// that effects and hooks run; jobs is used for reads.
func NewPipeline(jobs job.Store, applier job.Applier, gen generate.Generator, guard *Guard, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		jobs:      jobs,
		applier:   applier,
		generator: gen,
		guard:     guard,
		emitter:   nopEmitter{},
		timeout:   5 * time.Minute,
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sessions == nil {
		p.sessions = NewSessions()
	}
	if p.guard == nil {
		p.guard = NewGuard(jobs, WithGuardLogger(p.logger), WithGuardClock(p.clock))
	}
	return p
}

// Sessions returns the pipeline's session registry.
func (p *Pipeline) Sessions() *Sessions { return p.sessions }

// Generate converts a lead: the form is frozen onto the job, the job moves
// to SOP_NEEDS_REVIEW, and the generator is called. On success the
// returned session holds the draft for review.
//
// When the call fails the guard re-reads the job before anything is
// reported. A draft that reached the job anyway is returned as a normal
// success; otherwise the job is back in LEAD and ErrGenerationFailed is
// returned with the session in the FAILED state.
func (p *Pipeline) Generate(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, form job.ConversionForm) (*Session, error) {
	if !actor.Privileged() {
		return nil, fieldwork.NewAuthError(string(job.ActionGenerate), actor.Role)
	}
	now := p.clock()
	j, err := p.applier.Apply(ctx, jobID, job.Command{
		Action:  job.ActionGenerate,
		Actor:   actor,
		Payload: job.Payload{Form: &form},
		At:      now,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		JobID:     jobID,
		AdminID:   actor.ID,
		Form:      &form,
		State:     DraftGenerating,
		StartedAt: now,
		UpdatedAt: now,
	}
	if form.AdminNotes != "" {
		s.AdminNotes = []string{form.AdminNotes}
	}
	p.sessions.Put(s)

	text, err := p.call(ctx, j, form.AdminNotes)
	if err != nil {
		p.logger.Warn("sop generation failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		return p.reconcile(ctx, s, err)
	}

	s.Draft = text
	s.State = DraftReview
	s.UpdatedAt = p.clock()
	p.sessions.Put(s)
	p.emitter.SopGenerated(ctx, j, false)
	return s, nil
}

// Regenerate asks for a new draft with extra guidance. Only the draft is
// replaced; the job status is untouched. On failure the previous draft is
// kept and the session stays in review.
func (p *Pipeline) Regenerate(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, notes string) (*Session, error) {
	if !actor.Privileged() {
		return nil, fieldwork.NewAuthError("regenerate", actor.Role)
	}
	s, err := p.Session(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if s.State != DraftReview {
		return nil, fieldwork.NewGuardError("regenerate", "draft", string(s.State), "no draft is under review")
	}
	j, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StateSopNeedsReview {
		return nil, fieldwork.NewTransitionError("regenerate", string(j.Status))
	}

	if notes = strings.TrimSpace(notes); notes != "" {
		s.AdminNotes = append(s.AdminNotes, notes)
	}
	s.State = DraftRegenerating
	s.UpdatedAt = p.clock()
	p.sessions.Put(s)

	text, err := p.call(ctx, j, strings.Join(s.AdminNotes, "\n"))
	s.State = DraftReview
	s.UpdatedAt = p.clock()
	if err != nil {
		s.LastError = err.Error()
		p.sessions.Put(s)
		p.logger.Warn("sop regeneration failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		return s, generationError(err)
	}
	s.Draft = text
	s.LastError = ""
	p.sessions.Put(s)
	p.emitter.SopGenerated(ctx, j, true)
	return s, nil
}

// Approve seals finalText onto the job and posts it. The checklist is the
// document's phase sequence, or the default checklist when there is none.
// An empty finalText approves the current draft.
func (p *Pipeline) Approve(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, finalText string) (*job.Job, error) {
	if strings.TrimSpace(finalText) == "" {
		s, err := p.Session(ctx, jobID)
		if err != nil {
			return nil, err
		}
		finalText = s.Draft
	}
	j, err := p.applier.Apply(ctx, jobID, job.Command{
		Action: job.ActionApproveSop,
		Actor:  actor,
		Payload: job.Payload{
			FinalText: finalText,
			Checklist: Parse(finalText).Checklist(),
		},
		At: p.clock(),
	})
	if err != nil {
		return nil, err
	}
	p.sessions.Delete(jobID)
	return j, nil
}

// Cancel abandons the review. The draft is dropped and the job is rolled
// back to LEAD on a best-effort basis: rollback failures are logged, not
// returned.
func (p *Pipeline) Cancel(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) error {
	if !actor.Privileged() {
		return fieldwork.NewAuthError("cancel_review", actor.Role)
	}
	p.sessions.Delete(jobID)

	_, err := p.applier.Apply(context.WithoutCancel(ctx), jobID, job.Command{
		Action:  job.ActionRollback,
		Actor:   actor,
		Payload: job.Payload{Notes: "review cancelled"},
		At:      p.clock(),
	})
	if err != nil {
		p.logger.Warn("sop cancel cleanup failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Recover settles a generation whose result the admin never saw, for
// example after a dropped connection. It is safe to call repeatedly.
func (p *Pipeline) Recover(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*Session, error) {
	if !actor.Privileged() {
		return nil, fieldwork.NewAuthError("recover", actor.Role)
	}
	s, ok := p.sessions.Get(jobID)
	if !ok {
		now := p.clock()
		s = &Session{JobID: jobID, AdminID: actor.ID, State: DraftGenerating, StartedAt: now, UpdatedAt: now}
	}
	if s.State == DraftReview {
		return s, nil
	}
	return p.reconcile(ctx, s, fmt.Errorf("%w: result not observed", fieldwork.ErrGenerationFailed))
}

// Session returns the review session for a job. A job awaiting review with
// a persisted draft but no live session (for example after a restart) gets
// a session rebuilt from the job.
func (p *Pipeline) Session(ctx context.Context, jobID id.JobID) (*Session, error) {
	if s, ok := p.sessions.Get(jobID); ok {
		return s, nil
	}
	j, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StateSopNeedsReview || strings.TrimSpace(j.GeneratedSop) == "" {
		return nil, fieldwork.NewGuardError("review", "draft", string(j.Status), "no draft is under review")
	}
	s := &Session{
		JobID:     jobID,
		Draft:     j.GeneratedSop,
		State:     DraftReview,
		StartedAt: j.UpdatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	p.sessions.Put(s)
	return s, nil
}

// call invokes the generator under the configured timeout.
func (p *Pipeline) call(ctx context.Context, j *job.Job, notes string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.generator.Generate(cctx, generate.Request{
		JobID:      j.ID,
		AdminNotes: notes,
		PhotoURLs:  p.photoURLs(cctx, j.IntakePhotoPaths),
	})
	if err != nil {
		return "", err
	}
	if res == nil || !res.OK || strings.TrimSpace(res.GeneratedText) == "" {
		return "", fmt.Errorf("%w: generator returned no document", fieldwork.ErrGenerationFailed)
	}
	return res.GeneratedText, nil
}

func (p *Pipeline) photoURLs(ctx context.Context, paths []string) []string {
	if p.photos == nil || len(paths) == 0 {
		return nil
	}
	urls := make([]string, 0, len(paths))
	for _, path := range paths {
		u, err := p.photos.URL(ctx, path)
		if err != nil {
			p.logger.Warn("intake photo unavailable",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// reconcile runs the guard detached from the caller's cancellation, since
// a dropped client is the very case it exists for.
func (p *Pipeline) reconcile(ctx context.Context, s *Session, cause error) (*Session, error) {
	rctx := context.WithoutCancel(ctx)
	outcome, cur, err := p.guard.Reconcile(rctx, s.JobID)
	p.emitter.SopReconciled(rctx, s.JobID, outcome, err)
	s.UpdatedAt = p.clock()

	switch outcome {
	case OutcomeRecovered:
		s.Draft = cur.GeneratedSop
		s.State = DraftReview
		s.LastError = ""
		p.sessions.Put(s)
		p.logger.Info("sop generation recovered", slog.String("job_id", s.JobID.String()))
		p.emitter.SopGenerated(rctx, cur, false)
		return s, nil

	case OutcomeUnknown:
		// State unknown: keep the session generating so Recover can retry.
		s.LastError = cause.Error()
		p.sessions.Put(s)
		return s, fmt.Errorf("%w: reconcile: %w", generationError(cause), err)

	default:
		s.State = DraftFailed
		s.LastError = cause.Error()
		p.sessions.Put(s)
		return s, generationError(cause)
	}
}

func generationError(err error) error {
	if errors.Is(err, fieldwork.ErrGenerationFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", fieldwork.ErrGenerationFailed, err)
}
