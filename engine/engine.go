package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/backoff"
	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/media"
	mw "github.com/garagescholars/garage-tech-stack-sub001/middleware"
	"github.com/garagescholars/garage-tech-stack-sub001/milestone"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/observability"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/reactor"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

const instrumentationName = "github.com/garagescholars/garage-tech-stack-sub001"

// Engine wires a Fieldwork coordinator to every lifecycle subsystem.
// Use Build() to create one.
type Engine struct {
	fw         *fieldwork.Fieldwork
	store      store.Store
	extensions *ext.Registry
	mws        []mw.Middleware
	chain      mw.Middleware
	logger     *slog.Logger

	generator   generate.Generator
	notifier    notify.Notifier
	media       media.Storage
	complaints  payout.ComplaintChecker
	sessions    *sop.Sessions
	broadcaster *notify.Broadcaster

	pipeline   *sop.Pipeline
	gate       *task.Gate
	milestones *milestone.Notifier
	splitter   *payout.Splitter
	reactor    *reactor.Reactor

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain. It runs after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithGenerator sets the work-instruction document generator.
func WithGenerator(g generate.Generator) Option {
	return func(eng *Engine) { eng.generator = g }
}

// WithNotifier sets the SMS/email channel used for every notification.
// If not set, messages are only logged.
func WithNotifier(n notify.Notifier) Option {
	return func(eng *Engine) { eng.notifier = n }
}

// WithMediaStorage sets where check-in and check-out evidence is stored.
// If not set, an in-process store is used.
func WithMediaStorage(s media.Storage) Option {
	return func(eng *Engine) { eng.media = s }
}

// WithComplaintChecker sets the complaint lookup consulted before the
// second payout half is released.
func WithComplaintChecker(c payout.ComplaintChecker) Option {
	return func(eng *Engine) { eng.complaints = c }
}

// WithSessions shares a review session registry with the engine.
func WithSessions(s *sop.Sessions) Option {
	return func(eng *Engine) { eng.sessions = s }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// Both the metrics middleware and the observability extension use it.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Fieldwork coordinator.
// The coordinator's store must implement store.Store.
func Build(fw *fieldwork.Fieldwork, opts ...Option) (*Engine, error) {
	logger := fw.Logger()
	if fw.Store() == nil {
		return nil, fieldwork.ErrNoStore
	}
	st, ok := fw.Store().(store.Store)
	if !ok {
		return nil, fmt.Errorf("fieldwork: store does not implement store.Store")
	}

	eng := &Engine{
		fw:         fw,
		store:      st,
		extensions: ext.NewRegistry(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.generator == nil {
		eng.generator = generate.Func(func(context.Context, generate.Request) (*generate.Result, error) {
			return nil, fmt.Errorf("%w: no generator configured", fieldwork.ErrGenerationFailed)
		})
	}
	if eng.notifier == nil {
		eng.notifier = notify.Log{Logger: logger}
	}
	if eng.media == nil {
		eng.media = media.NewMemory()
	}
	if eng.complaints == nil {
		eng.complaints = payout.NoComplaints{}
	}
	if eng.sessions == nil {
		eng.sessions = sop.NewSessions()
	}

	cfg := fw.Config()
	clock := fw.Clock()

	eng.broadcaster = notify.NewBroadcaster(eng.notifier,
		notify.WithConcurrency(cfg.BroadcastConcurrency),
		notify.WithRate(cfg.BroadcastRate),
		notify.WithLogger(logger),
	)

	guard := sop.NewGuard(st,
		sop.WithReadPolicy(backoff.Policy{
			Attempts: cfg.ReconcileAttempts,
			Strategy: backoff.NewExponentialWithJitter(cfg.ReconcileInitialDelay, cfg.ReconcileMaxDelay),
		}),
		sop.WithGuardLogger(logger),
		sop.WithGuardClock(clock),
		sop.WithGuardMutateAttempts(cfg.MutateAttempts),
	)
	eng.pipeline = sop.NewPipeline(st, eng, eng.generator, guard,
		sop.WithSessions(eng.sessions),
		sop.WithEmitter(sopEmitter{r: eng.extensions}),
		sop.WithPhotoResolver(eng.media),
		sop.WithTimeout(cfg.GenerationTimeout),
		sop.WithClock(clock),
		sop.WithLogger(logger),
	)

	eng.gate = task.NewGate(st,
		task.WithEffects(eng),
		task.WithEmitter(taskEmitter{r: eng.extensions}),
		task.WithAttempts(cfg.MutateAttempts),
		task.WithClock(clock),
		task.WithLogger(logger),
	)

	msOpts := []milestone.Option{
		milestone.WithEmitter(milestoneEmitter{r: eng.extensions}),
		milestone.WithClock(clock),
		milestone.WithLogger(logger),
	}
	if len(cfg.MilestoneThresholds) > 0 {
		msOpts = append(msOpts, milestone.WithThresholds(cfg.MilestoneThresholds...))
	}
	eng.milestones = milestone.New(st, st, eng.broadcaster, msOpts...)

	eng.splitter = payout.NewSplitter(st, st,
		payout.WithComplaintChecker(eng.complaints),
		payout.WithDelay(cfg.SecondHalfDelay),
		payout.WithLogger(logger),
	)

	eng.reactor = reactor.New(st, eng.milestones, reactor.WithLogger(logger))

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default stack: recover → tracing → metrics → logging → scope → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Scope(),
		mw.Timeout(logger),
	}
	all := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	all = append(all, defaultMws...)
	all = append(all, eng.mws...)
	eng.chain = mw.Chain(all...)

	// Wire back into the coordinator.
	fw.SetReactor(eng.reactor)
	fw.SetExtensions(eng.extensions)

	return eng, nil
}

// Fieldwork returns the underlying coordinator.
func (eng *Engine) Fieldwork() *fieldwork.Fieldwork { return eng.fw }

// Store returns the composite store.
func (eng *Engine) Store() store.Store { return eng.store }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Pipeline returns the document review pipeline.
func (eng *Engine) Pipeline() *sop.Pipeline { return eng.pipeline }

// Gate returns the checklist task gate.
func (eng *Engine) Gate() *task.Gate { return eng.gate }

// Milestones returns the milestone notifier.
func (eng *Engine) Milestones() *milestone.Notifier { return eng.milestones }

// Media returns the evidence storage.
func (eng *Engine) Media() media.Storage { return eng.media }

// Start begins reacting to job changes.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.fw.Start(ctx)
}

// Stop stops the reactor, notifies extensions and closes the store.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.fw.Stop(ctx)
}

// run sends fn through the middleware chain. SOP generation passes a zero
// timeout because the pipeline bounds the generator call itself.
func (eng *Engine) run(ctx context.Context, jobID id.JobID, action string, actor fieldwork.Actor, fn mw.Handler) error {
	c := mw.Call{JobID: jobID, Action: action, Actor: actor, Timeout: eng.fw.Config().ActionTimeout}
	if action == string(job.ActionGenerate) || action == "regenerate" || action == "recover" {
		c.Timeout = 0
	}
	return eng.chain(ctx, c, fn)
}

// ──────────────────────────────────────────────────
// Applier and effect execution
// ──────────────────────────────────────────────────

var (
	_ job.Applier      = (*Engine)(nil)
	_ job.EffectRunner = (*Engine)(nil)
)

// Apply persists cmd with optimistic retries, emits the transition and runs
// its effects. It does not pass through the middleware chain.
func (eng *Engine) Apply(ctx context.Context, jobID id.JobID, cmd job.Command) (*job.Job, error) {
	if cmd.At.IsZero() {
		cmd.At = eng.fw.Now()
	}
	if cmd.Action == job.ActionApproveAndPay {
		return eng.approveAndPay(ctx, jobID, cmd)
	}
	j, effects, err := job.Apply(ctx, eng.store, jobID, eng.fw.Config().MutateAttempts, cmd)
	if err != nil {
		return nil, err
	}
	eng.emitTransition(ctx, j, cmd)
	eng.RunEffects(ctx, j, effects)
	return j, nil
}

// approveAndPay records the first payout half before the job is written as
// COMPLETED, in the same write that stamps the second half's due date. A
// payout failure leaves the job in REVIEW_PENDING so the approval can be
// retried; the retry reuses any first half already on file.
func (eng *Engine) approveAndPay(ctx context.Context, jobID id.JobID, cmd job.Command) (*job.Job, error) {
	var (
		first   *payout.Payout
		effects []job.Effect
	)
	j, err := job.Mutate(ctx, eng.store, jobID, eng.fw.Config().MutateAttempts, func(cur *job.Job) (bool, error) {
		next, eff, err := job.Transition(cur, cmd)
		if err != nil {
			return false, err
		}
		if first == nil {
			split := job.SplitPayout(next.Payout)
			for _, e := range eff {
				if e.Kind == job.EffectCreatePayout && e.Split != nil {
					split = *e.Split
				}
			}
			p, err := eng.splitter.CreateFirstHalf(ctx, next, split, cmd.At)
			if err != nil {
				return false, err
			}
			first = p
		}
		due := first.CreatedAt.Add(eng.splitter.Delay())
		next.SecondHalfDueAt = &due
		next.Version = cur.Version
		*cur = *next
		effects = eff
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	eng.extensions.EmitPayoutCreated(ctx, first)
	eng.emitTransition(ctx, j, cmd)
	eng.RunEffects(ctx, j, effects)
	return j, nil
}

func (eng *Engine) emitTransition(ctx context.Context, j *job.Job, cmd job.Command) {
	if n := len(j.History); n > 0 {
		last := j.History[n-1]
		if last.Action == cmd.Action && last.At.Equal(cmd.At) {
			eng.extensions.EmitJobTransitioned(ctx, j, last)
		}
	}
}

// RunEffects delivers the notification effects for j. Failures are logged;
// the state change they follow has already been persisted. Payout effects
// are settled by approveAndPay before its write and are skipped here.
func (eng *Engine) RunEffects(ctx context.Context, j *job.Job, effects []job.Effect) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range effects {
		if e.Kind == job.EffectNotify {
			eng.deliver(ctx, j, e)
		}
	}
}

func (eng *Engine) deliver(ctx context.Context, j *job.Job, e job.Effect) {
	subject := string(e.Audience)
	switch e.Audience {
	case job.AudienceAdmins:
		recipients := eng.fw.Config().AdminRecipients
		if len(recipients) == 0 {
			eng.logger.Warn("admin alert dropped: no recipients configured",
				slog.String("job_id", j.ID.String()),
			)
			return
		}
		for _, d := range eng.broadcaster.Broadcast(ctx, recipients, e.Message) {
			eng.extensions.EmitNotificationDelivered(ctx, subject, d)
		}

	case job.AudienceScholar:
		addr, err := eng.scholarAddress(ctx, e.ScholarID)
		if err != nil {
			eng.logger.Warn("scholar notification dropped",
				slog.String("job_id", j.ID.String()),
				slog.String("scholar_id", e.ScholarID),
				slog.String("error", err.Error()),
			)
			return
		}
		eng.extensions.EmitNotificationDelivered(ctx, subject, eng.broadcaster.Send(ctx, addr, e.Message))
	}
}

// scholarAddress resolves a worker's phone number, falling back to email.
func (eng *Engine) scholarAddress(ctx context.Context, scholarID string) (string, error) {
	sid, err := id.ParseScholarID(scholarID)
	if err != nil {
		return "", err
	}
	s, err := eng.store.GetScholar(ctx, sid)
	if err != nil {
		return "", err
	}
	switch {
	case s.PhoneNumber != "":
		return s.PhoneNumber, nil
	case s.Email != "":
		return s.Email, nil
	}
	return "", fmt.Errorf("scholar %s has no contact address", scholarID)
}

func (eng *Engine) now() time.Time { return eng.fw.Now() }
