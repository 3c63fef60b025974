package fieldwork

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Fieldwork coordinator.
type Option func(*Fieldwork) error

// Storer is the minimal store interface held by the coordinator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used by the engine, which sits above the subsystem
// packages and so does not create an import cycle.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time.
type Clock func() time.Time

// reactorRunner is an internal interface for the change reactor lifecycle.
type reactorRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Fieldwork is the central coordinator for the job lifecycle engine.
//
// Create one with New() and functional options, then hand it to
// engine.Build which wires the subsystems and registers the change
// reactor and extensions back onto the coordinator.
type Fieldwork struct {
	config     Config
	logger     *slog.Logger
	clock      Clock
	store      Storer
	extensions extensionEmitter
	reactor    reactorRunner

	started bool
}

// New creates a new Fieldwork coordinator with the given options.
func New(opts ...Option) (*Fieldwork, error) {
	f := &Fieldwork{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Logger returns the coordinator's logger.
func (f *Fieldwork) Logger() *slog.Logger { return f.logger }

// Store returns the coordinator's store.
func (f *Fieldwork) Store() Storer { return f.store }

// Config returns a copy of the coordinator's configuration.
func (f *Fieldwork) Config() Config {
	c := f.config
	c.AdminRecipients = append([]string(nil), f.config.AdminRecipients...)
	c.MilestoneThresholds = append([]int(nil), f.config.MilestoneThresholds...)
	return c
}

// Now returns the current time according to the configured clock.
func (f *Fieldwork) Now() time.Time { return f.clock() }

// Clock returns the configured clock.
func (f *Fieldwork) Clock() Clock { return f.clock }

// SetReactor sets the change reactor (called by the engine package).
func (f *Fieldwork) SetReactor(r reactorRunner) { f.reactor = r }

// SetExtensions sets the extension emitter (called by the engine package).
func (f *Fieldwork) SetExtensions(e extensionEmitter) { f.extensions = e }

// Start begins reacting to job changes.
func (f *Fieldwork) Start(ctx context.Context) error {
	if f.store == nil {
		return ErrNoStore
	}
	if f.reactor != nil {
		if err := f.reactor.Start(ctx); err != nil {
			return err
		}
	}
	f.started = true
	return nil
}

// Stop shuts the coordinator down and closes the store.
func (f *Fieldwork) Stop(ctx context.Context) error {
	if f.reactor != nil && f.started {
		if err := f.reactor.Stop(ctx); err != nil {
			f.logger.Error("reactor stop error", "error", err)
		}
	}
	if f.extensions != nil {
		f.extensions.EmitShutdown(ctx)
	}
	if f.store != nil {
		return f.store.Close()
	}
	return nil
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fieldwork) error {
		f.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. The store must implement
// Storer at minimum; typically it will be a store.Store which embeds all
// subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(f *Fieldwork) error {
		f.store = s
		return nil
	}
}

// WithClock overrides the time source. Useful in tests.
func WithClock(c Clock) Option {
	return func(f *Fieldwork) error {
		f.clock = c
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(f *Fieldwork) error {
		f.config = c
		return nil
	}
}

// WithGenerationTimeout sets the client-side timeout for document generation.
func WithGenerationTimeout(d time.Duration) Option {
	return func(f *Fieldwork) error {
		f.config.GenerationTimeout = d
		return nil
	}
}

// WithReconcileRetry sets the bounded retry policy used when the
// reconciliation guard re-reads a job.
func WithReconcileRetry(attempts int, initial, maxDelay time.Duration) Option {
	return func(f *Fieldwork) error {
		f.config.ReconcileAttempts = attempts
		f.config.ReconcileInitialDelay = initial
		f.config.ReconcileMaxDelay = maxDelay
		return nil
	}
}

// WithSecondHalfDelay sets how long the second payout half is deferred.
func WithSecondHalfDelay(d time.Duration) Option {
	return func(f *Fieldwork) error {
		f.config.SecondHalfDelay = d
		return nil
	}
}

// WithAdminRecipients sets the addresses that receive admin alerts.
func WithAdminRecipients(addrs ...string) Option {
	return func(f *Fieldwork) error {
		f.config.AdminRecipients = addrs
		return nil
	}
}

// WithMilestoneThresholds overrides the milestone percentages.
func WithMilestoneThresholds(thresholds ...int) Option {
	return func(f *Fieldwork) error {
		f.config.MilestoneThresholds = thresholds
		return nil
	}
}

// WithBroadcastLimits caps concurrency and per-second rate of broadcasts.
func WithBroadcastLimits(concurrency int, perSecond float64) Option {
	return func(f *Fieldwork) error {
		f.config.BroadcastConcurrency = concurrency
		f.config.BroadcastRate = perSecond
		return nil
	}
}

// WithActionTimeout bounds each non-generation lifecycle action.
func WithActionTimeout(d time.Duration) Option {
	return func(f *Fieldwork) error {
		f.config.ActionTimeout = d
		return nil
	}
}
