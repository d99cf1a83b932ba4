package riverconf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// serviceConfig collects registrations and runtime knobs before the River
// client is constructed.
type serviceConfig struct {
	handlers   []*handlerBinding
	schedules  []scheduleBinding
	queues     map[string]int
	logger     *slog.Logger
	resultSink ResultSink
	settings   *Settings
	maxWorkers int
}

func newServiceConfig() *serviceConfig {
	return &serviceConfig{
		queues: make(map[string]int),
	}
}

// ServiceOption configures service construction.
type ServiceOption func(*serviceConfig)

// WithQueue configures an additional named queue with the specified number
// of workers. Dispatch to it with [InQueue].
func WithQueue(name string, workers int) ServiceOption {
	return func(c *serviceConfig) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithMaxWorkers sets the worker count for the default queue and any queue
// without an explicit count. Defaults to 100.
func WithMaxWorkers(n int) ServiceOption {
	return func(c *serviceConfig) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithLogger sets the logger for the service and the underlying River
// client. If not set, a noop logger is used.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithResultSink sets the sink that receives encoded results from handlers
// registered via [ResultHandler].
func WithResultSink(sink ResultSink) ServiceOption {
	return func(c *serviceConfig) {
		if sink != nil {
			c.resultSink = sink
		}
	}
}

// WithSettings applies process-level settings: identity keys land on the
// service descriptor, and queue defaults seed the worker configuration.
func WithSettings(s Settings) ServiceOption {
	return func(c *serviceConfig) {
		c.settings = &s
	}
}

// Service is a durable service constructed from validated [ServiceOptions].
// It wraps a River client configured field-for-field from the options; all
// retry, timeout, and retention behavior is enforced by River itself.
type Service struct {
	client       *river.Client[pgx.Tx]
	pool         *pgxpool.Pool
	registry     *handlerRegistry
	logger       *slog.Logger
	name         string
	description  string
	defaultQueue string
	metadata     map[string]string
	identityKeys []string
	defaults     Options

	mu      sync.Mutex
	started bool
}

// NewService validates the options and constructs a [Service] backed by a
// River client. Every populated option field is forwarded into river.Config
// or the service descriptor; zero values inherit River's defaults. Handlers
// and schedules are registered through opts. Jobs can be dispatched before
// Start is called.
func (o ServiceOptions) NewService(pool *pgxpool.Pool, opts ...ServiceOption) (*Service, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	cfg := newServiceConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.settings != nil {
		if err := cfg.settings.Validate(); err != nil {
			return nil, err
		}
		if cfg.maxWorkers == 0 {
			cfg.maxWorkers = cfg.settings.MaxWorkers
		}
	}
	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultQueueWorkers
	}

	defaultQueue := o.Name
	if cfg.settings != nil && cfg.settings.DefaultQueue != "" {
		defaultQueue = cfg.settings.DefaultQueue
	}

	registry := newHandlerRegistry()
	for _, b := range cfg.handlers {
		if err := b.opts.Validate(); err != nil {
			return nil, fmt.Errorf("riverconf: handler %q: %w", b.opts.Name, err)
		}
		if !registry.register(b.opts.Name, b) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, b.opts.Name)
		}
	}

	var periodicJobs []*river.PeriodicJob
	for _, sched := range cfg.schedules {
		cronSchedule, err := parseCronSchedule(sched.schedule)
		if err != nil {
			return nil, fmt.Errorf("riverconf: invalid cron schedule %q: %w", sched.schedule, err)
		}

		name := sched.name
		periodicJobs = append(periodicJobs, river.NewPeriodicJob(
			cronSchedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return &taskArgs{Handler: name}, &river.InsertOpts{Queue: defaultQueue}
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		))

		binding := &handlerBinding{
			opts: HandlerOptions{}.withDefaults(name),
			exec: &scheduledExecutor{handler: sched.handler},
		}
		if !registry.register(name, binding) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
		}
	}

	queues := map[string]river.QueueConfig{
		defaultQueue: {MaxWorkers: cfg.maxWorkers},
	}
	for name, workers := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: workers}
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{
		registry:     registry,
		logger:       cfg.logger,
		sink:         cfg.resultSink,
		defaultRetry: o.RetryPolicy,
	})

	riverCfg := &river.Config{
		Queues:       queues,
		Workers:      workers,
		PeriodicJobs: periodicJobs,
		Logger:       cfg.logger,
	}
	if o.InactivityTimeout > 0 {
		riverCfg.JobTimeout = o.InactivityTimeout
	}
	// The rescue horizon is service-wide; it must cover the longest
	// handler abort window so no invocation is reclaimed early.
	if horizon := rescueHorizon(o.AbortTimeout, cfg.handlers); horizon > 0 {
		riverCfg.RescueStuckJobsAfter = horizon
	}
	if o.JournalRetention > 0 {
		riverCfg.CompletedJobRetentionPeriod = o.JournalRetention
		riverCfg.CancelledJobRetentionPeriod = o.JournalRetention
		riverCfg.DiscardedJobRetentionPeriod = o.JournalRetention
	}
	if rp := o.RetryPolicy; rp != nil {
		riverCfg.RetryPolicy = rp
		if rp.MaxAttempts > 0 {
			riverCfg.MaxAttempts = rp.MaxAttempts
		}
	}

	// Client created immediately, allowing dispatch before Start.
	client, err := river.NewClient(riverpgxv5.New(pool), riverCfg)
	if err != nil {
		return nil, fmt.Errorf("riverconf: create client: %w", err)
	}

	svc := &Service{
		client:       client,
		pool:         pool,
		registry:     registry,
		logger:       cfg.logger,
		name:         o.Name,
		description:  o.Description,
		defaultQueue: defaultQueue,
		metadata:     maps.Clone(o.Metadata),
		defaults:     o.Options,
	}
	if cfg.settings != nil {
		svc.identityKeys = append(svc.identityKeys, cfg.settings.IdentityKeys...)
	}
	return svc, nil
}

// rescueHorizon picks the largest abort timeout across the service and its
// handlers.
func rescueHorizon(serviceAbort time.Duration, handlers []*handlerBinding) time.Duration {
	horizon := serviceAbort
	for _, b := range handlers {
		if b.opts.AbortTimeout > horizon {
			horizon = b.opts.AbortTimeout
		}
	}
	return horizon
}

// Start begins processing dispatched jobs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("riverconf: start client: %w", err)
	}

	s.started = true
	s.logger.Info("service started",
		slog.String("service", s.name),
		slog.Int("handlers", len(s.registry.names())),
	)
	return nil
}

// Stop gracefully shuts the service down, waiting for in-flight invocations
// to complete.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("riverconf: stop client: %w", err)
	}

	s.started = false
	s.logger.Info("service stopped", slog.String("service", s.name))
	return nil
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Description returns the service documentation string.
func (s *Service) Description() string { return s.description }

// Metadata returns a copy of the service metadata.
func (s *Service) Metadata() map[string]string { return maps.Clone(s.metadata) }

// IdentityKeys returns the request-identity keys on the descriptor.
func (s *Service) IdentityKeys() []string {
	return append([]string(nil), s.identityKeys...)
}

// IngressPrivate reports whether the service is marked private on the
// descriptor. Enforcement belongs to the embedding runtime.
func (s *Service) IngressPrivate() bool {
	return s.defaults.IngressPrivate != nil && *s.defaults.IngressPrivate
}

// HandlerInfo describes a registered handler for admin tooling.
type HandlerInfo struct {
	Metadata       map[string]string
	Name           string
	Accept         string
	ContentType    string
	IngressPrivate bool
}

// Handlers returns descriptors for all registered handlers, sorted by name.
func (s *Service) Handlers() []HandlerInfo {
	names := s.registry.names()
	infos := make([]HandlerInfo, 0, len(names))
	for _, name := range names {
		b, ok := s.registry.get(name)
		if !ok {
			continue
		}
		private := s.IngressPrivate()
		if b.opts.IngressPrivate != nil {
			private = *b.opts.IngressPrivate
		}
		infos = append(infos, HandlerInfo{
			Name:           name,
			Accept:         b.opts.Accept,
			ContentType:    b.opts.ContentType,
			IngressPrivate: private,
			Metadata:       maps.Clone(b.opts.Metadata),
		})
	}
	return infos
}

// taskArgs is the River job arguments type for all handlers of a service.
// It uses a unified format with handler name and encoded payload.
type taskArgs struct {
	Handler        string          `json:"handler"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (taskArgs) Kind() string { return "riverconf:task" }

// taskWorker routes every job through the handler registry. Its Timeout and
// NextRetry hooks forward per-handler overrides to River; defaultRetry is
// the service-level policy handlers fall back to.
type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	registry     *handlerRegistry
	logger       *slog.Logger
	sink         ResultSink
	defaultRetry *RetryPolicy
}

func (w *taskWorker) Work(ctx context.Context, job *river.Job[taskArgs]) error {
	b, ok := w.registry.get(job.Args.Handler)
	if !ok || b == nil {
		return fmt.Errorf("%w: %s", ErrUnknownHandler, job.Args.Handler)
	}

	w.logger.DebugContext(ctx, "invoking handler",
		slog.String("handler", job.Args.Handler),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
	)

	if err := b.exec.Execute(ctx, job.Args.Payload, w.sink); err != nil {
		w.logger.ErrorContext(ctx, "handler failed",
			slog.String("handler", job.Args.Handler),
			slog.Int64("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Any("error", err),
		)
		// On the final attempt, a cancel policy hands the job to River's
		// cancelled state instead of its discarded state. The handler
		// policy overrides the service policy only where set.
		rp := b.opts.RetryPolicy
		if rp == nil {
			rp = w.defaultRetry
		}
		if rp != nil && rp.OnExhausted == OnExhaustedCancel && job.Attempt >= job.MaxAttempts {
			return river.JobCancel(err)
		}
		return err
	}

	w.logger.DebugContext(ctx, "handler completed",
		slog.String("handler", job.Args.Handler),
		slog.Int64("job_id", job.ID),
	)
	return nil
}

// Timeout forwards the handler's inactivity timeout; zero inherits the
// client-wide job timeout.
func (w *taskWorker) Timeout(job *river.Job[taskArgs]) time.Duration {
	if b, ok := w.registry.get(job.Args.Handler); ok && b.opts.InactivityTimeout > 0 {
		return b.opts.InactivityTimeout
	}
	return 0
}

// NextRetry forwards the handler's retry policy; the zero time inherits the
// client-wide policy.
func (w *taskWorker) NextRetry(job *river.Job[taskArgs]) time.Time {
	if b, ok := w.registry.get(job.Args.Handler); ok && b.opts.RetryPolicy != nil {
		return b.opts.RetryPolicy.NextRetry(job.JobRow)
	}
	return time.Time{}
}
