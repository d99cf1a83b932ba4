package riverconf

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// defaultIdempotencyRetention applies when a dispatch carries an idempotency
// key but no retention window is configured anywhere.
const defaultIdempotencyRetention = 24 * time.Hour

// dispatchConfig holds options for a single dispatch.
type dispatchConfig struct {
	scheduledAt    *time.Time
	queue          string
	idempotencyKey string
	tags           []string
	maxAttempts    int
	priority       int
	retention      time.Duration
}

// DispatchOption configures a single dispatch.
type DispatchOption func(*dispatchConfig)

// InQueue dispatches to a named queue instead of the service's default.
// The queue must have been configured with [WithQueue].
func InQueue(name string) DispatchOption {
	return func(c *dispatchConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt delays the invocation until a specific time.
func ScheduledAt(t time.Time) DispatchOption {
	return func(c *dispatchConfig) {
		c.scheduledAt = &t
	}
}

// ScheduledIn delays the invocation by a duration.
func ScheduledIn(d time.Duration) DispatchOption {
	return func(c *dispatchConfig) {
		t := time.Now().Add(d)
		c.scheduledAt = &t
	}
}

// MaxAttempts overrides the attempt budget for this invocation only.
func MaxAttempts(n int) DispatchOption {
	return func(c *dispatchConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Priority sets the invocation priority (lower numbers run first).
func Priority(p int) DispatchOption {
	return func(c *dispatchConfig) {
		if p > 0 {
			c.priority = p
		}
	}
}

// Tags attaches metadata tags to the invocation for filtering and
// monitoring.
func Tags(tags ...string) DispatchOption {
	return func(c *dispatchConfig) {
		c.tags = append(c.tags, tags...)
	}
}

// WithIdempotencyKey deduplicates dispatches sharing the key within the
// configured idempotency retention window. An empty key generates a fresh
// one, which makes the dispatch unique but records the key on the
// invocation.
func WithIdempotencyKey(key string) DispatchOption {
	return func(c *dispatchConfig) {
		if key == "" {
			key = NewIdempotencyKey()
		}
		c.idempotencyKey = key
	}
}

// WithRetention overrides the idempotency retention window for this
// dispatch. Only meaningful together with [WithIdempotencyKey].
func WithRetention(d time.Duration) DispatchOption {
	return func(c *dispatchConfig) {
		if d > 0 {
			c.retention = d
		}
	}
}

// NewIdempotencyKey returns a random idempotency key.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Dispatch enqueues an invocation of a registered handler. The payload is
// encoded with the handler's input serde. Invocations can be dispatched
// before Start is called; they run once the service starts.
func (s *Service) Dispatch(ctx context.Context, handler string, payload any, opts ...DispatchOption) error {
	args, insertOpts, err := s.buildDispatch(handler, payload, opts...)
	if err != nil {
		return err
	}

	if _, err := s.client.Insert(ctx, args, insertOpts); err != nil {
		return fmt.Errorf("riverconf: dispatch: %w", err)
	}
	return nil
}

// DispatchTx enqueues an invocation within a transaction. The invocation is
// only visible after the transaction commits, which keeps database changes
// and dispatches atomic.
func (s *Service) DispatchTx(ctx context.Context, tx pgx.Tx, handler string, payload any, opts ...DispatchOption) error {
	args, insertOpts, err := s.buildDispatch(handler, payload, opts...)
	if err != nil {
		return err
	}

	if _, err := s.client.InsertTx(ctx, tx, args, insertOpts); err != nil {
		return fmt.Errorf("riverconf: dispatch tx: %w", err)
	}
	return nil
}

// buildDispatch resolves the handler binding and converts dispatch options
// into River insert options. Handler-level settings fill any gaps, then
// service-level settings.
func (s *Service) buildDispatch(handler string, payload any, opts ...DispatchOption) (*taskArgs, *river.InsertOpts, error) {
	b, ok := s.registry.get(handler)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownHandler, handler)
	}

	args := &taskArgs{Handler: handler}
	if payload != nil {
		data, err := b.opts.InputSerde.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		args.Payload = data
	}

	cfg := &dispatchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	insertOpts := &river.InsertOpts{Queue: s.defaultQueue}
	if cfg.queue != "" {
		insertOpts.Queue = cfg.queue
	}
	if cfg.scheduledAt != nil {
		insertOpts.ScheduledAt = *cfg.scheduledAt
	}
	if cfg.priority > 0 {
		insertOpts.Priority = cfg.priority
	}
	if len(cfg.tags) > 0 {
		insertOpts.Tags = cfg.tags
	}

	maxAttempts := cfg.maxAttempts
	if maxAttempts == 0 && b.opts.RetryPolicy != nil {
		maxAttempts = b.opts.RetryPolicy.MaxAttempts
	}
	if maxAttempts > 0 {
		insertOpts.MaxAttempts = maxAttempts
	}

	if cfg.idempotencyKey != "" {
		args.IdempotencyKey = cfg.idempotencyKey
		insertOpts.UniqueOpts = river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: s.idempotencyRetention(b, cfg.retention),
		}
	}

	return args, insertOpts, nil
}

// idempotencyRetention resolves the retention window: dispatch option, then
// handler, then service, then the package default.
func (s *Service) idempotencyRetention(b *handlerBinding, override time.Duration) time.Duration {
	switch {
	case override > 0:
		return override
	case b.opts.IdempotencyRetention > 0:
		return b.opts.IdempotencyRetention
	case s.defaults.IdempotencyRetention > 0:
		return s.defaults.IdempotencyRetention
	default:
		return defaultIdempotencyRetention
	}
}
