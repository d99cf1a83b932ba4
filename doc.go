// Package riverconf provides declarative, validated configuration for
// River-backed durable job services.
//
// River (Postgres-native durable execution) owns invocation retries, job
// timeouts, stuck-job rescue, and completed-job retention. This package is a
// typed front door onto that configuration surface: option schemas are plain
// structs that can be populated from code or environment variables, validated
// up front, and then converted field-for-field into the River objects that
// actually enforce them. No retry, timeout, or retention logic lives here.
//
// # Features
//
//   - Declarative service and handler option schemas with validation
//   - Environment-driven configuration via caarlos0/env tags
//   - Field-for-field pass-through into river.Config and river.InsertOpts
//   - Type-safe handler registration with structural typing
//   - Per-handler timeout and retry-policy overrides via River worker hooks
//   - Scheduled handlers with cron expressions
//   - Transactional dispatch (jobs only visible after commit)
//   - Idempotent dispatch with retention windows
//   - Health check integration
//
// # Service Construction
//
// A service is described by [ServiceOptions] and constructed with NewService.
// Every populated field is forwarded to River; zero values inherit the
// runtime's own defaults:
//
//	opts := riverconf.ServiceOptions{
//	    Name:        "billing",
//	    Description: "Invoice generation and payment capture.",
//	    Options: riverconf.Options{
//	        InactivityTimeout: 5 * time.Minute,
//	        AbortTimeout:      15 * time.Minute,
//	        JournalRetention:  7 * 24 * time.Hour,
//	        RetryPolicy: &riverconf.RetryPolicy{
//	            InitialInterval: time.Second,
//	            MaxInterval:     10 * time.Minute,
//	            Factor:          2,
//	            MaxAttempts:     10,
//	        },
//	    },
//	}
//
//	svc, err := opts.NewService(pool,
//	    riverconf.Handler(tasks.NewChargeCard(stripe), riverconf.HandlerOptions{}),
//	    riverconf.WithLogger(slog.Default()),
//	)
//
// # Handler Registration
//
// Handlers are plain structs with Name() and Handle() methods; no interface
// import is required. [Handler] wraps a typed task with its serde and records
// per-handler overrides for the worker hooks:
//
//	type ChargeCard struct {
//	    stripe *stripe.Client
//	}
//
//	func (t *ChargeCard) Name() string { return "charge_card" }
//	func (t *ChargeCard) Handle(ctx context.Context, p ChargePayload) error {
//	    return t.stripe.Charge(ctx, p.CustomerID, p.AmountCents)
//	}
//
//	riverconf.Handler(&ChargeCard{stripe: client}, riverconf.HandlerOptions{
//	    Options: riverconf.Options{
//	        AbortTimeout: time.Minute,
//	        RetryPolicy:  &riverconf.RetryPolicy{MaxAttempts: 3},
//	    },
//	})
//
// # Environment Configuration
//
// Option schemas carry env tags, so a whole service can be described by the
// process environment:
//
//	// BILLING_NAME=billing
//	// BILLING_INACTIVITY_TIMEOUT=5m
//	// BILLING_JOURNAL_RETENTION=168h
//	opts, err := riverconf.ServiceOptionsFromEnv("BILLING_")
//
// # Dispatch
//
// Jobs are dispatched by handler name, optionally inside a transaction:
//
//	err := svc.Dispatch(ctx, "charge_card", payload,
//	    riverconf.WithIdempotencyKey(invoiceID),
//	    riverconf.InQueue("payments"),
//	)
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//	    // job only exists if the transaction commits
//	    return svc.DispatchTx(ctx, tx, "charge_card", payload)
//	})
//
// # Error Handling
//
// The package defines sentinel errors for common failure modes:
//
//   - [ErrInvalidOptions] - option validation failed
//   - [ErrPoolRequired] - no database pool supplied
//   - [ErrUnknownHandler] - handler name not registered
//   - [ErrDuplicateHandler] - handler name registered twice
//   - [ErrInvalidPayload] - payload serialization failed
//   - [ErrAlreadyStarted] - service already running
//   - [ErrNotStarted] - service not running
//
// # Database Migrations
//
// River requires its own tables. Run River migrations before constructing a
// service: https://riverqueue.com/docs/migrations
package riverconf
