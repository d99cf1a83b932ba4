package riverconf

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration shared by services and handlers. Every
// field is optional; zero values are omitted from the constructed River
// objects so the runtime's own defaults apply. Handler-level values override
// service-level values per field.
type Options struct {
	// Metadata is forwarded verbatim onto the service or handler
	// descriptor for admin tooling to consume.
	Metadata map[string]string `env:"METADATA" envSeparator:"," envKeyValSeparator:":" yaml:"metadata,omitempty"`

	// InactivityTimeout guards against stalled invocations. Once it
	// expires, the runtime cancels the invocation context, giving the
	// handler a chance to stop gracefully. Forwarded to River's job
	// timeout. Overrides the runtime default for all invocations.
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" yaml:"inactivity_timeout,omitempty"`

	// AbortTimeout guards against invocations that do not react to the
	// graceful cancellation request. Once it expires, the runtime
	// reclaims the invocation even if the handler never returned.
	// Forwarded to River's stuck-job rescue horizon. Handlers that need
	// longer to wind down must raise this value.
	AbortTimeout time.Duration `env:"ABORT_TIMEOUT" yaml:"abort_timeout,omitempty"`

	// JournalRetention is how long the runtime keeps finished invocation
	// records. Forwarded to River's completed, cancelled, and discarded
	// job retention periods.
	JournalRetention time.Duration `env:"JOURNAL_RETENTION" yaml:"journal_retention,omitempty"`

	// IdempotencyRetention is the window during which a dispatch with an
	// idempotency key is deduplicated. Forwarded to River's uniqueness
	// period on dispatch.
	IdempotencyRetention time.Duration `env:"IDEMPOTENCY_RETENTION" yaml:"idempotency_retention,omitempty"`

	// IngressPrivate marks the service or handler as not invokable from
	// public ingress, only from other services. The flag is forwarded on
	// the descriptor; enforcement belongs to the embedding runtime.
	IngressPrivate *bool `env:"INGRESS_PRIVATE" yaml:"ingress_private,omitempty"`

	// RetryPolicy is the retry policy for failed invocations. It has no
	// flat env form; configure it in code or load it under the RETRY_
	// prefix (see [ServiceOptionsFromEnv]).
	RetryPolicy *RetryPolicy `env:"-" yaml:"retry_policy,omitempty"`
}

// Validate checks the shared options for invalid values.
func (o Options) Validate() error {
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"inactivity timeout", o.InactivityTimeout},
		{"abort timeout", o.AbortTimeout},
		{"journal retention", o.JournalRetention},
		{"idempotency retention", o.IdempotencyRetention},
	} {
		if d.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidOptions, d.name)
		}
	}
	return o.RetryPolicy.Validate()
}

// ServiceOptions describes a durable service. Name is required; everything
// else inherits runtime defaults when left zero.
type ServiceOptions struct {
	// Name of the service. Doubles as the default dispatch queue name.
	Name string `env:"NAME" yaml:"name"`

	// Description is documentation forwarded on the service descriptor,
	// shown by admin tooling.
	Description string `env:"DESCRIPTION" yaml:"description,omitempty"`

	Options `yaml:",inline"`
}

// Validate checks the service options before construction.
func (o ServiceOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidOptions)
	}
	if strings.ContainsFunc(o.Name, unicode.IsSpace) {
		return fmt.Errorf("%w: service name must not contain whitespace", ErrInvalidOptions)
	}
	return o.Options.Validate()
}

// HandlerOptions describes a single handler. All fields are optional; the
// handler name defaults to the task's Name() and serdes default to JSON.
type HandlerOptions struct {
	// Name of the handler. Defaults to the registered task's Name().
	Name string `env:"NAME" yaml:"name,omitempty"`

	// Accept is the content type the handler consumes. Defaults to the
	// input serde's content type.
	Accept string `env:"ACCEPT" yaml:"accept,omitempty"`

	// ContentType is the content type the handler produces. Defaults to
	// the output serde's content type.
	ContentType string `env:"CONTENT_TYPE" yaml:"content_type,omitempty"`

	// InputSerde decodes dispatch payloads. Defaults to [JSONSerde].
	InputSerde Serde `env:"-" yaml:"-"`

	// OutputSerde encodes handler results. Defaults to [JSONSerde].
	OutputSerde Serde `env:"-" yaml:"-"`

	Options `yaml:",inline"`
}

// Validate checks the handler options.
func (o HandlerOptions) Validate() error {
	if strings.ContainsFunc(o.Name, unicode.IsSpace) {
		return fmt.Errorf("%w: handler name must not contain whitespace", ErrInvalidOptions)
	}
	return o.Options.Validate()
}

// withDefaults resolves the handler name and serdes for a registered task.
func (o HandlerOptions) withDefaults(taskName string) HandlerOptions {
	if o.Name == "" {
		o.Name = taskName
	}
	if o.InputSerde == nil {
		o.InputSerde = JSONSerde{}
	}
	if o.OutputSerde == nil {
		o.OutputSerde = JSONSerde{}
	}
	if o.Accept == "" {
		o.Accept = o.InputSerde.ContentType()
	}
	if o.ContentType == "" {
		o.ContentType = o.OutputSerde.ContentType()
	}
	return o
}

// ServiceOptionsFromEnv parses service options from environment variables
// with the given prefix. The retry policy is parsed under an additional
// RETRY_ prefix and attached only if at least one of its variables is set:
//
//	BILLING_NAME=billing
//	BILLING_INACTIVITY_TIMEOUT=5m
//	BILLING_RETRY_MAX_ATTEMPTS=10
//
//	opts, err := riverconf.ServiceOptionsFromEnv("BILLING_")
func ServiceOptionsFromEnv(prefix string) (ServiceOptions, error) {
	var o ServiceOptions
	if err := env.ParseWithOptions(&o, env.Options{Prefix: prefix}); err != nil {
		return ServiceOptions{}, fmt.Errorf("riverconf: parse env: %w", err)
	}
	rp, err := retryPolicyFromEnv(prefix)
	if err != nil {
		return ServiceOptions{}, err
	}
	o.RetryPolicy = rp
	if err := o.Validate(); err != nil {
		return ServiceOptions{}, err
	}
	return o, nil
}

// HandlerOptionsFromEnv parses handler options from environment variables
// with the given prefix, following the same layout as
// [ServiceOptionsFromEnv].
func HandlerOptionsFromEnv(prefix string) (HandlerOptions, error) {
	var o HandlerOptions
	if err := env.ParseWithOptions(&o, env.Options{Prefix: prefix}); err != nil {
		return HandlerOptions{}, fmt.Errorf("riverconf: parse env: %w", err)
	}
	rp, err := retryPolicyFromEnv(prefix)
	if err != nil {
		return HandlerOptions{}, err
	}
	o.RetryPolicy = rp
	if err := o.Validate(); err != nil {
		return HandlerOptions{}, err
	}
	return o, nil
}

// retryPolicyFromEnv parses a retry policy under prefix+RETRY_ and reports
// nil when no variable was set, so an absent policy stays absent.
func retryPolicyFromEnv(prefix string) (*RetryPolicy, error) {
	var rp RetryPolicy
	if err := env.ParseWithOptions(&rp, env.Options{Prefix: prefix + "RETRY_"}); err != nil {
		return nil, fmt.Errorf("riverconf: parse env: %w", err)
	}
	if rp == (RetryPolicy{}) {
		return nil, nil
	}
	return &rp, nil
}
