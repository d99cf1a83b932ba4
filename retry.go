package riverconf

import (
	"fmt"
	"math"
	"time"

	"github.com/riverqueue/river/rivertype"
)

const (
	defaultInitialInterval = time.Second
	defaultFactor          = 2.0
)

// OnExhausted selects the terminal job state once all retry attempts
// are used up.
type OnExhausted string

const (
	// OnExhaustedDiscard lets the runtime move the job to its discarded
	// state. This is the runtime's default behavior.
	OnExhaustedDiscard OnExhausted = "discard"

	// OnExhaustedCancel cancels the job on its final failed attempt
	// instead of discarding it.
	OnExhaustedCancel OnExhausted = "cancel"
)

// RetryPolicy describes exponential backoff for failed invocations.
// The zero value of each field inherits the runtime default. The policy is
// forwarded to River, which owns retry scheduling and execution; this type
// only computes the timestamps River asks for.
//
// RetryPolicy implements river.ClientRetryPolicy, so a validated policy can
// be plugged straight into river.Config.
type RetryPolicy struct {
	// InitialInterval is the delay before the first retry.
	// Defaults to 1s.
	InitialInterval time.Duration `env:"INITIAL_INTERVAL" yaml:"initial_interval,omitempty"`

	// MaxInterval caps the delay between retries. Zero means uncapped.
	MaxInterval time.Duration `env:"MAX_INTERVAL" yaml:"max_interval,omitempty"`

	// Factor is the exponentiation factor applied per attempt.
	// Defaults to 2.
	Factor float64 `env:"FACTOR" yaml:"factor,omitempty"`

	// MaxAttempts bounds the total number of attempts, including the
	// first. Zero inherits the runtime default (25).
	MaxAttempts int `env:"MAX_ATTEMPTS" yaml:"max_attempts,omitempty"`

	// OnExhausted selects the terminal state after the final attempt.
	// Defaults to [OnExhaustedDiscard].
	OnExhausted OnExhausted `env:"ON_EXHAUSTED" yaml:"on_exhausted,omitempty"`
}

// Validate checks the policy for internally inconsistent values.
func (p *RetryPolicy) Validate() error {
	if p == nil {
		return nil
	}
	if p.InitialInterval < 0 {
		return fmt.Errorf("%w: retry initial interval must not be negative", ErrInvalidOptions)
	}
	if p.MaxInterval < 0 {
		return fmt.Errorf("%w: retry max interval must not be negative", ErrInvalidOptions)
	}
	if p.MaxInterval > 0 && p.InitialInterval > p.MaxInterval {
		return fmt.Errorf("%w: retry initial interval exceeds max interval", ErrInvalidOptions)
	}
	if p.Factor != 0 && p.Factor < 1 {
		return fmt.Errorf("%w: retry factor must be at least 1", ErrInvalidOptions)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry max attempts must not be negative", ErrInvalidOptions)
	}
	switch p.OnExhausted {
	case "", OnExhaustedDiscard, OnExhaustedCancel:
	default:
		return fmt.Errorf("%w: unknown on-exhausted mode %q", ErrInvalidOptions, p.OnExhausted)
	}
	return nil
}

// NextRetry implements river.ClientRetryPolicy. River calls it after each
// failed attempt to learn when the job becomes runnable again.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	return time.Now().Add(p.backoff(job.Attempt))
}

// backoff returns the delay before the retry following the given attempt.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	initial := p.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	factor := p.Factor
	if factor < 1 {
		factor = defaultFactor
	}

	delay := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	// Guard against float overflow on deep attempt counts.
	if delay <= 0 {
		delay = math.MaxInt64
	}
	if p.MaxInterval > 0 && delay > p.MaxInterval {
		delay = p.MaxInterval
	}
	return delay
}
