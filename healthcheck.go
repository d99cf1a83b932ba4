package riverconf

import (
	"context"
	"errors"
)

// ErrHealthcheckFailed is returned when the service health check fails.
var ErrHealthcheckFailed = errors.New("riverconf: healthcheck failed")

var (
	errServiceNil        = errors.New("service is nil")
	errServiceNotStarted = errors.New("service not started")
)

// Healthcheck returns a readiness check for the service. The check verifies
// that the service is started and the database connection is healthy.
func Healthcheck(s *Service) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if s == nil {
			return errors.Join(ErrHealthcheckFailed, errServiceNil)
		}

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()

		if !started {
			return errors.Join(ErrHealthcheckFailed, errServiceNotStarted)
		}

		// Pool.Ping covers both connectivity and River's access to its
		// tables, since River shares the same pool.
		if err := s.pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}

		return nil
	}
}
