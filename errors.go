package riverconf

import "errors"

// Configuration and dispatch errors.
var (
	// ErrInvalidOptions is returned when an option schema fails validation.
	// Wrapped errors name the offending field.
	ErrInvalidOptions = errors.New("riverconf: invalid options")

	// ErrPoolRequired is returned when attempting to construct a service
	// without providing a database pool.
	ErrPoolRequired = errors.New("riverconf: pool is required")

	// ErrUnknownHandler is returned when dispatching to a handler name
	// that has not been registered.
	ErrUnknownHandler = errors.New("riverconf: unknown handler")

	// ErrDuplicateHandler is returned when two handlers are registered
	// under the same name.
	ErrDuplicateHandler = errors.New("riverconf: duplicate handler")

	// ErrInvalidPayload is returned when a payload cannot be serialized
	// or deserialized with the configured serde.
	ErrInvalidPayload = errors.New("riverconf: invalid payload")

	// ErrAlreadyStarted is returned when attempting to start a service
	// that is already running.
	ErrAlreadyStarted = errors.New("riverconf: already started")

	// ErrNotStarted is returned when attempting to stop a service
	// that is not running.
	ErrNotStarted = errors.New("riverconf: not started")
)
