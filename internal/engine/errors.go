package engine

import "errors"

// Error taxonomy surfaced at the engine boundary. Per-item and per-ticker
// errors are recovered locally and reported with the affected output; they
// never abort unrelated work, and the engine performs no internal retries.
var (
	// ErrInvalidInput marks malformed bars or out-of-domain configuration.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStateConflict marks a second concurrent claim on a ticker already
	// owned by an active simulation stream.
	ErrStateConflict = errors.New("ticker already owned by an active simulation")

	// ErrCancelled marks cooperative cancellation of a stream.
	ErrCancelled = errors.New("simulation cancelled")

	// ErrInternal marks a violated computation invariant. Fatal for the
	// affected unit, logged, never swallowed.
	ErrInternal = errors.New("internal engine error")
)
