package rexcache

import "errors"

// CompileError and ErrResourceExhausted are recoverable at the caller;
// ErrInvalidState and EngineFailure surface programmer error and engine
// error codes directly. Internal invariant breaches (refcount underflow)
// never reach a caller — they are logged and the library continues,
// availability over fail-fast, since this is a library embedded in someone
// else's process.

// CompileError wraps a native-engine compile failure.
type CompileError struct {
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return "rexcache: compile " + e.Pattern + ": " + e.Err.Error()
}

func (e *CompileError) Unwrap() error { return e.Err }

// ResourceExhausted is returned when a simultaneous-pattern or per-pattern
// matcher limit has been reached. No partial side effects occur before it
// is returned.
var ErrResourceExhausted = errors.New("rexcache: resource limit exhausted")

// ErrInvalidState is returned for operations on a released matcher. A
// shut-down Cache does not return it: compiles and matches after Shutdown
// proceed, with no background eviction running.
var ErrInvalidState = errors.New("rexcache: invalid state")

// EngineFailure wraps a match/capture error code reported by the native
// engine during a match operation (distinct from a compile failure).
type EngineFailure struct {
	Err error
}

func (e *EngineFailure) Error() string { return "rexcache: engine failure: " + e.Err.Error() }
func (e *EngineFailure) Unwrap() error { return e.Err }
