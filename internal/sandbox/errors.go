package sandbox

import (
	"errors"

	"github.com/dop251/goja"
)

var (
	ErrClosed     = errors.New("sandbox context is closed")
	ErrEvaluation = errors.New("sandbox evaluation failed")
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// RuntimeError is an error raised during sandboxed evaluation. Value is the
// thrown value bridged into the host realm; it is nil when evaluation was
// interrupted.
type RuntimeError struct {
	Value   goja.Value
	Message string

	cause       error
	interrupted bool
}

func (e *RuntimeError) Error() string {
	return "sandbox evaluation failed: " + e.Message
}

// Unwrap exposes ErrEvaluation and, for interrupts, the engine error.
func (e *RuntimeError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrEvaluation, e.cause}
	}
	return []error{ErrEvaluation}
}

// Interrupted reports whether evaluation was stopped by a timeout or cancellation.
func (e *RuntimeError) Interrupted() bool {
	return e.interrupted
}
