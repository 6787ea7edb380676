package realm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFunctionConstructor is returned when a realm lacks a usable Function binding.
	ErrNoFunctionConstructor = errors.New("realm: no usable function constructor")

	// ErrRealmReused is returned when a realm is handed to the sanitizer twice.
	ErrRealmReused = errors.New("realm: realm already sanitized")
)

// ConstructionError reports that a realm factory could not yield a usable scope.
type ConstructionError struct {
	Reason string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("realm construction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("realm construction failed: %s", e.Reason)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// SanitizationWarning records a binding that resisted every neutralization strategy.
type SanitizationWarning struct {
	Key    string
	Reason string
}

func (w SanitizationWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Key, w.Reason)
}
