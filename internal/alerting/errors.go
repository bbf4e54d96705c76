package alerting

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed observation. The scanner skips the
// affected area and continues the cycle.
type ValidationError struct {
	AreaID string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid observation for area %q: %v", e.AreaID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageUnavailableError reports a transient storage failure. The affected
// area is retried on the next cycle; a mid-cycle occurrence aborts the
// remainder of the cycle so the scheduler can back off.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// InvariantViolationError reports a duplicate active alert for an area key.
// With per-key serialization in place this must never occur; it is surfaced
// loudly as a bug, never repaired silently.
type InvariantViolationError struct {
	AreaKey string
	Err     error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for area %q: %v", e.AreaKey, e.Err)
}

func (e *InvariantViolationError) Unwrap() error { return e.Err }

// ConfigurationError reports invalid engine configuration, rejected at load
// time so bad values never reach the classifier.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorageUnavailable reports whether err is a StorageUnavailableError.
func IsStorageUnavailable(err error) bool {
	var se *StorageUnavailableError
	return errors.As(err, &se)
}

// IsInvariantViolation reports whether err is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var ie *InvariantViolationError
	return errors.As(err, &ie)
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsStorageUnavailable(err):
		return "storage_unavailable"
	case IsInvariantViolation(err):
		return "invariant_violation"
	default:
		return "other"
	}
}
