// Package errclass defines the stable, machine-readable error classes
// surfaced by dotlock.
package errclass

import "fmt"

// LockError is a stable, machine-readable error class.
type LockError struct {
	Code    string
	Message string
}

func (e *LockError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any LockError carrying the same Code.
func (e *LockError) Is(target error) bool {
	t, ok := target.(*LockError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new LockError with the same Code but a specific message.
func (e *LockError) WithMessage(msg string) *LockError {
	return &LockError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new LockError with a formatted message.
func (e *LockError) WithMessagef(format string, args ...any) *LockError {
	return &LockError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrNotLocked is returned by Refresh when ownership could not be
	// verified, typically because the lock was hijacked.
	ErrNotLocked       = &LockError{Code: "E_NOT_LOCKED"}
	// ErrExhausted is returned when a bounded acquire gave up.
	ErrExhausted       = &LockError{Code: "E_LOCK_EXHAUSTED"}
	ErrPolicyInvalid   = &LockError{Code: "E_POLICY_INVALID"}
	ErrPathInvalid     = &LockError{Code: "E_PATH_INVALID"}
	ErrConfigInvalid   = &LockError{Code: "E_CONFIG_INVALID"}
	ErrStressViolation = &LockError{Code: "E_STRESS_VIOLATION"}
	ErrAuditBroken     = &LockError{Code: "E_AUDIT_BROKEN"}
)
