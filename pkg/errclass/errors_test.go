package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockError_Error(t *testing.T) {
	err := errclass.ErrNotLocked.WithMessage("/data/file.lock")
	assert.Equal(t, "E_NOT_LOCKED: /data/file.lock", err.Error())
}

func TestLockError_Error_WithoutMessage(t *testing.T) {
	assert.Equal(t, "E_POLICY_INVALID", errclass.ErrPolicyInvalid.Error())
}

func TestLockError_Is(t *testing.T) {
	err := errclass.ErrNotLocked.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrNotLocked))
	require.False(t, errors.Is(err, errclass.ErrPolicyInvalid))
}

func TestLockError_Is_Wrapped(t *testing.T) {
	err := fmt.Errorf("refresh: %w", errclass.ErrNotLocked.WithMessage("hijacked"))
	assert.True(t, errors.Is(err, errclass.ErrNotLocked))

	var le *errclass.LockError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "hijacked", le.Message)
}

func TestLockError_Is_WithStandardError(t *testing.T) {
	err := errclass.ErrPathInvalid.WithMessage("test")
	require.False(t, errors.Is(err, errors.New("E_PATH_INVALID")))
}

func TestLockError_WithMessagef(t *testing.T) {
	err := errclass.ErrConfigInvalid.WithMessagef("bad duration %q", "soon")
	assert.Equal(t, `E_CONFIG_INVALID: bad duration "soon"`, err.Error())
	assert.Empty(t, errclass.ErrConfigInvalid.Message, "base error must stay unmodified")
}

func TestLockError_Codes(t *testing.T) {
	codes := map[string]*errclass.LockError{
		"E_NOT_LOCKED":       errclass.ErrNotLocked,
		"E_LOCK_EXHAUSTED":   errclass.ErrExhausted,
		"E_POLICY_INVALID":   errclass.ErrPolicyInvalid,
		"E_PATH_INVALID":     errclass.ErrPathInvalid,
		"E_CONFIG_INVALID":   errclass.ErrConfigInvalid,
		"E_STRESS_VIOLATION": errclass.ErrStressViolation,
		"E_AUDIT_BROKEN":     errclass.ErrAuditBroken,
	}
	for code, err := range codes {
		assert.Equal(t, code, err.Code)
	}
}
