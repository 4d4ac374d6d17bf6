package flighterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorPredicates(t *testing.T) {
	cases := []struct {
		name string
		err  *AppError
		is   func(error) bool
	}{
		{"out of device memory", NewOutOfDeviceMemoryError("grow failed"), IsOutOfDeviceMemory},
		{"malformed batch", NewMalformedBatchError("missing sentinel"), IsMalformedBatch},
		{"unknown identifier", NewUnknownIdentifierError(42), IsUnknownIdentifier},
		{"invalid result handle", NewInvalidResultHandleError("double release"), IsInvalidResultHandle},
		{"not initialized", NewNotInitializedError("detect"), IsNotInitialized},
		{"internal", NewInternalError("detect", "boom"), IsInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.is(tc.err))
			for _, other := range cases {
				if other.name == tc.name {
					continue
				}
				assert.False(t, other.is(tc.err), "%s predicate should not match %s error", other.name, tc.name)
			}
		})
	}
}

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	wrapped := &AppError{Code: CodeOutOfDeviceMemory, Message: "grow failed", Err: cause}

	require.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "grow failed")
	assert.Contains(t, wrapped.Error(), "underlying failure")
}

func TestWithDetailsIsImmutable(t *testing.T) {
	base := NewUnknownIdentifierError(7)
	decorated := base.WithDetails("batch", "update")

	assert.Nil(t, base.Details["batch"])
	assert.Equal(t, "update", decorated.Details["batch"])
	assert.Equal(t, int64(7), decorated.Details["id"])
}

func TestPredicateFalseOnPlainError(t *testing.T) {
	plain := errors.New("not an AppError")
	assert.False(t, IsUnknownIdentifier(plain))
}

func TestRecoverConvertsPanicToInternalError(t *testing.T) {
	call := func() (err error) {
		defer Recover(&err, "detect")
		panic("store invariant violated")
	}

	err := call()
	require.Error(t, err)
	assert.True(t, IsInternal(err))

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "detect", appErr.Details["operation"])
	assert.Equal(t, "store invariant violated", appErr.Details["panic"])
}

func TestRecoverNoopWithoutPanic(t *testing.T) {
	call := func() (err error) {
		defer Recover(&err, "detect")
		return nil
	}

	assert.NoError(t, call())
}
