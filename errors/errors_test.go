package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"transport", ErrTransport, true},
		{"connection timeout", ErrConnectionTimeout, true},
		{"queue full", ErrQueueFull, true},
		{"circuit open", ErrCircuitOpen, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"network in message", fmt.Errorf("network unreachable"), true},
		{"malformed message", ErrMalformedMessage, false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrMalformedMessage))
	assert.True(t, IsInvalid(ErrInvalidEnvelope))
	assert.True(t, IsInvalid(ErrNotReplyable))
	assert.True(t, IsInvalid(WrapInvalid(errors.New("x"), "Codec", "Decode", "parse")))
	assert.False(t, IsInvalid(ErrTransport))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrHalted))
	assert.True(t, IsFatal(WrapFatal(errors.New("x"), "Driver", "Start", "restart")))
	assert.False(t, IsFatal(ErrConnectionLost))
	assert.False(t, IsFatal(nil))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidEnvelope))
	assert.Equal(t, ErrorTransient, Classify(ErrTransport))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorTransient, Classify(errors.New("something odd")))
}

func TestWrap_Format(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Driver", "Send", "encode envelope")

	assert.EqualError(t, err, "Driver.Send: encode envelope failed: boom")
	assert.ErrorIs(t, err, base)
	assert.Nil(t, Wrap(nil, "a", "b", "c"))
}

func TestWrapInvalid_KeepsSentinel(t *testing.T) {
	err := WrapInvalid(ErrInvalidEnvelope, "Codec", "Encode", "validate envelope")

	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorInvalid, ce.Class)
	assert.Equal(t, "Codec", ce.Component)
	assert.Equal(t, "Encode", ce.Operation)
}

func TestWrapTransport(t *testing.T) {
	cause := errors.New("nats: connection closed")
	err := WrapTransport(cause, "Driver", "Send", "publish")

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransient(err))
	assert.Nil(t, WrapTransport(nil, "a", "b", "c"))
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.True(t, rc.ShouldRetry(ErrTransport, 0))
	assert.False(t, rc.ShouldRetry(ErrInvalidEnvelope, 0))
	assert.False(t, rc.ShouldRetry(ErrTransport, rc.MaxRetries))

	rc.RetryableErrors = []error{ErrConnectionTimeout}
	assert.True(t, rc.ShouldRetry(ErrConnectionTimeout, 0))
	assert.False(t, rc.ShouldRetry(ErrTransport, 0))

	cfg := DefaultRetryConfig().ToRetryConfig()
	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialDelay)
	require.NotNil(t, cfg.Retryable)
	assert.True(t, cfg.Retryable(ErrTransport))
}
