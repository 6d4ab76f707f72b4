package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	err := New(CodeDomainNotAllowed, "Email domain not allowed")
	assert.Equal(t, CodeDomainNotAllowed, err.Code)
	assert.Equal(t, "Email domain not allowed", err.Message)
	assert.Nil(t, err.Cause)

	err = Newf(CodeValidation, "auth: key cache size must be > %d", 0)
	assert.Equal(t, "auth: key cache size must be > 0", err.Message)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternalDatabase, "userstore: lookup failed")
	require.NotNil(t, err)
	assert.Same(t, cause, err.Cause)

	err = Wrapf(cause, CodeUnavailableDependency, "%s: health check failed", "redis")
	assert.Equal(t, "redis: health check failed", err.Message)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(nil, CodeInternal, "x"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "%d", 1))
}

func TestWrap_ClassifiedCause(t *testing.T) {
	t.Parallel()

	inner := New(CodeUserNotFound, "User not found")
	outer := Wrap(inner, CodeUserNotFound, "User not found")

	got, ok := AsError(outer)
	require.True(t, ok)
	assert.Same(t, outer, got, "AsError returns the outermost *Error")
	assert.ErrorIs(t, outer, inner)
}

func TestShortcuts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeValidation, Validation("bad").Code)
	assert.Equal(t, "log level \"loud\"", Validationf("log level %q", "loud").Message)
	assert.Equal(t, CodeInternal, Internal("Authentication error").Code)
}

func TestFromError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromError(nil))

	classified := New(CodeTenantMismatch, "Token tenant not accepted")
	assert.Same(t, classified, FromError(classified))
	assert.Same(t, classified, FromError(errors.Join(errors.New("ctx"), classified)))

	plain := errors.New("nil map write")
	e := FromError(plain)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, unexpectedMessage, e.Message)
	assert.NotContains(t, e.Message, "nil map", "the cause never becomes the message")
	assert.ErrorIs(t, e, plain)
}

func TestAsError(t *testing.T) {
	t.Parallel()

	_, ok := AsError(errors.New("plain"))
	assert.False(t, ok)
	got, ok := AsError(nil)
	assert.False(t, ok)
	assert.Nil(t, got)
}
