package errors

import (
	"errors"
	"fmt"
)

// New returns an error with code and a client-safe message.
//
//	return errors.New(errors.CodeTokenExpired, "Token has expired")
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is [New] with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap classifies err under code. It returns nil when err is nil so it
// can wrap a call's result directly.
//
//	if err := row.Scan(&role, &dept); err != nil {
//	    return errors.Wrap(err, errors.CodeInternalDatabase, "userstore: lookup failed")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf is [Wrap] with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Validation returns a [CodeValidation] error, used for configuration.
func Validation(message string) *Error { return New(CodeValidation, message) }

// Validationf is [Validation] with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Internal returns an InternalFault. Keep message generic; it reaches
// clients.
func Internal(message string) *Error { return New(CodeInternal, message) }

// unexpectedMessage is the client-facing text of unclassified errors.
const unexpectedMessage = "an unexpected error occurred"

// FromError returns the first *Error in err's chain. An unclassified
// error is wrapped as InternalFault so gates never leak it.
//
//	e := errors.FromError(err)
//	w.WriteHeader(e.HTTPStatus())
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return Wrap(err, CodeInternal, unexpectedMessage)
}

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
