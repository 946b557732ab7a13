// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
//
// Errors built by this package are intended to be declared as package-level
// sentinels, then wrapped with a cause at the call site. Wrapping never
// mutates the sentinel.
package errors

import (
	stderr "errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg string
	err error
}

// Error message, including the wrapped cause when there is one
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error. The receiver is left untouched.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err}
}

// WrapMessage wraps a formatted message as the nested error
func (e *Error) WrapMessage(format string, args ...interface{}) *Error {
	return &Error{msg: e.msg, err: fmt.Errorf(format, args...)}
}

// WrapWithLog wraps a nested error and logs it at error level
func (e *Error) WrapWithLog(logger *zap.Logger, err error, fields ...zapcore.Field) *Error {
	if logger != nil {
		logger.Error(e.msg, append(fields, zap.Error(err))...)
	}
	return &Error{msg: e.msg, err: err}
}

// Is of some error type? Matching is on the sentinel message, so a wrapped
// error still matches its sentinel.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.msg == t.msg
	}
	return false
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.As)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
