// Package apperr carries typed errors across pipeline stages so the outer
// boundary can report which stage failed and with what code.
package apperr

import (
	"errors"
	"fmt"
)

// Type classifies an error by the stage that produced it
type Type string

const (
	TypeConfig      Type = "config_error"
	TypeGeneration  Type = "generation_error"
	TypeSynthesis   Type = "synthesis_error"
	TypeComposition Type = "composition_error"
	TypePublish     Type = "publish_error"
	TypeLedger      Type = "ledger_error"
	TypeRateLimit   Type = "rate_limit"
)

// Error is an error with a stage type and an optional wrapped cause
type Error struct {
	Type    Type
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error wrapping cause (cause may be nil)
func New(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// Newf creates a typed error with a formatted message and no cause
func Newf(t Type, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// TypeOf returns the type of err if it is (or wraps) an *Error, else ""
func TypeOf(err error) Type {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ""
}

// Is reports whether err is (or wraps) an *Error of type t
func Is(err error, t Type) bool {
	return TypeOf(err) == t
}
