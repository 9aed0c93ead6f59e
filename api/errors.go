// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-rtt.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the harness.
var (
	ErrTransportClosed    = fmt.Errorf("transport is closed")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrResourceExhausted  = fmt.Errorf("resource exhausted")
	ErrOperationTimeout   = fmt.Errorf("operation timeout")
	ErrNotSupported       = fmt.Errorf("operation not supported")
	ErrAlreadyExists      = fmt.Errorf("resource already exists")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrHelp               = fmt.Errorf("help requested")
	ErrRequirementsFailed = fmt.Errorf("latency requirements not met")
)

// ErrorCode represents specific error conditions in the harness.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodeInternal marks errors that carry no code of their own.
	ErrCodeInternal
	// ErrCodeConfiguration marks invalid command line or config values.
	ErrCodeConfiguration
	// ErrCodeTransport marks any failed create/publish/wait/take.
	ErrCodeTransport
	// ErrCodeAllocation marks a timing history that could not grow.
	ErrCodeAllocation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConfiguration:
		return "configuration error"
	case ErrCodeTransport:
		return "transport error"
	case ErrCodeAllocation:
		return "allocation exhausted"
	default:
		return "internal error"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
