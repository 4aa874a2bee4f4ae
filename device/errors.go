package device

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrorCode classifies every failure reported across the device boundary.
type ErrorCode uint32

// Supported error codes.
const (
	NoError ErrorCode = iota
	UnknownError
	InvalidArgument
	InvalidOperation
	OutOfMemory
	UnsupportedCPU
	Cancelled
)

// Error is the concrete error type returned by all kernel operations.
type Error struct {
	Code ErrorCode
	Msg  string
}

// Errorf creates a new Error with the given code.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrorName(e.Code), e.Msg)
}

// Is matches errors with the same code so sentinels can be compared with
// errors.Is regardless of their message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

// Code-only sentinels for use with errors.Is.
var (
	ErrInvalidArgument  = &Error{Code: InvalidArgument}
	ErrInvalidOperation = &Error{Code: InvalidOperation}
	ErrOutOfMemory      = &Error{Code: OutOfMemory}
	ErrUnknown          = &Error{Code: UnknownError}
	ErrCancelled        = &Error{Code: Cancelled}
)

// CodeOf classifies err. Errors that did not originate from this package
// (after unwrapping) are reported as UnknownError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}

// Wrap annotates err with a message while keeping its code.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Return a textual description of an error code.
func ErrorName(code ErrorCode) string {
	switch code {
	case NoError:
		return "NO_ERROR"
	case UnknownError:
		return "UNKNOWN_ERROR"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InvalidOperation:
		return "INVALID_OPERATION"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case UnsupportedCPU:
		return "UNSUPPORTED_CPU"
	case Cancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("unknown error code %d", code)
	}
}

// The process wide error slot. It receives every reported error, including
// the ones raised before a device handle exists.
var processError atomic.Uint32

// LastError returns and clears the most recent error reported by any device
// or by a call that had no device available.
func LastError() ErrorCode {
	return ErrorCode(processError.Swap(uint32(NoError)))
}

// ReportNoDevice records err in the process slot only. It is used by entry
// points that fail before a device can be resolved (e.g. a nil handle).
func ReportNoDevice(err error) error {
	if err != nil {
		processError.Store(uint32(CodeOf(err)))
	}
	return err
}
