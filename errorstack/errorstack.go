// Package errorstack implements the engine's exception-free error
// reporting: a rich error value carrying a stable numeric code, an
// optional message, an optional cause, and the chain of source
// locations the error passed through on its way out of the engine.
package errorstack

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/multierr"
)

// Code is a stable, integer-valued error code (spec.md §6).
type Code uint16

const (
	CodeOK Code = iota
	CodeStrAlreadyExists
	CodeNotImplemented
	CodeOutOfMemory
	CodeNoFreePages
	CodeReadSetOverflow
	CodeWriteSetOverflow
	CodeLogBufferFull
	CodeSnapshotReadFailed
	CodeBadAlignment
	CodeOutOfPages
	CodeConcurrentInstallLost
)

var codeNames = map[Code]string{
	CodeOK:                    "OK",
	CodeStrAlreadyExists:      "STR_ALREADY_EXISTS",
	CodeNotImplemented:        "NOTIMPLEMENTED",
	CodeOutOfMemory:           "OUT_OF_MEMORY",
	CodeNoFreePages:           "NO_FREE_PAGES",
	CodeReadSetOverflow:       "READ_SET_OVERFLOW",
	CodeWriteSetOverflow:      "WRITE_SET_OVERFLOW",
	CodeLogBufferFull:         "LOG_BUFFER_FULL",
	CodeSnapshotReadFailed:    "SNAPSHOT_READ_FAILED",
	CodeBadAlignment:          "BAD_ALIGNMENT",
	CodeOutOfPages:            "OUT_OF_PAGES",
	CodeConcurrentInstallLost: "CONCURRENT_INSTALL_LOST",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", uint16(c))
}

// Frame is one source-location entry in an Error's propagation chain.
type Frame struct {
	File     string
	Line     int
	Function string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d (%s)", f.File, f.Line, f.Function)
}

// Error is the engine's rich error value: a code, an optional message,
// an optional wrapped cause, and the source-location chain it has
// passed through since it was first created.
type Error struct {
	Code    Code
	Message string
	Cause   error
	frames  []Frame
}

// captureFrame records the caller `skip` levels above this function.
func captureFrame(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Frame{File: "unknown", Line: 0, Function: "unknown"}
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	return Frame{File: file, Line: line, Function: name}
}

// New creates an Error for code with an explicit message, capturing the
// caller's source location as the first frame of the chain.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, frames: []Frame{captureFrame(2)}}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), frames: []Frame{captureFrame(2)}}
}

// Stack creates an Error carrying only a code, using the code's stable
// name as the message. This is the equivalent of the ERROR_STACK(code)
// macro in the original implementation.
func Stack(code Code) *Error {
	return &Error{Code: code, Message: code.String(), frames: []Frame{captureFrame(2)}}
}

// Wrap turns any error into an *Error, preserving its code (if it
// already was one) or defaulting to CodeNotImplemented as the generic
// "unclassified failure from a collaborator" code, and pushes the
// caller's location onto the chain. A nil err yields a nil Error.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.frames = append(e.frames, captureFrame(2))
		if message != "" {
			e.Message = message + ": " + e.Message
		}
		return e
	}
	return &Error{
		Code:    CodeNotImplemented,
		Message: message,
		Cause:   err,
		frames:  []Frame{captureFrame(2)},
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %s)", e.Cause.Error())
	}
	for _, f := range e.frames {
		fmt.Fprintf(&b, "\n  at %s", f.String())
	}
	return b.String()
}

// Unwrap exposes Cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Frames returns the captured source-location chain, oldest first.
func (e *Error) Frames() []Frame {
	return e.frames
}

// IsError reports whether err represents a real error (nil is not).
// Equivalent to the original's ErrorStack::is_error().
func IsError(err error) bool {
	return err != nil
}

// CodeOf extracts the Code from err, or CodeOK if err is nil, or
// CodeNotImplemented if err is a plain (non-*Error) error.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeNotImplemented
}

// Batch aggregates errors from a sequence of fallible sub-operations
// (e.g. uninitializing several components) without aborting on the
// first failure, per spec.md §7 ("uninitialize proceeds for every
// successfully-initialized component regardless of earlier failures").
type Batch struct {
	errs []error
}

// Add records err if it is non-nil; a nil err is a no-op.
func (b *Batch) Add(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

// Empty reports whether no error has been added yet.
func (b *Batch) Empty() bool {
	return len(b.errs) == 0
}

// Summarize collapses the batch into a single error (nil if empty)
// using multierr, the aggregation library already pulled in by zap.
func (b *Batch) Summarize() error {
	if len(b.errs) == 0 {
		return nil
	}
	return multierr.Combine(b.errs...)
}
