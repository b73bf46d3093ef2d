// Package errors provides structured error handling for FarePipe. Every
// failure that crosses a stage boundary is wrapped into an Error carrying
// its category, the underlying cause, and the source location where the
// failure was detected. The enriched message is also written to a shared
// diagnostic sink, so a top-level failure always reaches the stage's log
// file and console before the process exits.
//
// # Basic Usage
//
//	rows, err := db.QueryContext(ctx, query)
//	if err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeSnapshot, "snapshot query failed").
//	        WithDetail("query", query)
//	}
//
// Enrichment is additive: the cause is preserved untouched and remains
// reachable through errors.Is / errors.As. Error values are immutable
// after construction apart from WithDetail, which must happen before the
// error is shared.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// ErrorType categorizes a failure by the stage or concern that produced it.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents malformed or missing configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAcquisition represents archive fetch or post-condition failures
	ErrorTypeAcquisition ErrorType = "acquisition"
	// ErrorTypeArchiveNotFound represents a missing or empty archive at extraction time
	ErrorTypeArchiveNotFound ErrorType = "archive_not_found"
	// ErrorTypeIngestion represents malformed source files or failed table loads
	ErrorTypeIngestion ErrorType = "ingestion"
	// ErrorTypeSnapshot represents snapshot query or write failures
	ErrorTypeSnapshot ErrorType = "snapshot"
)

// Frame identifies the source location where a failure was enriched.
type Frame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error is the envelope produced at the point of failure. It carries the
// full original cause plus enrichment and is never mutated after it
// leaves the producing stage.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Origin  Frame
	Details map[string]interface{}
}

// Error returns the enriched message: category, message, cause, and the
// origin location. This is the externally observed contract; callers
// surface this string, not the raw cause alone.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v (at %s:%d)", e.Type, e.Message, e.Cause, e.Origin.File, e.Origin.Line)
	}
	return fmt.Sprintf("%s: %s (at %s:%d)", e.Type, e.Message, e.Origin.File, e.Origin.Line)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As
// over the chain. Enrichment never suppresses or alters the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Chainable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an enriched error with no underlying cause, capturing the
// caller's location and reporting to the diagnostic sink.
func New(errType ErrorType, message string) *Error {
	e := &Error{
		Type:    errType,
		Message: message,
		Origin:  captureOrigin(2),
	}
	report(e)
	return e
}

// Wrap enriches an existing error, capturing the caller's location at the
// moment of invocation and writing the enriched message to the diagnostic
// sink before returning the envelope. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	e := &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Origin:  captureOrigin(2),
	}
	report(e)
	return e
}

// IsType reports whether err (or anything in its chain) is an Error of
// the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

var (
	diagMu     sync.RWMutex
	diagnostic *zap.Logger
)

// SetDiagnostic installs the shared diagnostic sink. The composition root
// points this at the active stage logger so every enrichment reaches the
// durable and console sinks. A nil logger disables reporting.
func SetDiagnostic(l *zap.Logger) {
	diagMu.Lock()
	diagnostic = l
	diagMu.Unlock()
}

func report(e *Error) {
	diagMu.RLock()
	l := diagnostic
	diagMu.RUnlock()
	if l == nil {
		return
	}
	l.Error(e.Error(), zap.String("error_type", string(e.Type)))
}

func captureOrigin(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Frame{}
	}
	frame := Frame{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		frame.Function = fn.Name()
	}
	return frame
}
