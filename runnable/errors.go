package runnable

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

const (
	doneMultipleMessage   = "done() called multiple times"
	doneMultipleSuffix    = " (and Mocha's done() called multiple times)"
	falsyRejectionMessage = "Promise rejected with no or falsy reason"
)

// PendingError is the control signal raised by Skip. It means "this run is
// skipped" and is never reported as a failure: the invocation adapter converts
// it into a skip outcome before it can reach the completion guard.
type PendingError struct {
	Message string
}

func (e *PendingError) Error() string {
	return e.Message
}

// NewPendingError creates a new PendingError
func NewPendingError(message string) *PendingError {
	return &PendingError{Message: message}
}

// IsPendingError checks if the error is or wraps a PendingError
func IsPendingError(err error) bool {
	var pendingErr *PendingError
	return err != nil && errors.As(err, &pendingErr)
}

// TimeoutError is synthesized by the timeout controller when an execution
// exceeds its configured limit.
type TimeoutError struct {
	Limit time.Duration
	File  string // source location of the runnable, when known
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("Timeout of %dms exceeded. For async tests and hooks, ensure \"done()\" is called; if returning a Promise, ensure it resolves.", e.Limit.Milliseconds())
	if e.File != "" {
		msg += fmt.Sprintf(" (%s)", e.File)
	}
	return msg
}

// IsTimeoutError checks if the error is or wraps a TimeoutError
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return err != nil && errors.As(err, &timeoutErr)
}

// MultipleCompletionsError is surfaced on the error channel when the
// completion guard intercepts an extra completion. First holds the error the
// run already completed with, if any.
type MultipleCompletionsError struct {
	First error
}

func (e *MultipleCompletionsError) Error() string {
	if e.First != nil {
		return e.First.Error() + doneMultipleSuffix
	}
	return doneMultipleMessage
}

// Unwrap implements the errors.Unwrap interface
func (e *MultipleCompletionsError) Unwrap() error {
	return e.First
}

// IsMultipleCompletionsError checks if the error is or wraps a MultipleCompletionsError
func IsMultipleCompletionsError(err error) bool {
	var multipleErr *MultipleCompletionsError
	return err != nil && errors.As(err, &multipleErr)
}

// NonErrorCompletionError reports an asynchronous completion callback that was
// invoked with a truthy value that is not an error. Composite values are
// JSON-serialized; anything else is coerced to a string.
type NonErrorCompletionError struct {
	Value any
}

func (e *NonErrorCompletionError) Error() string {
	return "done() invoked with non-Error: " + serializeNonError(e.Value)
}

// IsNonErrorCompletionError checks if the error is or wraps a NonErrorCompletionError
func IsNonErrorCompletionError(err error) bool {
	var nonErr *NonErrorCompletionError
	return err != nil && errors.As(err, &nonErr)
}

// RejectionError normalizes a promise rejection reason that is neither an
// error nor absent.
type RejectionError struct {
	Reason any
}

func (e *RejectionError) Error() string {
	if isFalsy(e.Reason) {
		return falsyRejectionMessage
	}
	return fmt.Sprintf("%v", e.Reason)
}

// IsRejectionError checks if the error is or wraps a RejectionError
func IsRejectionError(err error) bool {
	var rejectionErr *RejectionError
	return err != nil && errors.As(err, &rejectionErr)
}

// normalizeCompletion maps a completion callback argument to an outcome error:
// falsy means success, errors are kept verbatim, any other truthy value is a
// NonErrorCompletionError.
func normalizeCompletion(failure any) error {
	if isFalsy(failure) {
		return nil
	}
	if err, ok := failure.(error); ok {
		return err
	}
	return &NonErrorCompletionError{Value: failure}
}

// normalizeRejection maps a promise rejection reason to an outcome error.
func normalizeRejection(reason any) error {
	if isFalsy(reason) {
		return &RejectionError{}
	}
	if err, ok := reason.(error); ok {
		return err
	}
	return &RejectionError{Reason: reason}
}

// toError converts a recovered panic value to an error, keeping errors verbatim.
func toError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

func serializeNonError(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		if data, err := json.Marshal(rv.Interface()); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

// isFalsy reports whether a dynamic value counts as "no failure": nil, false,
// empty string, zero numbers and nil containers.
func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || f != f
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
