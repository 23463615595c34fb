package sink

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSinkTimeout means a sink did not finish within its timeout.
	ErrSinkTimeout = errors.New("sink timed out")

	// ErrNotConfigured means an enabled sink has no usable connection.
	ErrNotConfigured = errors.New("sink not configured")

	// ErrParentEcho means a sink returned its parent id as the new id.
	ErrParentEcho = errors.New("sink returned parent id as new id")

	// ErrEmptyID means a sink reported success without an id.
	ErrEmptyID = errors.New("sink returned empty id")
)

// Error is a failure local to one sink.
type Error struct {
	Sink string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sink %s (%s): %v", e.Sink, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DispatchError is returned when every attempted sink failed and no id was
// produced.
type DispatchError struct {
	Errors []*Error
}

func (e *DispatchError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "all sinks failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the sink errors to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}
