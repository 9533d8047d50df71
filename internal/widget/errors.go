package widget

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned while a backend request is still in flight.
	ErrBusy = errors.New("widget: a message is already being answered")
	// ErrClosed is returned for user input while the widget is closed or shut down.
	ErrClosed = errors.New("widget: widget is closed")
	// ErrUnknownControl is returned by Dispatch for an unregistered control kind.
	ErrUnknownControl = errors.New("widget: unknown control")
	// ErrIncompletePhone marks a phone submit without a canonical number.
	ErrIncompletePhone = errors.New("widget: phone number is incomplete")
	// ErrNotFound is returned when an event addresses a turn or control that is gone.
	ErrNotFound = errors.New("widget: control not found")
)

// ValidationError reports user input rejected before any network call.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("widget: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
