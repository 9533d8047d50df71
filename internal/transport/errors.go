package transport

import (
	"errors"
	"fmt"
)

// TransportError is returned for network failures, non-success statuses and
// undecodable replies. Callers recover from it; it is never retried here.
type TransportError struct {
	Op         string // "request", "status", "read", "decode"
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
