package fetch

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when a source's circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindNetwork covers connection failures and other transport errors.
	KindNetwork ErrorKind = "network"

	// KindTimeout covers deadline-exceeded and cancelled requests.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus covers non-2xx responses. 4xx responses are treated as
	// contract errors and never retried; 5xx responses are retried.
	KindHTTPStatus ErrorKind = "http_status"

	// KindMalformed covers responses whose body could not be decoded.
	KindMalformed ErrorKind = "malformed"
)

// Error is a typed fetch failure for one upstream call.
type Error struct {
	Source     string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: status %d", e.Source, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Source, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// AsError unwraps err into a fetch Error, nil if it is not one.
func AsError(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}
