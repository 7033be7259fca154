package mockingjay

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoStub indicates that no registered stub matched the request.
	// Check with errors.Is(err, mockingjay.ErrNoStub).
	ErrNoStub = errors.New("mockingjay: no stub matched the request")

	// ErrNilPayload indicates an event was constructed without a payload.
	// Use an empty slice for an intentionally empty chunk.
	ErrNilPayload = errors.New("mockingjay: event payload must not be nil")
)

// StubError wraps errors returned from RoundTrip with the request that
// produced them.
type StubError struct {
	// Method is the HTTP method of the intercepted request.
	Method string

	// URL is the request URL.
	URL string

	// Err is the underlying error. It is ErrNoStub for unmatched requests,
	// or the error supplied to Failure for stubbed failures.
	Err error
}

// Error implements the error interface.
func (e *StubError) Error() string {
	return fmt.Sprintf("mockingjay: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StubError) Unwrap() error {
	return e.Err
}

// EventError reports which event of a stream failed validation.
type EventError struct {
	// Index is the position of the offending event in the input sequence.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	return fmt.Sprintf("mockingjay: event %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EventError) Unwrap() error {
	return e.Err
}
