// Package journal records the requests intercepted by a mockingjay Transport
// so tests can assert on what was sent.
package journal

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry describes one intercepted request.
type Entry struct {
	// ID uniquely identifies the entry.
	ID uuid.UUID

	// Time is when the request was intercepted.
	Time time.Time

	// Method and URL identify the request.
	Method string
	URL    string

	// Header is a copy of the request headers.
	Header http.Header

	// Matched is true if a stub answered the request.
	Matched bool

	// StubID is the ID of the matching stub, if any.
	StubID uuid.UUID
}

// NewEntry returns an entry for req with a fresh ID and the current time.
func NewEntry(req *http.Request) Entry {
	e := Entry{
		ID:     uuid.New(),
		Time:   time.Now(),
		Method: req.Method,
		Header: req.Header.Clone(),
	}
	if req.URL != nil {
		e.URL = req.URL.String()
	}
	return e
}

// Journal is the interface for request journals.
type Journal interface {
	// Append records an entry at the end of the journal.
	Append(e Entry) error

	// Entries returns all recorded entries in the order they were appended.
	Entries() ([]Entry, error)

	// Reset removes all entries.
	Reset() error

	// Close releases any resources held by the journal.
	Close() error
}
