package journal

import (
	"slices"
	"sync"
)

// MemoryJournal is an in-memory implementation of Journal.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemoryJournal creates a new in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	e.Header = e.Header.Clone()
	j.entries = append(j.entries, e)
	return nil
}

func (j *MemoryJournal) Entries() ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	return slices.Clone(j.entries), nil
}

func (j *MemoryJournal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	j.entries = nil
	return nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
