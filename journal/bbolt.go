package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// BboltJournal stores entries in a bbolt database file, so a journal
// written by one process can be inspected by another.
type BboltJournal struct {
	db     *bbolt.DB
	mu     sync.RWMutex
	closed bool
}

// bboltEntry is the serialized form of Entry.
type bboltEntry struct {
	ID      string              `json:"id"`
	Time    int64               `json:"time"` // Unix nanoseconds
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Header  map[string][]string `json:"header,omitempty"`
	Matched bool                `json:"matched"`
	StubID  string              `json:"stub_id,omitempty"`
}

// NewBboltJournal opens (or creates) a journal database at path.
func NewBboltJournal(path string) (*BboltJournal, error) {
	// Create parent directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries bucket: %w", err)
	}

	return &BboltJournal{db: db}, nil
}

func (j *BboltJournal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	be := bboltEntry{
		ID:      e.ID.String(),
		Time:    e.Time.UnixNano(),
		Method:  e.Method,
		URL:     e.URL,
		Header:  e.Header,
		Matched: e.Matched,
	}
	if e.StubID != uuid.Nil {
		be.StubID = e.StubID.String()
	}

	data, err := json.Marshal(be)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(entriesBucket)

		// Keys are big-endian sequence numbers so cursor order is
		// insertion order.
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		return b.Put(key, data)
	})
}

func (j *BboltJournal) Entries() ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, data []byte) error {
			var be bboltEntry
			if err := json.Unmarshal(data, &be); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}

			e, err := be.entry()
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *BboltJournal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(entriesBucket)
		return err
	})
}

func (j *BboltJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

func (be bboltEntry) entry() (Entry, error) {
	id, err := uuid.Parse(be.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to parse entry id: %w", err)
	}

	e := Entry{
		ID:      id,
		Time:    time.Unix(0, be.Time),
		Method:  be.Method,
		URL:     be.URL,
		Matched: be.Matched,
	}
	if be.Header != nil {
		e.Header = http.Header(be.Header)
	}
	if be.StubID != "" {
		e.StubID, err = uuid.Parse(be.StubID)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to parse stub id: %w", err)
		}
	}
	return e, nil
}

// Interface guards
var (
	_ Journal = (*BboltJournal)(nil)
	_ Journal = (*MemoryJournal)(nil)
)
