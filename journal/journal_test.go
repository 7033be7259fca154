package journal

import (
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func newTestEntry(method, url string, matched bool) Entry {
	e := Entry{
		ID:      uuid.New(),
		Time:    time.Unix(0, time.Now().UnixNano()),
		Method:  method,
		URL:     url,
		Header:  http.Header{"Accept": []string{"application/json"}},
		Matched: matched,
	}
	if matched {
		e.StubID = uuid.New()
	}
	return e
}

// journals returns each implementation under test, opened fresh.
func journals(t *testing.T) map[string]Journal {
	t.Helper()

	bj, err := NewBboltJournal(filepath.Join(t.TempDir(), "journal", "requests.db"))
	if err != nil {
		t.Fatalf("failed to create bbolt journal: %v", err)
	}
	t.Cleanup(func() { bj.Close() })

	return map[string]Journal{
		"memory": NewMemoryJournal(),
		"bbolt":  bj,
	}
}

func TestJournal_AppendAndEntries(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			want := []Entry{
				newTestEntry("SUBSCRIBE", "https://us1.pusherplatform.io/users", true),
				newTestEntry(http.MethodGet, "https://example.com/missing", false),
				newTestEntry(http.MethodPost, "https://example.com/a", true),
			}

			for _, e := range want {
				if err := j.Append(e); err != nil {
					t.Fatalf("failed to append: %v", err)
				}
			}

			got, err := j.Entries()
			if err != nil {
				t.Fatalf("failed to read entries: %v", err)
			}

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJournal_Reset(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			if err := j.Append(newTestEntry(http.MethodGet, "https://example.com", true)); err != nil {
				t.Fatalf("failed to append: %v", err)
			}
			if err := j.Reset(); err != nil {
				t.Fatalf("failed to reset: %v", err)
			}

			got, err := j.Entries()
			if err != nil {
				t.Fatalf("failed to read entries: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no entries after reset, got %d", len(got))
			}

			// The journal is still usable after a reset.
			if err := j.Append(newTestEntry(http.MethodGet, "https://example.com", true)); err != nil {
				t.Fatalf("failed to append after reset: %v", err)
			}
		})
	}
}

func TestJournal_Closed(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			if err := j.Close(); err != nil {
				t.Fatalf("failed to close: %v", err)
			}
			if err := j.Close(); err != nil {
				t.Errorf("second close should succeed, got %v", err)
			}

			if err := j.Append(newTestEntry(http.MethodGet, "https://example.com", false)); !errors.Is(err, ErrClosed) {
				t.Errorf("expected ErrClosed from Append, got %v", err)
			}
			if _, err := j.Entries(); !errors.Is(err, ErrClosed) {
				t.Errorf("expected ErrClosed from Entries, got %v", err)
			}
		})
	}
}

func TestBboltJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")

	j, err := NewBboltJournal(path)
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	want := newTestEntry(http.MethodDelete, "https://example.com/x", true)
	if err := j.Append(want); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	j, err = NewBboltJournal(path)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	defer j.Close()

	got, err := j.Entries()
	if err != nil {
		t.Fatalf("failed to read entries: %v", err)
	}
	if diff := cmp.Diff([]Entry{want}, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestNewEntry(t *testing.T) {
	req, err := http.NewRequest("SUBSCRIBE", "https://example.com/users?x=1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Test", "1")

	e := NewEntry(req)
	req.Header.Set("X-Test", "2")

	if e.ID == uuid.Nil {
		t.Error("expected a non-nil ID")
	}
	if e.Method != "SUBSCRIBE" || e.URL != "https://example.com/users?x=1" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if got := e.Header.Get("X-Test"); got != "1" {
		t.Errorf("expected header copy, got %q", got)
	}
}
