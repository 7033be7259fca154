package mockingjaytest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hamchapman/mockingjay"
)

func TestRecorder(t *testing.T) {
	stream := mockingjay.MustStreamResponse(
		mockingjay.NewEvent([]byte("a"), 0),
		mockingjay.NewEvent([]byte("b"), 5*time.Millisecond),
	)

	rec := NewRecorder()
	mockingjay.Deliver(context.Background(), stream, rec)
	rec.WaitComplete(t, 5*time.Second)

	if diff := cmp.Diff([]string{"a", "b"}, rec.Strings()); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if rec.CompleteCount() != 1 {
		t.Errorf("got %d completions, want 1", rec.CompleteCount())
	}

	chunks := rec.Chunks()
	if chunks[1].At.Before(chunks[0].At) {
		t.Error("chunk timestamps out of order")
	}

	select {
	case <-rec.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestRecorder_CopiesChunks(t *testing.T) {
	rec := NewRecorder()
	data := []byte("abc")
	rec.OnChunk(data)
	data[0] = 'x'

	if got := rec.Strings()[0]; got != "abc" {
		t.Errorf("recorder observed caller mutation: %q", got)
	}
}

func TestRecorder_CompleteTwice(t *testing.T) {
	rec := NewRecorder()
	rec.OnComplete()
	rec.OnComplete()

	if rec.CompleteCount() != 2 {
		t.Errorf("got %d completions, want 2", rec.CompleteCount())
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestDrain(t *testing.T) {
	rec := NewRecorder()
	if err := Drain(bytes.NewReader([]byte("hello")), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"hello"}, rec.Strings()); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if rec.CompleteCount() != 1 {
		t.Errorf("got %d completions, want 1", rec.CompleteCount())
	}
}

func TestDrain_Error(t *testing.T) {
	boom := errors.New("boom")

	rec := NewRecorder()
	if err := Drain(errReader{boom}, rec); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if rec.CompleteCount() != 0 {
		t.Error("OnComplete must not be called after a read error")
	}
}

func TestNewRegistryCleanup(t *testing.T) {
	var reg *mockingjay.Registry

	t.Run("inner", func(t *testing.T) {
		reg = NewRegistry(t)
		reg.Add(mockingjay.Everything, mockingjay.HTTP(http.StatusOK, nil, mockingjay.NoContent()))

		client := NewClient(t, reg)
		resp, err := client.Get("https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})

	if reg.Len() != 0 {
		t.Errorf("got %d stubs after the test ended, want 0", reg.Len())
	}
}
