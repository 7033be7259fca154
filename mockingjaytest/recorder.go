package mockingjaytest

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hamchapman/mockingjay"
)

// NewRegistry returns a registry that is emptied when t ends.
func NewRegistry(t testing.TB, opts ...mockingjay.RegistryOption) *mockingjay.Registry {
	t.Helper()
	reg := mockingjay.NewRegistry(opts...)
	t.Cleanup(reg.RemoveAll)
	return reg
}

// NewClient returns an *http.Client whose requests are answered by reg.
// Idle connections are released when t ends.
func NewClient(t testing.TB, reg *mockingjay.Registry, opts ...mockingjay.Option) *http.Client {
	t.Helper()
	client := mockingjay.NewClient(reg, opts...)
	t.Cleanup(client.CloseIdleConnections)
	return client
}

// Chunk is one payload observed by a Recorder.
type Chunk struct {
	Data []byte
	At   time.Time
}

// Recorder is a mockingjay.Consumer that records chunks and completion.
// It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	chunks    []Chunk
	completes int
	done      chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(chan struct{})}
}

// OnChunk implements mockingjay.Consumer.
func (r *Recorder) OnChunk(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, Chunk{
		Data: append([]byte{}, data...),
		At:   time.Now(),
	})
}

// OnComplete implements mockingjay.Consumer.
func (r *Recorder) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
	if r.completes == 1 {
		close(r.done)
	}
}

// Chunks returns the chunks recorded so far.
func (r *Recorder) Chunks() []Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Chunk{}, r.chunks...)
}

// Payloads returns the data of the chunks recorded so far.
func (r *Recorder) Payloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	payloads := make([][]byte, len(r.chunks))
	for i, c := range r.chunks {
		payloads[i] = c.Data
	}
	return payloads
}

// Strings returns the payloads as strings, for readable test failures.
func (r *Recorder) Strings() []string {
	var s []string
	for _, p := range r.Payloads() {
		s = append(s, string(p))
	}
	return s
}

// CompleteCount returns how many times OnComplete was called.
func (r *Recorder) CompleteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}

// Done returns a channel closed on the first call to OnComplete.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// WaitComplete fails the test if OnComplete is not called within timeout.
func (r *Recorder) WaitComplete(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("stream did not complete within %s (received %d chunks)", timeout, len(r.Chunks()))
	}
}

// maxChunkSize bounds a single Read in Drain. Streamed bodies hand each
// chunk to exactly one Read as long as it fits.
const maxChunkSize = 1 << 20

// Drain reads body until EOF, passing each read to c.OnChunk, then calls
// c.OnComplete. If reading fails, OnComplete is not called and the error is
// returned.
func Drain(body io.Reader, c mockingjay.Consumer) error {
	buf := make([]byte, maxChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			c.OnChunk(append([]byte{}, buf[:n]...))
		}
		if errors.Is(err, io.EOF) {
			c.OnComplete()
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Ensure Recorder implements mockingjay.Consumer
var _ mockingjay.Consumer = (*Recorder)(nil)
