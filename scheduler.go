package mockingjay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Consumer receives the chunks of a streamed response.
//
// OnChunk is called zero or more times, in stream order, followed by at most
// one call to OnComplete. Calls are made from the delivery goroutine, never
// from the goroutine that started the delivery, and never concurrently with
// each other.
type Consumer interface {
	// OnChunk is called with the unmodified payload of the next event.
	OnChunk(data []byte)

	// OnComplete is called once after the final OnChunk has returned.
	// It is not called if the delivery is cancelled.
	OnComplete()
}

// ConsumerFuncs adapts plain functions to the Consumer interface.
// Nil functions are ignored.
type ConsumerFuncs struct {
	Chunk    func(data []byte)
	Complete func()
}

// OnChunk calls f.Chunk.
func (f ConsumerFuncs) OnChunk(data []byte) {
	if f.Chunk != nil {
		f.Chunk(data)
	}
}

// OnComplete calls f.Complete.
func (f ConsumerFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// Scheduler delivers the events of a StreamResponse to a Consumer.
//
// A Scheduler holds no per-delivery state; each call to Deliver is
// independent and may run concurrently with others. The zero value is ready
// to use.
type Scheduler struct {
	// Logger receives debug output about delivery progress.
	// If nil, logging is disabled.
	Logger *zap.Logger
}

// Deliver starts delivering stream to c using a zero-value Scheduler.
func Deliver(ctx context.Context, stream *StreamResponse, c Consumer) *DeliveryHandle {
	var s Scheduler
	return s.Deliver(ctx, stream, c)
}

// Deliver starts delivering stream to c and returns immediately.
//
// Each event is delivered after waiting its delay. OnComplete follows the
// last chunk. Cancelling ctx, or calling Cancel on the returned handle, stops
// the delivery at the next suspension point; no further chunks are delivered
// and OnComplete is not called.
//
// A nil stream is treated as an empty stream.
func (s *Scheduler) Deliver(ctx context.Context, stream *StreamResponse, c Consumer) *DeliveryHandle {
	ctx, cancel := context.WithCancel(ctx)

	h := &DeliveryHandle{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		total:  stream.Len(),
	}

	go s.run(h, stream, c)

	return h
}

// run is the delivery loop. It owns h until h.done is closed.
func (s *Scheduler) run(h *DeliveryHandle, stream *StreamResponse, c Consumer) {
	defer close(h.done)
	defer h.cancel()

	logger := s.logger().With(zap.Int("events", h.total))
	logger.Debug("delivery started")

	for i := 0; i < h.total; i++ {
		e := stream.events[i]

		if !h.sleep(e.Delay) {
			logger.Debug("delivery cancelled",
				zap.Int("delivered", i),
				zap.Error(h.ctx.Err()))
			h.finish(h.ctx.Err(), false)
			return
		}

		// Hand out a copy so a consumer cannot alter the stream for the
		// next dispatch.
		c.OnChunk(append([]byte{}, e.Data...))
		h.delivered.Add(1)

		logger.Debug("chunk delivered",
			zap.Int("index", i),
			zap.Int("bytes", len(e.Data)),
			zap.Duration("delay", e.Delay))
	}

	if err := h.ctx.Err(); err != nil {
		logger.Debug("delivery cancelled before completion", zap.Error(err))
		h.finish(err, false)
		return
	}

	c.OnComplete()
	h.finish(nil, true)
	logger.Debug("delivery complete")
}

func (s *Scheduler) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// DeliveryHandle tracks one in-progress delivery of a StreamResponse.
// It is created by Deliver and is not reusable.
type DeliveryHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	total  int

	delivered atomic.Int64

	mu        sync.Mutex
	err       error
	completed bool
}

// Cancel stops the delivery. Chunks not yet delivered are dropped and
// OnComplete is not called. Cancel is safe to call more than once, and from
// within a Consumer callback.
func (h *DeliveryHandle) Cancel() {
	h.cancel()
}

// Done returns a channel that is closed when the delivery goroutine exits,
// either after OnComplete has returned or after cancellation was observed.
func (h *DeliveryHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the delivery finishes or ctx is done. It returns the
// delivery's error (nil on completion), or ctx.Err() if ctx ends first.
func (h *DeliveryHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of events in the stream being delivered.
func (h *DeliveryHandle) Len() int {
	return h.total
}

// Delivered returns the number of chunks whose OnChunk call has returned.
func (h *DeliveryHandle) Delivered() int {
	return int(h.delivered.Load())
}

// Completed returns true if OnComplete has been called.
func (h *DeliveryHandle) Completed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

// Err returns nil while the delivery is running or after it completed, and
// the cancellation cause (context.Canceled or the context's error) once a
// cancelled delivery has stopped.
func (h *DeliveryHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// sleep waits for d, returning false if the delivery was cancelled first.
// A zero delay still observes cancellation.
func (h *DeliveryHandle) sleep(d time.Duration) bool {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-h.ctx.Done():
			return false
		case <-t.C:
		}
	}

	// The timer and the cancellation may become ready together; cancellation
	// wins so a cancelled delivery never emits another chunk.
	return h.ctx.Err() == nil
}

func (h *DeliveryHandle) finish(err error, completed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	h.completed = completed
}
