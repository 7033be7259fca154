package mockingjay

import (
	"context"
	"iter"
)

// All returns an iterator over the stream's events in delivery order.
// Each yielded event is a copy.
//
//	for i, e := range stream.All() {
//	    fmt.Println(i, e.Delay, string(e.Data))
//	}
func (s *StreamResponse) All() iter.Seq2[int, Event] {
	return func(yield func(int, Event) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(i, s.Event(i)) {
				return
			}
		}
	}
}

// Chunks delivers stream and returns the chunks as a pull-style iterator,
// honoring each event's delay. Use with range syntax:
//
//	for chunk := range mockingjay.Chunks(ctx, stream) {
//	    process(chunk)
//	}
//
// Breaking out of the loop, or cancelling ctx, cancels the delivery. The loop
// ends without an extra value when the stream completes.
func Chunks(ctx context.Context, stream *StreamResponse) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan []byte)

		h := Deliver(ctx, stream, ConsumerFuncs{
			Chunk: func(data []byte) {
				select {
				case ch <- data:
				case <-ctx.Done():
				}
			},
			Complete: func() {
				close(ch)
			},
		})

		for {
			select {
			case data, ok := <-ch:
				if !ok {
					return
				}
				if !yield(data) {
					return
				}
			case <-h.Done():
				return
			}
		}
	}
}
