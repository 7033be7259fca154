package mockingjay

import (
	"time"
)

// Event is one discrete chunk of a streamed response plus the delay to wait
// before delivering it.
//
// Events are values; the payload is copied when the event is added to a
// StreamResponse, so later changes to the caller's slice are not observed.
type Event struct {
	// Data is the raw payload delivered to the consumer. It is never parsed.
	Data []byte

	// Delay is how long to wait before delivering this event, measured from
	// the delivery of the previous event (or from the start of the dispatch
	// for the first event). Zero means deliver as soon as possible.
	Delay time.Duration
}

// NewEvent returns an event with the given payload and delay.
func NewEvent(data []byte, delay time.Duration) Event {
	return Event{Data: data, Delay: delay}
}

// StreamResponse is an ordered, immutable sequence of events.
// The sequence order is the delivery order.
//
// Build one with NewStreamResponse:
//
//	stream, err := mockingjay.NewStreamResponse(
//	    mockingjay.NewEvent(keepAlive, 0),
//	    mockingjay.NewEvent(data, 500*time.Millisecond),
//	)
type StreamResponse struct {
	events []Event
}

// NewStreamResponse builds a stream from events in delivery order.
//
// It returns an *EventError wrapping ErrNilPayload if any event has a nil
// payload. An empty list of events is valid and completes with no chunks.
func NewStreamResponse(events ...Event) (*StreamResponse, error) {
	copied := make([]Event, len(events))
	for i, e := range events {
		if e.Data == nil {
			return nil, &EventError{Index: i, Err: ErrNilPayload}
		}
		if e.Delay < 0 {
			e.Delay = 0
		}
		copied[i] = Event{
			Data:  append([]byte{}, e.Data...),
			Delay: e.Delay,
		}
	}
	return &StreamResponse{events: copied}, nil
}

// MustStreamResponse is like NewStreamResponse but panics on error.
// It is intended for stub tables declared at package level or in tests.
func MustStreamResponse(events ...Event) *StreamResponse {
	s, err := NewStreamResponse(events...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of events in the stream.
func (s *StreamResponse) Len() int {
	if s == nil {
		return 0
	}
	return len(s.events)
}

// Event returns a copy of the i'th event.
func (s *StreamResponse) Event(i int) Event {
	e := s.events[i]
	return Event{Data: append([]byte{}, e.Data...), Delay: e.Delay}
}

// TotalDelay returns the sum of all event delays, which is the minimum time
// a full delivery takes.
func (s *StreamResponse) TotalDelay() time.Duration {
	var total time.Duration
	for _, e := range s.events {
		total += e.Delay
	}
	return total
}
