package mockingjay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hamchapman/mockingjay/internal/sse"
)

// Header names and content types set by the response builders.
const (
	headerContentType = "Content-Type"

	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
)

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyContent
	bodyStream
)

// Body describes how a stubbed response body is produced.
// Construct one with NoContent, Content, StreamContent, Subscription or
// SSESubscription.
type Body struct {
	kind        bodyKind
	data        []byte
	stream      *StreamResponse
	contentType string
}

// NoContent returns an empty body.
func NoContent() Body {
	return Body{kind: bodyEmpty}
}

// Content returns a body that is delivered in one piece.
func Content(data []byte) Body {
	return Body{kind: bodyContent, data: append([]byte{}, data...)}
}

// StreamContent returns a body that is split into chunks of chunkSize bytes
// and streamed with no delay between chunks. A chunkSize <= 0 streams the
// whole payload as a single chunk.
func StreamContent(data []byte, chunkSize int) Body {
	if chunkSize <= 0 || chunkSize > len(data) {
		chunkSize = len(data)
	}

	var events []Event
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		events = append(events, Event{Data: data[:n]})
		data = data[n:]
	}

	// Every chunk is non-nil, so construction cannot fail.
	return Body{kind: bodyStream, stream: MustStreamResponse(events...)}
}

// Subscription returns a body that delivers the events of stream one at a
// time, waiting each event's delay, and ends after the last event.
// A nil stream behaves like an empty stream.
func Subscription(stream *StreamResponse) Body {
	return Body{kind: bodyStream, stream: stream}
}

// SSESubscription is like Subscription, but frames each payload as a
// Server-Sent Event named eventName. An empty eventName omits the event
// field, which clients treat as "message". The response content type
// defaults to text/event-stream.
func SSESubscription(stream *StreamResponse, eventName string) Body {
	events := make([]Event, stream.Len())
	for i, e := range stream.All() {
		events[i] = Event{
			Data:  sse.Frame(eventName, e.Data),
			Delay: e.Delay,
		}
	}

	return Body{
		kind:        bodyStream,
		stream:      MustStreamResponse(events...),
		contentType: contentTypeEventStream,
	}
}

// IsStream returns true if the body is delivered through the scheduler.
func (b Body) IsStream() bool {
	return b.kind == bodyStream
}

// Stream returns the events delivered for a streamed body, or nil for
// one-shot bodies.
func (b Body) Stream() *StreamResponse {
	return b.stream
}

// Response is the outcome of a stub: either a successful HTTP response with
// a body, or a failure returned as the RoundTrip error.
type Response struct {
	// StatusCode is the HTTP status code of a successful response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body describes the response body.
	Body Body

	// Err, if non-nil, makes the request fail with this error instead of
	// producing a response.
	Err error
}

// Success returns a successful response with the given status and body.
func Success(status int, body Body) Response {
	h := make(http.Header)
	if body.contentType != "" {
		h.Set(headerContentType, body.contentType)
	}
	return Response{
		StatusCode: status,
		Header:     h,
		Body:       body,
	}
}

// Failure returns a response that makes the request fail with err.
func Failure(err error) Response {
	return Response{Err: err}
}

// WithHeader returns a copy of r with the header k set to v.
func (r Response) WithHeader(k, v string) Response {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(k, v)
	r.Header = h
	return r
}

// IsFailure returns true if the response fails the request.
func (r Response) IsFailure() bool {
	return r.Err != nil
}

// Builder produces the response for a matched request.
type Builder func(req *http.Request) Response

// Respond returns a builder that always produces resp.
func Respond(resp Response) Builder {
	return func(*http.Request) Response {
		return resp
	}
}

// Fail returns a builder that fails every request with err.
func Fail(err error) Builder {
	return Respond(Failure(err))
}

// HTTP returns a builder producing a response with the given status,
// headers and body.
func HTTP(status int, headers map[string]string, body Body) Builder {
	resp := Success(status, body)
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	return Respond(resp)
}

// JSON returns a builder producing v encoded as JSON with the given status.
// If v cannot be encoded, requests fail with the encoding error.
func JSON(status int, v any) Builder {
	data, err := json.Marshal(v)
	if err != nil {
		return Fail(fmt.Errorf("json marshal: %w", err))
	}
	return JSONData(status, data)
}

// JSONData returns a builder producing pre-encoded JSON with the given status.
func JSONData(status int, data []byte) Builder {
	return Respond(
		Success(status, Content(data)).WithHeader(headerContentType, contentTypeJSON),
	)
}

// Subscribe returns a builder producing a streamed subscription response.
func Subscribe(status int, stream *StreamResponse) Builder {
	return Respond(Success(status, Subscription(stream)))
}
