package mockingjay_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hamchapman/mockingjay"
	"github.com/hamchapman/mockingjay/internal/sse"
	"github.com/hamchapman/mockingjay/journal"
	"github.com/hamchapman/mockingjay/mockingjaytest"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const subscriptionURL = "https://us1.pusherplatform.io/services/chatkit/v1/hamhamham/users"

func TestTransport_Subscription(t *testing.T) {
	keepAlive := []byte("[0, \"xxxxxxxxxxxxxxxxxxxxxxxxxxxx\"]\n")
	normalEvent := []byte("[1, \"123\", {}, {\"data\": [1,2,3]}]\n")
	eos := []byte("[255, 500, {}, {\"error_description\": \"Internal server error\" }]\n")

	stream, err := mockingjay.NewStreamResponse(
		mockingjay.NewEvent(keepAlive, 0),
		mockingjay.NewEvent(normalEvent, 500*time.Millisecond),
		mockingjay.NewEvent(eos, 500*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.Subscribe(200, stream))
	client := mockingjaytest.NewClient(t, reg)

	req, err := http.NewRequest("SUBSCRIBE", subscriptionURL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	rec := mockingjaytest.NewRecorder()
	errc := make(chan error, 1)
	go func() { errc <- mockingjaytest.Drain(resp.Body, rec) }()

	rec.WaitComplete(t, waitTimeout)
	if err := <-errc; err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	want := []string{string(keepAlive), string(normalEvent), string(eos)}
	if diff := cmp.Diff(want, rec.Strings()); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestTransport_Content(t *testing.T) {
	reg := mockingjaytest.NewRegistry(t)
	reg.Add(
		mockingjay.AllOf(mockingjay.Method(http.MethodGet), mockingjay.Path("/users/*")),
		mockingjay.JSON(200, map[string]string{"name": "ham"}),
	)
	client := mockingjaytest.NewClient(t, reg)

	resp, err := client.Get("https://example.com/users/ham")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("got content type %q", got)
	}
	if resp.ContentLength != int64(len(`{"name":"ham"}`)) {
		t.Errorf("got content length %d", resp.ContentLength)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"name":"ham"}` {
		t.Errorf("got body %q", body)
	}
}

func TestTransport_StatusAndEmptyBody(t *testing.T) {
	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.HTTP(204, map[string]string{"X-Test": "yes"}, mockingjay.NoContent()))
	client := mockingjaytest.NewClient(t, reg)

	resp, err := client.Get("https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 204 || resp.Status != "204 No Content" {
		t.Errorf("got status %q", resp.Status)
	}
	if resp.Header.Get("X-Test") != "yes" {
		t.Errorf("missing header, got %v", resp.Header)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("got body %q, want empty", body)
	}
}

func TestTransport_NoStub(t *testing.T) {
	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Path("/other"), mockingjay.HTTP(200, nil, mockingjay.NoContent()))
	client := mockingjaytest.NewClient(t, reg)

	_, err := client.Get("https://example.com/missing")
	if !errors.Is(err, mockingjay.ErrNoStub) {
		t.Fatalf("expected ErrNoStub, got %v", err)
	}

	var se *mockingjay.StubError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StubError, got %T", err)
	}
	if se.Method != http.MethodGet || se.URL != "https://example.com/missing" {
		t.Errorf("got %s %s", se.Method, se.URL)
	}
}

func TestTransport_Failure(t *testing.T) {
	boom := errors.New("connection reset")

	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.Fail(boom))
	client := mockingjaytest.NewClient(t, reg)

	_, err := client.Get("https://example.com/")
	if !errors.Is(err, boom) {
		t.Fatalf("expected stubbed error, got %v", err)
	}
	if errors.Is(err, mockingjay.ErrNoStub) {
		t.Error("stubbed failure must not look like a missing stub")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestTransport_Fallback(t *testing.T) {
	var called bool
	fallback := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{
			StatusCode: 418,
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	})

	reg := mockingjaytest.NewRegistry(t)
	client := mockingjaytest.NewClient(t, reg, mockingjay.WithFallback(fallback))

	resp, err := client.Get("https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if !called || resp.StatusCode != 418 {
		t.Errorf("expected fallback response, got %d (called=%v)", resp.StatusCode, called)
	}
}

func TestTransport_Journal(t *testing.T) {
	j := journal.NewMemoryJournal()

	reg := mockingjaytest.NewRegistry(t)
	stub := reg.Add(mockingjay.Path("/users"), mockingjay.HTTP(200, nil, mockingjay.NoContent()))
	client := mockingjaytest.NewClient(t, reg, mockingjay.WithJournal(j))

	resp, err := client.Get("https://example.com/users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if _, err := client.Get("https://example.com/rooms"); err == nil {
		t.Fatal("expected error for unmatched request")
	}

	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	if !entries[0].Matched || entries[0].StubID != stub.ID {
		t.Errorf("first entry: matched=%v stub=%s", entries[0].Matched, entries[0].StubID)
	}
	if entries[1].Matched || entries[1].URL != "https://example.com/rooms" {
		t.Errorf("second entry: matched=%v url=%s", entries[1].Matched, entries[1].URL)
	}
}

func TestTransport_StreamContentChunks(t *testing.T) {
	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.HTTP(200, nil, mockingjay.StreamContent([]byte("abcdefg"), 3)))
	client := mockingjaytest.NewClient(t, reg)

	resp, err := client.Get("https://example.com/download")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != -1 {
		t.Errorf("got content length %d, want -1", resp.ContentLength)
	}

	rec := mockingjaytest.NewRecorder()
	if err := mockingjaytest.Drain(resp.Body, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"abc", "def", "g"}, rec.Strings()); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestTransport_SSESubscription(t *testing.T) {
	stream := mockingjay.MustStreamResponse(
		mockingjay.NewEvent([]byte(`{"id":1}`), 0),
		mockingjay.NewEvent([]byte(`{"id":2}`), 5*time.Millisecond),
	)

	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.Respond(mockingjay.Success(200, mockingjay.SSESubscription(stream, "update"))))
	client := mockingjaytest.NewClient(t, reg)

	resp, err := client.Get("https://example.com/events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("got content type %q", got)
	}

	var got []sse.Event
	p := sse.NewParser(resp.Body)
	for {
		e, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, e)
	}

	want := []sse.Event{
		{Type: "update", Data: `{"id":1}`},
		{Type: "update", Data: `{"id":2}`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTransport_BodyCloseCancelsDelivery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	stream := mockingjay.MustStreamResponse(
		mockingjay.NewEvent([]byte("A"), 0),
		mockingjay.NewEvent([]byte("B"), time.Hour),
	)

	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.Subscribe(200, stream))
	client := mockingjaytest.NewClient(t, reg, mockingjay.WithLogger(zap.New(core)))

	resp, err := client.Get("https://example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]byte, 16)
	n, err := resp.Body.Read(buf)
	if err != nil || string(buf[:n]) != "A" {
		t.Fatalf("got %q (err=%v), want A", buf[:n], err)
	}

	if err := resp.Body.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	deadline := time.Now().Add(waitTimeout)
	for logs.FilterMessage("delivery cancelled").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("delivery was not cancelled after the body was closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if logs.FilterMessage("delivery complete").Len() != 0 {
		t.Error("delivery must not complete after the body was closed")
	}
}

func TestTransport_RequestContextCancelsDelivery(t *testing.T) {
	stream := mockingjay.MustStreamResponse(
		mockingjay.NewEvent([]byte("A"), 0),
		mockingjay.NewEvent([]byte("B"), time.Hour),
	)

	reg := mockingjaytest.NewRegistry(t)
	reg.Add(mockingjay.Everything, mockingjay.Subscribe(200, stream))
	client := mockingjaytest.NewClient(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", subscriptionURL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	rec := mockingjaytest.NewRecorder()
	errc := make(chan error, 1)
	go func() {
		errc <- mockingjaytest.Drain(resp.Body, mockingjay.ConsumerFuncs{
			Chunk: func(data []byte) {
				rec.OnChunk(data)
				cancel()
			},
			Complete: rec.OnComplete,
		})
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("read did not stop after the request was cancelled")
	}

	if diff := cmp.Diff([]string{"A"}, rec.Strings()); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if rec.CompleteCount() != 0 {
		t.Error("cancelled stream must not complete")
	}
}

func TestTransport_ConsumesRequestBody(t *testing.T) {
	reg := mockingjaytest.NewRegistry(t)

	var seen string
	reg.Add(mockingjay.Everything, func(req *http.Request) mockingjay.Response {
		b, _ := io.ReadAll(req.Body)
		seen = string(b)
		return mockingjay.Success(201, mockingjay.NoContent())
	})
	client := mockingjaytest.NewClient(t, reg)

	resp, err := client.Post("https://example.com/rooms", "application/json", bytes.NewBufferString(`{"name":"general"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if seen != `{"name":"general"}` {
		t.Errorf("builder saw body %q", seen)
	}
	if resp.StatusCode != 201 {
		t.Errorf("got status %d, want 201", resp.StatusCode)
	}
}

func TestTransport_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	reg := mockingjaytest.NewRegistry(t)
	stub := reg.Add(mockingjay.Path("/users"), mockingjay.HTTP(200, nil, mockingjay.NoContent()))
	client := mockingjaytest.NewClient(t, reg, mockingjay.WithTracerProvider(tp))

	resp, err := client.Get("https://example.com/users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if _, err := client.Get("https://example.com/missing"); err == nil {
		t.Fatal("expected error for unmatched request")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		m := make(map[attribute.Key]attribute.Value)
		for _, kv := range s.Attributes() {
			m[kv.Key] = kv.Value
		}
		return m
	}

	matched := attrs(spans[0])
	if spans[0].Name() != "mockingjay.RoundTrip" {
		t.Errorf("got span name %q", spans[0].Name())
	}
	if got := matched["mockingjay.stub_id"].AsString(); got != stub.ID.String() {
		t.Errorf("got stub_id %q, want %s", got, stub.ID)
	}
	if got := matched["http.response.status_code"].AsInt64(); got != 200 {
		t.Errorf("got status %d, want 200", got)
	}

	unmatched := attrs(spans[1])
	if unmatched["mockingjay.matched"].AsBool() {
		t.Error("expected unmatched span")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("got status code %v, want Error", spans[1].Status().Code)
	}
}
