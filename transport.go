package mockingjay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hamchapman/mockingjay/journal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/hamchapman/mockingjay"

// Transport is an http.RoundTripper that answers requests from the stubs in
// a Registry instead of the network. It is safe for concurrent use.
//
// Plug it into any *http.Client:
//
//	reg := mockingjay.NewRegistry()
//	client := &http.Client{Transport: mockingjay.NewTransport(reg)}
type Transport struct {
	registry  *Registry
	logger    *zap.Logger
	journal   journal.Journal
	fallback  http.RoundTripper
	tracer    trace.Tracer
	scheduler Scheduler
}

// NewTransport creates a Transport backed by reg.
func NewTransport(reg *Registry, opts ...Option) *Transport {
	cfg := &transportConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tp := cfg.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	return &Transport{
		registry:  reg,
		logger:    logger,
		journal:   cfg.journal,
		fallback:  cfg.fallback,
		tracer:    tp.Tracer(tracerName),
		scheduler: Scheduler{Logger: logger},
	}
}

// NewClient returns an HTTP client whose requests are answered by the stubs
// in reg.
//
// Example:
//
//	reg := mockingjay.NewRegistry()
//	reg.Add(mockingjay.Everything, mockingjay.JSON(200, map[string]any{"ok": true}))
//	client := mockingjay.NewClient(reg)
func NewClient(reg *Registry, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(reg, opts...)}
}

// Registry returns the registry consulted by t.
func (t *Transport) Registry() *Registry {
	return t.registry
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := ""
	if req.URL != nil {
		url = req.URL.String()
	}

	ctx, span := t.tracer.Start(
		req.Context(),
		"mockingjay.RoundTrip",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	t.logger.Debug("handling request",
		zap.String("method", req.Method),
		zap.String("url", url))

	stub, builder, ok := t.registry.Match(req)
	t.record(req, stub, ok)
	span.SetAttributes(attribute.Bool("mockingjay.matched", ok))

	if !ok {
		if t.fallback != nil {
			t.logger.Debug("no stub matched, using fallback", zap.String("url", url))
			return t.fallback.RoundTrip(req)
		}

		closeRequestBody(req)
		err := &StubError{Method: req.Method, URL: url, Err: ErrNoStub}
		span.RecordError(err)
		span.SetStatus(codes.Error, "no stub matched")
		t.logger.Warn("no stub matched request",
			zap.String("method", req.Method),
			zap.String("url", url))
		return nil, err
	}

	span.SetAttributes(attribute.String("mockingjay.stub_id", stub.ID.String()))

	resp := builder(req)
	closeRequestBody(req)

	if resp.Err != nil {
		err := &StubError{Method: req.Method, URL: url, Err: resp.Err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stubbed failure")
		t.logger.Debug("stub returned failure",
			zap.Stringer("stub_id", stub.ID),
			zap.Error(resp.Err))
		return nil, err
	}

	hr := t.respond(ctx, req, resp)
	span.SetAttributes(attribute.Int("http.response.status_code", hr.StatusCode))
	if resp.Body.IsStream() {
		span.AddEvent("stream started", trace.WithAttributes(
			attribute.Int("mockingjay.events", resp.Body.Stream().Len()),
		))
	}
	return hr, nil
}

// respond converts a stubbed Response into an *http.Response.
func (t *Transport) respond(ctx context.Context, req *http.Request, resp Response) *http.Response {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	hr := &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Request:    req,
	}

	switch resp.Body.kind {
	case bodyContent:
		hr.Body = io.NopCloser(bytes.NewReader(resp.Body.data))
		hr.ContentLength = int64(len(resp.Body.data))
	case bodyStream:
		hr.Body = t.streamBody(ctx, resp.Body.stream)
		hr.ContentLength = -1
	default:
		hr.Body = http.NoBody
	}

	return hr
}

// streamBody starts delivering stream into a pipe and returns the read side.
// The request context bounds the delivery.
func (t *Transport) streamBody(ctx context.Context, stream *StreamResponse) io.ReadCloser {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	// Unblocks a pending write when the request is cancelled or the body is
	// closed. After a normal completion the pipe is already closed and this
	// is a no-op.
	stop := context.AfterFunc(ctx, func() {
		pw.CloseWithError(ctx.Err())
	})

	t.scheduler.Deliver(ctx, stream, ConsumerFuncs{
		Chunk: func(data []byte) {
			if _, err := pw.Write(data); err != nil {
				// The reader has gone away.
				cancel()
			}
		},
		Complete: func() {
			stop()
			pw.Close()
			cancel()
		},
	})

	return &streamReadCloser{pr: pr, cancel: cancel}
}

// streamReadCloser is the body of a streamed response.
type streamReadCloser struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
}

func (b *streamReadCloser) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

// Close cancels any remaining delivery.
func (b *streamReadCloser) Close() error {
	b.cancel()
	return b.pr.Close()
}

func (t *Transport) record(req *http.Request, stub Stub, matched bool) {
	if t.journal == nil {
		return
	}

	e := journal.NewEntry(req)
	e.Matched = matched
	if matched {
		e.StubID = stub.ID
	}

	if err := t.journal.Append(e); err != nil {
		t.logger.Warn("failed to record request", zap.Error(err))
	}
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

// Ensure Transport implements http.RoundTripper
var _ http.RoundTripper = (*Transport)(nil)
