// Package mockingjay stubs outgoing HTTP requests made through net/http.
//
// Stubs pair a Matcher, which selects requests, with a Builder, which
// produces the response. They live in an explicitly constructed Registry and
// are served by a Transport, an http.RoundTripper that never touches the
// network.
//
// # Basic Usage
//
// Create a registry and a client that uses it:
//
//	reg := mockingjay.NewRegistry()
//	defer reg.RemoveAll()
//
//	client := mockingjay.NewClient(reg)
//
// Register a stub:
//
//	reg.Add(
//	    mockingjay.AllOf(mockingjay.Method("GET"), mockingjay.Path("/users/*")),
//	    mockingjay.JSON(200, map[string]any{"name": "ham"}),
//	)
//
// # Subscriptions
//
// A subscription response streams an ordered list of events, each delivered
// after its own delay, then ends the body:
//
//	stream, err := mockingjay.NewStreamResponse(
//	    mockingjay.NewEvent(keepAlive, 0),
//	    mockingjay.NewEvent(data, 500*time.Millisecond),
//	    mockingjay.NewEvent(eos, 500*time.Millisecond),
//	)
//	if err != nil {
//	    return err
//	}
//
//	reg.Add(mockingjay.Method("SUBSCRIBE"), mockingjay.Subscribe(200, stream))
//
// Events are delivered in order, never duplicated and never dropped. Closing
// the response body or cancelling the request stops the delivery.
//
// # Delivering Streams Directly
//
// The delivery engine is usable without HTTP. Deliver calls a Consumer
// asynchronously:
//
//	h := mockingjay.Deliver(ctx, stream, mockingjay.ConsumerFuncs{
//	    Chunk:    func(b []byte) { fmt.Println(string(b)) },
//	    Complete: func() { fmt.Println("done") },
//	})
//	defer h.Cancel()
//
// Or range over the chunks:
//
//	for chunk := range mockingjay.Chunks(ctx, stream) {
//	    process(chunk)
//	}
//
// # Error Handling
//
// Requests that match no stub fail with ErrNoStub:
//
//	if errors.Is(err, mockingjay.ErrNoStub) {
//	    // Register a stub for this request
//	}
//
// For details about the request, use errors.As with StubError:
//
//	var se *mockingjay.StubError
//	if errors.As(err, &se) {
//	    fmt.Println("Method:", se.Method, "URL:", se.URL)
//	}
package mockingjay
