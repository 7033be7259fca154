// Package mockingjaytest provides testing utilities for code that uses
// mockingjay stubs.
//
// # Registries and Clients
//
// NewRegistry returns a registry whose stubs are removed when the test ends,
// and NewClient returns an *http.Client answered by it:
//
//	func TestProfile(t *testing.T) {
//	    reg := mockingjaytest.NewRegistry(t)
//	    reg.Add(mockingjay.Path("/users/*"), mockingjay.JSON(200, user))
//
//	    client := mockingjaytest.NewClient(t, reg)
//	    // ... exercise code that uses client
//	}
//
// # Recorder
//
// Recorder is a mockingjay.Consumer that remembers every chunk and when it
// arrived:
//
//	rec := mockingjaytest.NewRecorder()
//	mockingjay.Deliver(ctx, stream, rec)
//	rec.WaitComplete(t, 5*time.Second)
//
//	for _, c := range rec.Chunks() {
//	    t.Logf("%s at %s", c.Data, c.At)
//	}
//
// Drain feeds a streamed response body into any Consumer, one call per
// chunk written by the stub:
//
//	resp, _ := client.Do(req)
//	defer resp.Body.Close()
//	err := mockingjaytest.Drain(resp.Body, rec)
package mockingjaytest
