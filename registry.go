package mockingjay

import (
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stub identifies a registered stub. Keep it to remove the stub later.
type Stub struct {
	ID uuid.UUID
}

type stubEntry struct {
	stub    Stub
	matcher Matcher
	builder Builder
}

// Registry holds the stubs consulted by a Transport.
// It is safe for concurrent use.
//
// Each test should construct its own registry rather than sharing one, so
// tests can run in parallel without seeing each other's stubs:
//
//	reg := mockingjay.NewRegistry()
//	defer reg.RemoveAll()
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	stubs []stubEntry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used to report stub changes.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a stub that answers requests accepted by matcher with the
// response produced by builder. Stubs added later take precedence over
// earlier stubs that match the same request.
func (r *Registry) Add(matcher Matcher, builder Builder) Stub {
	stub := Stub{ID: uuid.New()}

	r.mu.Lock()
	r.stubs = append(r.stubs, stubEntry{
		stub:    stub,
		matcher: matcher,
		builder: builder,
	})
	n := len(r.stubs)
	r.mu.Unlock()

	r.logger.Debug("stub added",
		zap.Stringer("stub_id", stub.ID),
		zap.Int("stubs", n))

	return stub
}

// Remove unregisters stub. It returns false if the stub was not registered.
func (r *Registry) Remove(stub Stub) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.stubs, func(e stubEntry) bool {
		return e.stub == stub
	})
	if i < 0 {
		return false
	}

	r.stubs = slices.Delete(r.stubs, i, i+1)
	r.logger.Debug("stub removed", zap.Stringer("stub_id", stub.ID))
	return true
}

// RemoveAll unregisters every stub.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stubs = nil
	r.logger.Debug("all stubs removed")
}

// Len returns the number of registered stubs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stubs)
}

// Match finds the most recently added stub whose matcher accepts req.
func (r *Registry) Match(req *http.Request) (Stub, Builder, bool) {
	r.mu.RLock()
	stubs := slices.Clone(r.stubs)
	r.mu.RUnlock()

	// Matchers run outside the lock so they may use the registry.
	for i := len(stubs) - 1; i >= 0; i-- {
		if stubs[i].matcher(req) {
			return stubs[i].stub, stubs[i].builder, true
		}
	}
	return Stub{}, nil, false
}
