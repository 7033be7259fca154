package mockingjay

import (
	"net/http"

	"github.com/hamchapman/mockingjay/journal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type transportConfig struct {
	logger         *zap.Logger
	journal        journal.Journal
	fallback       http.RoundTripper
	tracerProvider trace.TracerProvider
}

// Option configures a Transport.
type Option func(*transportConfig)

// WithLogger sets the logger for intercepted requests and stream delivery.
// If not set, logging is disabled.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *transportConfig) {
		cfg.logger = l
	}
}

// WithJournal records every intercepted request, matched or not, in j.
func WithJournal(j journal.Journal) Option {
	return func(cfg *transportConfig) {
		cfg.journal = j
	}
}

// WithFallback sends requests that match no stub to rt instead of failing
// them with ErrNoStub.
func WithFallback(rt http.RoundTripper) Option {
	return func(cfg *transportConfig) {
		cfg.fallback = rt
	}
}

// WithTracerProvider records a span for every intercepted request.
// If not set, a no-op provider is used.
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(cfg *transportConfig) {
		cfg.tracerProvider = p
	}
}
