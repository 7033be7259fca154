// Package stubfile loads stubs from YAML (or JSON) files.
//
// A stub file lists stubs in registration order:
//
//	stubs:
//	  - method: SUBSCRIBE
//	    path: /services/chatkit/v1/*/users
//	    status: 200
//	    events:
//	      - data: "[0, \"xxxx\"]\n"
//	      - data: "[1, \"123\", {}, {}]\n"
//	        delay: 500ms
//	  - method: GET
//	    url: https://example.com/health
//	    headers:
//	      Content-Type: application/json
//	    body: '{"ok": true}'
//
// A stub with events is a subscription. A stub with a body is served in one
// piece, or split into chunk_size byte chunks. Setting sse_event frames every
// event as a Server-Sent Event with that name.
package stubfile

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hamchapman/mockingjay"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for invalid stub files.
var (
	// ErrNoMatcher indicates a stub has no method, url, path or host.
	ErrNoMatcher = errors.New("stubfile: stub has no matcher")

	// ErrBodyAndEvents indicates a stub sets both body and events.
	ErrBodyAndEvents = errors.New("stubfile: body and events are mutually exclusive")

	// ErrInvalidStatus indicates a status outside 100-599.
	ErrInvalidStatus = errors.New("stubfile: invalid status code")

	// ErrInvalidDelay indicates an event delay that is not a non-negative
	// duration.
	ErrInvalidDelay = errors.New("stubfile: invalid event delay")
)

// StubError reports which stub of a file is invalid.
type StubError struct {
	// Index is the position of the stub in the file, starting at 0.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StubError) Error() string {
	return fmt.Sprintf("stubfile: stub %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StubError) Unwrap() error {
	return e.Err
}

// File is a parsed stub file.
type File struct {
	Stubs []Stub `yaml:"stubs"`
}

// Stub describes one stub: how to match requests and what to answer.
type Stub struct {
	Method string `yaml:"method,omitempty"`
	URL    string `yaml:"url,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Host   string `yaml:"host,omitempty"`

	Status  int               `yaml:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`

	Body      *string `yaml:"body,omitempty"`
	ChunkSize int     `yaml:"chunk_size,omitempty"`

	SSEEvent string  `yaml:"sse_event,omitempty"`
	Events   []Event `yaml:"events,omitempty"`
}

// Event is one event of a subscription stub.
type Event struct {
	Data string `yaml:"data"`

	// Delay is a duration such as "500ms" or "1.5s". Empty means zero.
	Delay string `yaml:"delay,omitempty"`
}

// Load reads and parses the stub file at path on fsys.
func Load(fsys afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("stubfile: read %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses and validates a stub file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("stubfile: parse: %w", err)
	}

	for i, s := range f.Stubs {
		if _, _, err := s.build(); err != nil {
			return nil, &StubError{Index: i, Err: err}
		}
	}

	return &f, nil
}

// Register adds every stub in f to reg, in file order, so later stubs take
// precedence over earlier ones.
func (f *File) Register(reg *mockingjay.Registry) ([]mockingjay.Stub, error) {
	stubs := make([]mockingjay.Stub, 0, len(f.Stubs))
	for i, s := range f.Stubs {
		m, b, err := s.build()
		if err != nil {
			return stubs, &StubError{Index: i, Err: err}
		}
		stubs = append(stubs, reg.Add(m, b))
	}
	return stubs, nil
}

// build converts s into a matcher and builder.
func (s Stub) build() (mockingjay.Matcher, mockingjay.Builder, error) {
	m, err := s.matcher()
	if err != nil {
		return nil, nil, err
	}

	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 599 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidStatus, s.Status)
	}

	body, err := s.body()
	if err != nil {
		return nil, nil, err
	}

	return m, mockingjay.HTTP(status, s.Headers, body), nil
}

func (s Stub) matcher() (mockingjay.Matcher, error) {
	var ms []mockingjay.Matcher
	if s.Method != "" {
		ms = append(ms, mockingjay.Method(s.Method))
	}
	if s.URL != "" {
		ms = append(ms, mockingjay.URL(s.URL))
	}
	if s.Path != "" {
		ms = append(ms, mockingjay.Path(s.Path))
	}
	if s.Host != "" {
		ms = append(ms, mockingjay.Host(s.Host))
	}
	if len(ms) == 0 {
		return nil, ErrNoMatcher
	}
	return mockingjay.AllOf(ms...), nil
}

func (s Stub) body() (mockingjay.Body, error) {
	if s.Body != nil && len(s.Events) > 0 {
		return mockingjay.Body{}, ErrBodyAndEvents
	}

	if len(s.Events) == 0 {
		switch {
		case s.Body == nil:
			return mockingjay.NoContent(), nil
		case s.ChunkSize > 0:
			return mockingjay.StreamContent([]byte(*s.Body), s.ChunkSize), nil
		default:
			return mockingjay.Content([]byte(*s.Body)), nil
		}
	}

	events := make([]mockingjay.Event, len(s.Events))
	for i, e := range s.Events {
		delay, err := parseDelay(e.Delay)
		if err != nil {
			return mockingjay.Body{}, &mockingjay.EventError{Index: i, Err: err}
		}
		events[i] = mockingjay.NewEvent([]byte(e.Data), delay)
	}

	stream, err := mockingjay.NewStreamResponse(events...)
	if err != nil {
		return mockingjay.Body{}, err
	}

	if s.SSEEvent != "" {
		return mockingjay.SSESubscription(stream, s.SSEEvent), nil
	}
	return mockingjay.Subscription(stream), nil
}

func parseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelay, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDelay, s)
	}
	return d, nil
}
