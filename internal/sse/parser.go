// Package sse frames stub payloads as Server-Sent Events and parses them back.
//
// A frame is an optional `event:` line, one `data:` line per line of the
// payload, and a terminating blank line.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Event represents a parsed SSE event.
type Event struct {
	// Type is the event field, or "message" when the frame has none.
	Type string

	// Data is the payload with the data lines joined by "\n".
	Data string

	// ID is the id field, if present.
	ID string
}

// Frame encodes data as a single SSE frame. A trailing newline in data is
// not treated as an extra empty line.
func Frame(eventType string, data []byte) []byte {
	var buf bytes.Buffer

	if eventType != "" {
		buf.WriteString("event: ")
		buf.WriteString(eventType)
		buf.WriteByte('\n')
	}

	text := strings.TrimSuffix(string(data), "\n")
	for _, line := range strings.Split(text, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(strings.TrimSuffix(line, "\r"))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	return buf.Bytes()
}

// Parser parses SSE events from an io.Reader.
type Parser struct {
	reader  *bufio.Reader
	current struct {
		eventType string
		id        string
		dataLines []string
		hasData   bool
	}
}

// NewParser creates a new SSE parser from an io.Reader.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next SSE event.
// Returns io.EOF when the stream is exhausted.
func (p *Parser) Next() (Event, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Try to flush any remaining event
				if event, ok := p.flushEvent(); ok {
					return event, nil
				}
			}
			return Event{}, err
		}

		// Remove trailing newline
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			// Empty line signals end of event
			if event, ok := p.flushEvent(); ok {
				return event, nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// Comment, used by servers as keep-alive
		case strings.HasPrefix(line, "event:"):
			p.current.eventType = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "id:"):
			p.current.id = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "data:"):
			// Strip the optional space after "data:"
			content := strings.TrimPrefix(line[5:], " ")
			p.current.dataLines = append(p.current.dataLines, content)
			p.current.hasData = true
		}
		// Ignore other fields (retry:)
	}
}

// flushEvent returns the current event if it carried data, and resets state.
func (p *Parser) flushEvent() (Event, bool) {
	defer func() {
		p.current.eventType = ""
		p.current.id = ""
		p.current.dataLines = nil
		p.current.hasData = false
	}()

	if !p.current.hasData {
		return Event{}, false
	}

	eventType := p.current.eventType
	if eventType == "" {
		eventType = "message"
	}

	return Event{
		Type: eventType,
		Data: strings.Join(p.current.dataLines, "\n"),
		ID:   p.current.id,
	}, true
}
