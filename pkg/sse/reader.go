package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 1024 * 1024

// Reader parses SSE events from an io.Reader one at a time.
type Reader struct {
	scanner *bufio.Scanner

	current *Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Reader{
		scanner: scanner,
		current: &Event{},
	}
}

// Next blocks until a complete event (terminated by a blank line) is
// available and returns it. Next returns nil, nil when the source is
// exhausted. An event left open by a stream without a trailing blank line is
// still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if raw == "" {
			if r.hasData {
				return r.flush(), nil
			}
			// keep-alive newline
			continue
		}

		// Comment line
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if r.hasData {
		return r.flush(), nil
	}

	return nil, nil
}

// parseLine accumulates one "field:value" line into the current event. A
// single space after the colon is stripped; a line with no colon is a field
// name with an empty value.
func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) flush() *Event {
	ev := r.current
	r.current = &Event{}
	r.hasData = false
	return ev
}
