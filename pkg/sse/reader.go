package sse

import (
	"bufio"
	"io"
)

// Reader reads events from a source io.Reader, assembling "event:"/"data:"
// field lines into Events at blank-line boundaries. The source is typically
// a streaming HTTP response body; Reader owns the buffering, so callers may
// feed it bytes chunked at arbitrary boundaries and observe the same event
// sequence.
type Reader struct {
	scanner *bufio.Scanner

	// OnLine, when set, is invoked for every scanned line before parsing,
	// comments and blank lines included. Connections use it to reset their
	// heartbeat window on any sign of life from the server.
	OnLine func(Line)

	// current accumulates fields for the event being built in the current scan.
	current *Event
	hasData bool
}

// NewReader returns a Reader that parses events from the src io.Reader.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		current: &Event{},
	}
}

// Next returns the next parsed event from the scanner. It blocks until a
// complete event is available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := ParseLine(r.scanner.Text())

		if r.OnLine != nil {
			r.OnLine(line)
		}

		switch line.Kind {
		case LineEmpty:
			// A blank line signals the end of the current event. A blank
			// line with no accumulated fields is skipped (e.g. leading
			// blank lines or keep-alive newlines).
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}
		case LineComment:
			// Comments carry no payload; OnLine has already seen them.
		case LineData:
			r.appendData(line.Value)
		case LineEvent:
			r.current.Name = line.Value
			r.hasData = true
		case LineID:
			r.current.ID = line.Value
			r.hasData = true
		case LineRaw:
			// Protocol anomaly: carry the raw text as data so the consumer
			// decides whether to ignore or surface it.
			r.appendData(line.Value)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Source exhausted and no error from scanner.
	// If there is an in-progress event (stream ended without a trailing blank
	// line), yield it.
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// appendData adds one data line's value to the current event. Multiple data
// fields are joined with "\n" per the SSE spec.
func (r *Reader) appendData(value string) {
	if r.hasData && r.current.Data != "" {
		r.current.Data += "\n"
	}
	r.current.Data += value
	r.hasData = true
}

// reset clears the accumulated event state for the next event.
func (r *Reader) reset() {
	r.current = &Event{}
	r.hasData = false
}
