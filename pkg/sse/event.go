// Package sse provides a minimal, purpose-built reader for line-oriented
// server event streams as produced by the IroBot backend: chat token
// streaming and the push-notification channels. It parses "data:", "event:"
// and comment lines into discrete events while tolerating partial lines,
// malformed payloads and provider quirks.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "encoding/json"

// DoneData is the sentinel data payload signalling the end of a logical
// stream (e.g. a completed chat generation).
const DoneData = "[DONE]"

// Event represents a single parsed server event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Name is the event name from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Name string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// Done reports whether the event carries the stream-termination sentinel.
func (e *Event) Done() bool {
	return e.Data == DoneData
}

// Payload returns the event data decoded as JSON. Malformed payloads are
// never an error: the raw data string is returned instead, so one bad line
// from the server cannot take the stream down.
func (e *Event) Payload() any {
	var v any
	if err := json.Unmarshal([]byte(e.Data), &v); err != nil {
		return e.Data
	}
	return v
}

// Decode unmarshals the event data into v. Unlike Payload it surfaces the
// decode error, for callers that require a known shape.
func (e *Event) Decode(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}
