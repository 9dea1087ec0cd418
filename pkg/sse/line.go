package sse

import "strings"

// LineKind classifies a single raw line of an event stream.
type LineKind int

const (
	// LineEmpty is a blank line, which terminates the current event.
	LineEmpty LineKind = iota

	// LineComment is a ":"-prefixed comment line. Servers use these as
	// keep-alive heartbeats; they carry no payload.
	LineComment

	// LineData is a "data:" field line.
	LineData

	// LineEvent is an "event:" field line naming the following data.
	LineEvent

	// LineID is an "id:" field line.
	LineID

	// LineRaw is a non-empty line with no recognized field prefix. The
	// value is carried verbatim so the consumer decides whether to ignore
	// or surface it; it is never an error.
	LineRaw
)

// Line is the result of classifying one raw stream line.
type Line struct {
	Kind  LineKind
	Value string
}

// ParseLine classifies a single line of an event stream. The line must
// already be split on "\n" with any trailing CR stripped; callers are
// responsible for buffering partial lines until a full one is available.
//
// Per the SSE spec, a field line has the form "field:value" where a single
// space after the colon is optional and stripped if present. The "retry"
// field is intentionally ignored. Lines that carry no recognized field are
// classified LineRaw rather than rejected, forward-compatible with malformed
// upstream output.
func ParseLine(raw string) Line {
	if raw == "" {
		return Line{Kind: LineEmpty}
	}
	if strings.HasPrefix(raw, ":") {
		return Line{Kind: LineComment, Value: strings.TrimPrefix(strings.TrimPrefix(raw, ":"), " ")}
	}

	var field, value string
	if before, after, ok := strings.Cut(raw, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		field = raw
	}

	switch field {
	case "data":
		return Line{Kind: LineData, Value: value}
	case "event":
		return Line{Kind: LineEvent, Value: value}
	case "id":
		return Line{Kind: LineID, Value: value}
	case "retry":
		return Line{Kind: LineComment}
	default:
		return Line{Kind: LineRaw, Value: raw}
	}
}
