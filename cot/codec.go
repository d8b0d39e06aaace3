package cot

import (
	"encoding/xml"
	stderrors "errors"
	"fmt"

	"github.com/omnitak/takcore/errors"
)

// ParseErrorKind categorizes codec failures.
type ParseErrorKind int

const (
	// MalformedXML means the input was not well-formed XML, or an
	// attribute value could not be decoded.
	MalformedXML ParseErrorKind = iota
	// MissingField means a required attribute or element was absent.
	MissingField
	// InvalidTimestamp means a time, start, or stale attribute was not
	// ISO-8601.
	InvalidTimestamp
)

// String returns the kind's name for logs.
func (k ParseErrorKind) String() string {
	switch k {
	case MalformedXML:
		return "malformed_xml"
	case MissingField:
		return "missing_field"
	case InvalidTimestamp:
		return "invalid_timestamp"
	default:
		return "unknown"
	}
}

// ParseError reports the first problem found while decoding or validating an
// event. Field names the offending attribute or element when known.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("cot: missing required field %q", e.Field)
	case InvalidTimestamp:
		return fmt.Sprintf("cot: invalid timestamp in %q: %v", e.Field, e.Err)
	default:
		if e.Field != "" {
			return fmt.Sprintf("cot: malformed xml in %q: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("cot: malformed xml: %v", e.Err)
	}
}

// Unwrap returns the underlying cause, when any.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets callers branch on errors.ErrParsingFailed without knowing the
// concrete type.
func (e *ParseError) Is(target error) bool {
	return target == errors.ErrParsingFailed
}

// Parse decodes a single event from XML. It never panics on malformed input;
// every failure comes back as a *ParseError. The input is not mutated and no
// reference to it is retained.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := xml.Unmarshal(data, &ev); err != nil {
		var pe *ParseError
		if stderrors.As(err, &pe) {
			return nil, pe
		}
		return nil, &ParseError{Kind: MalformedXML, Err: err}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ParseString decodes an event from its wire text. Transports deliver
// strings, so this saves every call site a conversion.
func ParseString(text string) (*Event, error) {
	return Parse([]byte(text))
}

// Serialize encodes an event as XML. The event is validated first so missing
// required fields surface as an error instead of invalid output. A zero
// Version is filled with Version20; the caller's event is not modified.
func Serialize(ev *Event) ([]byte, error) {
	if ev == nil {
		return nil, &ParseError{Kind: MissingField, Field: "event"}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	out := *ev
	if out.Version == "" {
		out.Version = Version20
	}
	return xml.Marshal(&out)
}

// SerializeString encodes an event as wire text.
func SerializeString(ev *Event) (string, error) {
	b, err := Serialize(ev)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
