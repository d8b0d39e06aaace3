package cot

import (
	"encoding/xml"
	"time"
)

// CotTime is a wall-clock instant carried on the wire as an ISO-8601 UTC
// string. It accepts timestamps with or without fractional seconds on decode
// and always emits UTC on encode, so round-tripping an event never changes
// the instant it describes.
type CotTime struct {
	time.Time
}

// Now returns the current instant truncated to millisecond precision, which
// is the granularity generated events use.
func Now() CotTime {
	return CotTime{time.Now().UTC().Truncate(time.Millisecond)}
}

// At wraps an existing time, normalized to UTC.
func At(t time.Time) CotTime {
	return CotTime{t.UTC()}
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (t CotTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: FormatTime(t.Time)}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr. A value that does not
// parse as ISO-8601 produces an InvalidTimestamp ParseError naming the
// attribute.
func (t *CotTime) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := ParseTime(attr.Value)
	if err != nil {
		return &ParseError{Kind: InvalidTimestamp, Field: attr.Name.Local, Err: err}
	}
	t.Time = parsed
	return nil
}

// ParseTime parses an ISO-8601 timestamp. Both "2025-01-15T10:30:00Z" and
// "2025-01-15T10:30:00.000Z" forms are accepted; anything else is an error.
// The result is normalized to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatTime renders a timestamp the way events carry them: ISO-8601 UTC,
// with fractional seconds only when the instant has them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
