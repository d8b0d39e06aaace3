package cot

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"time"
)

// UnknownAccuracy is the sentinel value for ce and le when a producer cannot
// state an error bound.
const UnknownAccuracy = 9999999.0

// Version20 is the only wire version this codec speaks.
const Version20 = "2.0"

// How provenance codes for generated events.
const (
	HowMachineGPS = "m-g"       // machine-derived GPS position
	HowHumanEntry = "h-g-i-g-o" // human-entered point
)

// Event is a single Cursor-on-Target message. Every event carries identity
// (uid), a type string from the CoT taxonomy, a validity window (time, start,
// stale), and a point; almost everything else lives in the detail bag.
type Event struct {
	XMLName xml.Name `xml:"event"`
	Version string   `xml:"version,attr"`
	UID     string   `xml:"uid,attr"`
	Type    string   `xml:"type,attr"`
	Time    CotTime  `xml:"time,attr"`
	Start   CotTime  `xml:"start,attr"`
	Stale   CotTime  `xml:"stale,attr"`
	How     string   `xml:"how,attr,omitempty"`

	Point  *Point  `xml:"point"`
	Detail *Detail `xml:"detail,omitempty"`
}

// String implements fmt.Stringer for log lines.
func (e *Event) String() string {
	if e == nil {
		return "nil"
	}
	return fmt.Sprintf("uid=%s type=%s how=%s stale_in=%s", e.UID, e.Type, e.How, e.Stale.Sub(e.Start.Time))
}

// Validate checks the presence of every required field. It is called by both
// Parse and Serialize so an invalid event can neither enter nor leave the
// system silently.
func (e *Event) Validate() error {
	if e.UID == "" {
		return &ParseError{Kind: MissingField, Field: "uid"}
	}
	if e.Type == "" {
		return &ParseError{Kind: MissingField, Field: "type"}
	}
	if e.Time.IsZero() {
		return &ParseError{Kind: MissingField, Field: "time"}
	}
	if e.Start.IsZero() {
		return &ParseError{Kind: MissingField, Field: "start"}
	}
	if e.Stale.IsZero() {
		return &ParseError{Kind: MissingField, Field: "stale"}
	}
	if e.Point == nil {
		return &ParseError{Kind: MissingField, Field: "point"}
	}
	if math.IsNaN(e.Point.Lat) {
		return &ParseError{Kind: MissingField, Field: "point.lat"}
	}
	if math.IsNaN(e.Point.Lon) {
		return &ParseError{Kind: MissingField, Field: "point.lon"}
	}
	return nil
}

// IsStale reports whether the event's validity window has passed at the given
// wall-clock instant.
func (e *Event) IsStale(now time.Time) bool {
	return now.After(e.Stale.Time)
}

// Callsign returns the contact callsign from the detail bag, or "" when the
// event carries none.
func (e *Event) Callsign() string {
	if e.Detail == nil || e.Detail.Contact == nil {
		return ""
	}
	return e.Detail.Contact.Callsign
}

// Point is the location an event describes. hae is meters above the WGS-84
// ellipsoid; ce and le are circular and linear error bounds in meters, with
// UnknownAccuracy meaning "no idea".
type Point struct {
	XMLName xml.Name `xml:"point" json:"-"`
	Lat     float64  `xml:"lat,attr" json:"lat"`
	Lon     float64  `xml:"lon,attr" json:"lon"`
	HAE     float64  `xml:"hae,attr" json:"hae"`
	CE      float64  `xml:"ce,attr" json:"ce"`
	LE      float64  `xml:"le,attr" json:"le"`
}

// NewPoint builds a point with unknown accuracy bounds.
func NewPoint(lat, lon, hae float64) *Point {
	return &Point{Lat: lat, Lon: lon, HAE: hae, CE: UnknownAccuracy, LE: UnknownAccuracy}
}

// MarshalXML emits the point with plain decimal attribute values. The
// default float encoding switches to exponent notation for the
// UnknownAccuracy sentinel, which other producers never do.
func (p *Point) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "point"}
	start.Attr = []xml.Attr{
		{Name: xml.Name{Local: "lat"}, Value: formatFloat(p.Lat)},
		{Name: xml.Name{Local: "lon"}, Value: formatFloat(p.Lon)},
		{Name: xml.Name{Local: "hae"}, Value: formatFloat(p.HAE)},
		{Name: xml.Name{Local: "ce"}, Value: formatFloat(p.CE)},
		{Name: xml.Name{Local: "le"}, Value: formatFloat(p.LE)},
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// UnmarshalXML decodes a point element, applying wire defaults: hae falls
// back to 0, ce and le to UnknownAccuracy. lat and lon have no default; their
// absence is detected by Validate after decoding.
func (p *Point) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	p.Lat = math.NaN()
	p.Lon = math.NaN()
	p.HAE = 0
	p.CE = UnknownAccuracy
	p.LE = UnknownAccuracy

	for _, attr := range start.Attr {
		var dst *float64
		switch attr.Name.Local {
		case "lat":
			dst = &p.Lat
		case "lon":
			dst = &p.Lon
		case "hae":
			dst = &p.HAE
		case "ce":
			dst = &p.CE
		case "le":
			dst = &p.LE
		default:
			continue
		}
		v, err := strconv.ParseFloat(attr.Value, 64)
		if err != nil {
			return &ParseError{Kind: MalformedXML, Field: "point." + attr.Name.Local, Err: err}
		}
		*dst = v
	}

	return d.Skip()
}
