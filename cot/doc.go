// Package cot implements the Cursor-on-Target 2.0 XML wire format: parsing,
// validation, serialization, and constructors for the event shapes the rest
// of the system exchanges.
//
// # Overview
//
// A CoT event is a small XML document: an <event> element with identity and
// validity attributes, a required <point> child, and an optional open-ended
// <detail> bag. The codec is stateless and performs no I/O; it converts
// between bytes and *Event values and nothing else.
//
//	ev, err := cot.Parse(data)
//	if err != nil {
//	    var pe *cot.ParseError
//	    if errors.As(err, &pe) {
//	        log.Debug("dropping event", "kind", pe.Kind, "field", pe.Field)
//	    }
//	    return
//	}
//	out, err := cot.Serialize(ev)
//
// # Validation
//
// uid, type, time, start, stale, point.lat, and point.lon are required; a
// missing one fails Parse with a MissingField ParseError naming it. The same
// validation runs before Serialize, so an incomplete event cannot leave the
// system as invalid XML. hae defaults to 0 and ce/le to UnknownAccuracy when
// absent on the wire.
//
// Timestamps are ISO-8601 UTC, accepted with or without fractional seconds.
// Any other form fails with an InvalidTimestamp ParseError. Input that is not
// well-formed XML fails with MalformedXML. Parse never panics.
//
// # The detail bag
//
// Detail children the codec understands (contact, __group, track, status,
// precisionlocation, remarks, link, __chat, marti, emergency) decode into
// typed structs. Everything else is preserved as raw *Node values and written
// back verbatim on serialization, so events carrying vendor extensions
// round-trip without loss.
//
// # Constructors
//
// The NewXxxEvent constructors build fully-formed events for the message
// shapes the system originates: position reports, self-reports, GeoChat
// messages, emergency beacons and cancellations, waypoints, and deletion
// notices. Generated events use millisecond-precision timestamps and carry
// correct taxonomy type strings and provenance codes.
//
// # Type taxonomy
//
// The type string is machine-readable taxonomy: "a-f-G-E-V" is an atom (a),
// friendly (f), ground (G), and so on. TypeAffiliation and TypeDimension
// extract the second and third segments; IsAtom and IsFriendly answer the
// common prefix questions. Classification of whole events into processing
// categories lives in the router package, not here.
package cot
