package cot

import (
	"encoding/xml"
	"sort"
)

// Detail is the open detail bag of an event. Sub-elements the codec knows are
// decoded into typed fields; everything else is preserved verbatim in Unknown
// so vendor extensions survive a parse/serialize round trip.
type Detail struct {
	Contact           *Contact
	Group             *Group
	Track             *Track
	Status            *Status
	PrecisionLocation *PrecisionLocation
	Remarks           *Remarks
	Links             []*Link
	Chat              *Chat
	Marti             *Marti
	Emergency         *Emergency

	// Unknown holds detail children the codec has no typed structure for,
	// in wire order.
	Unknown []*Node
}

// Contact carries the human-facing identity of the producing node.
type Contact struct {
	XMLName  xml.Name `xml:"contact"`
	Callsign string   `xml:"callsign,attr,omitempty"`
	Endpoint string   `xml:"endpoint,attr,omitempty"`
	Phone    string   `xml:"phone,attr,omitempty"`
}

// Group is the team membership element (__group on the wire).
type Group struct {
	XMLName xml.Name `xml:"__group"`
	Name    string   `xml:"name,attr,omitempty"`
	Role    string   `xml:"role,attr,omitempty"`
}

// Track carries motion: speed in meters per second, course in degrees true.
type Track struct {
	XMLName xml.Name `xml:"track"`
	Speed   float64  `xml:"speed,attr"`
	Course  float64  `xml:"course,attr"`
}

// Status carries device state. Battery is a percentage.
type Status struct {
	XMLName   xml.Name `xml:"status"`
	Battery   int      `xml:"battery,attr,omitempty"`
	Readiness string   `xml:"readiness,attr,omitempty"`
}

// PrecisionLocation records where the position fix came from.
type PrecisionLocation struct {
	XMLName     xml.Name `xml:"precisionlocation"`
	Geopointsrc string   `xml:"geopointsrc,attr,omitempty"`
	Altsrc      string   `xml:"altsrc,attr,omitempty"`
}

// Remarks is free text. Chat messages carry their body here.
type Remarks struct {
	XMLName xml.Name `xml:"remarks"`
	Source  string   `xml:"source,attr,omitempty"`
	To      string   `xml:"to,attr,omitempty"`
	Time    string   `xml:"time,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Link relates this event to another uid. Deletion events point at their
// target through a link; route events carry one link per leg.
type Link struct {
	XMLName  xml.Name `xml:"link"`
	UID      string   `xml:"uid,attr,omitempty"`
	Type     string   `xml:"type,attr,omitempty"`
	Relation string   `xml:"relation,attr,omitempty"`
	Point    string   `xml:"point,attr,omitempty"`
	Callsign string   `xml:"callsign,attr,omitempty"`
}

// Chat is the GeoChat metadata element (__chat on the wire).
type Chat struct {
	XMLName        xml.Name `xml:"__chat"`
	ID             string   `xml:"id,attr,omitempty"`
	Chatroom       string   `xml:"chatroom,attr,omitempty"`
	SenderCallsign string   `xml:"senderCallsign,attr,omitempty"`
	GroupOwner     string   `xml:"groupOwner,attr,omitempty"`
	MessageID      string   `xml:"messageId,attr,omitempty"`
	Parent         string   `xml:"parent,attr,omitempty"`
	ChatGrp        *ChatGrp `xml:"chatgrp"`
}

// ChatGrp names the chat participants.
type ChatGrp struct {
	XMLName xml.Name `xml:"chatgrp"`
	ID      string   `xml:"id,attr,omitempty"`
	UID0    string   `xml:"uid0,attr,omitempty"`
	UID1    string   `xml:"uid1,attr,omitempty"`
}

// Marti addresses an event to specific callsigns instead of everyone.
type Marti struct {
	XMLName xml.Name    `xml:"marti"`
	Dest    []MartiDest `xml:"dest"`
}

// MartiDest is a single addressed recipient.
type MartiDest struct {
	XMLName  xml.Name `xml:"dest"`
	Callsign string   `xml:"callsign,attr,omitempty"`
	UID      string   `xml:"uid,attr,omitempty"`
}

// Emergency is the beacon element on b-a-o events. The sender callsign rides
// as character data; cancel marks a b-a-o-c withdrawal.
type Emergency struct {
	XMLName  xml.Name `xml:"emergency"`
	Type     string   `xml:"type,attr,omitempty"`
	Cancel   bool     `xml:"cancel,attr,omitempty"`
	Callsign string   `xml:",chardata"`
}

// DestCallsigns lists the marti-addressed recipients, or nil when the event
// is for everyone.
func (det *Detail) DestCallsigns() []string {
	if det == nil || det.Marti == nil || len(det.Marti.Dest) == 0 {
		return nil
	}
	out := make([]string, 0, len(det.Marti.Dest))
	for _, d := range det.Marti.Dest {
		if d.Callsign != "" {
			out = append(out, d.Callsign)
		}
	}
	return out
}

// UnmarshalXML decodes the detail element child by child. Recognized children
// land in their typed fields; the rest are preserved as raw nodes.
func (det *Detail) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := det.decodeChild(d, t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (det *Detail) decodeChild(d *xml.Decoder, start xml.StartElement) error {
	switch start.Name.Local {
	case "contact":
		det.Contact = &Contact{}
		return d.DecodeElement(det.Contact, &start)
	case "__group":
		det.Group = &Group{}
		return d.DecodeElement(det.Group, &start)
	case "track":
		det.Track = &Track{}
		return d.DecodeElement(det.Track, &start)
	case "status":
		det.Status = &Status{}
		return d.DecodeElement(det.Status, &start)
	case "precisionlocation":
		det.PrecisionLocation = &PrecisionLocation{}
		return d.DecodeElement(det.PrecisionLocation, &start)
	case "remarks":
		det.Remarks = &Remarks{}
		return d.DecodeElement(det.Remarks, &start)
	case "link":
		l := &Link{}
		if err := d.DecodeElement(l, &start); err != nil {
			return err
		}
		det.Links = append(det.Links, l)
		return nil
	case "__chat":
		det.Chat = &Chat{}
		return d.DecodeElement(det.Chat, &start)
	case "marti":
		det.Marti = &Marti{}
		return d.DecodeElement(det.Marti, &start)
	case "emergency":
		det.Emergency = &Emergency{}
		return d.DecodeElement(det.Emergency, &start)
	default:
		n := &Node{}
		if err := d.DecodeElement(n, &start); err != nil {
			return err
		}
		det.Unknown = append(det.Unknown, n)
		return nil
	}
}

// MarshalXML emits typed children in a fixed order, then preserved unknowns
// in their original order, so serialization is deterministic.
func (det *Detail) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "detail"}
	start.Attr = nil
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	children := []any{}
	if det.Contact != nil {
		children = append(children, det.Contact)
	}
	if det.Group != nil {
		children = append(children, det.Group)
	}
	if det.Track != nil {
		children = append(children, det.Track)
	}
	if det.Status != nil {
		children = append(children, det.Status)
	}
	if det.PrecisionLocation != nil {
		children = append(children, det.PrecisionLocation)
	}
	if det.Remarks != nil {
		children = append(children, det.Remarks)
	}
	for _, l := range det.Links {
		children = append(children, l)
	}
	if det.Chat != nil {
		children = append(children, det.Chat)
	}
	if det.Marti != nil {
		children = append(children, det.Marti)
	}
	if det.Emergency != nil {
		children = append(children, det.Emergency)
	}
	for _, n := range det.Unknown {
		children = append(children, n)
	}

	for _, child := range children {
		if err := e.Encode(child); err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}

// Node is a raw XML element preserved without interpretation: name,
// attributes, character data, and children.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// NewNode builds a raw element with the given attributes. Attribute order is
// sorted by name so output is stable regardless of map iteration.
func NewNode(name string, attrs map[string]string) *Node {
	n := &Node{XMLName: xml.Name{Local: name}}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: attrs[k]})
	}
	return n
}

// Attr returns the named attribute's value, or "".
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// First returns the first child with the given element name. Safe on nil
// receivers so lookups chain.
func (n *Node) First(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// Add appends a child element and returns it for chaining.
func (n *Node) Add(name string, attrs map[string]string) *Node {
	child := NewNode(name, attrs)
	n.Children = append(n.Children, child)
	return child
}
