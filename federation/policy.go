package federation

import "github.com/omnitak/takcore/cot"

// Policy governs, per federated server, which data may flow in and out.
// Rejection by policy is a deliberate silent no-op everywhere it is
// applied, never an error.
type Policy struct {
	// ReceiveTypes lists the categories accepted from this server.
	ReceiveTypes []DataType `json:"receiveTypes"`
	// SendTypes lists the categories this server may be sent.
	SendTypes []DataType `json:"sendTypes"`
	// AutoShare relays events received from this server to the other
	// connected servers (subject to each target's own send policy).
	AutoShare bool `json:"autoShare"`
	// BlueTeamOnly restricts the send path to friendly ("a-f-") events
	// regardless of SendTypes.
	BlueTeamOnly bool `json:"blueTeamOnly"`
	// Bidirectional marks the server as a full exchange partner.
	// Receive-only servers (Bidirectional false) never get relayed
	// traffic from other servers.
	Bidirectional bool `json:"bidirectional"`
}

// DefaultPolicy exchanges everything both ways but does not relay:
// auto-share stays an explicit opt-in per server.
func DefaultPolicy() Policy {
	return Policy{
		ReceiveTypes:  []DataType{DataAll},
		SendTypes:     []DataType{DataAll},
		Bidirectional: true,
	}
}

// ShouldReceive reports whether an inbound event of the given category is
// accepted from this server. An empty ReceiveTypes set accepts nothing.
func (p Policy) ShouldReceive(dt DataType) bool {
	return typeAllowed(p.ReceiveTypes, dt)
}

// ShouldSend reports whether an event of the given CoT type may go out to
// this server. BlueTeamOnly refuses anything that is not a friendly atom
// before SendTypes is consulted.
func (p Policy) ShouldSend(eventType string) bool {
	if p.BlueTeamOnly && !cot.IsFriendly(eventType) {
		return false
	}
	return typeAllowed(p.SendTypes, ClassifyDataType(eventType))
}

func typeAllowed(set []DataType, dt DataType) bool {
	for _, t := range set {
		if t == DataAll || t == dt {
			return true
		}
	}
	return false
}
