package federation

import (
	"golang.org/x/time/rate"

	"github.com/omnitak/takcore/transport"
)

// Status is a federated server's connection state as the manager sees
// it. Transport-level liveness (a dropped socket mid-reconnect) shows up
// in the Server snapshot's Transport field, not here.
type Status string

// Connection states. Transitions: disconnected → connecting →
// {connected | error}; connected → disconnected on explicit disconnect;
// error → connecting on the next connect attempt.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Server is the public snapshot of one federated server. Snapshots are
// values; mutating one has no effect on the manager.
type Server struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	ConnectionID string           `json:"connectionId,omitempty"`
	Config       transport.Config `json:"config"`
	Policy       Policy           `json:"policy"`
	Status       Status           `json:"status"`
	LastError    string           `json:"lastError,omitempty"`
	// Transport carries the connection's own counters when connected.
	Transport transport.Status `json:"transport"`
}

// state is the manager's mutable record for one server. Guarded by the
// manager's mutex; conn and limiter are read by fan-out workers through
// snapshot accessors.
type state struct {
	def     Server
	conn    transport.Conn
	limiter *rate.Limiter
}

// snapshot returns the public view, including live transport counters.
func (s *state) snapshot() Server {
	out := s.def
	if s.conn != nil {
		out.Transport = s.conn.Status()
	}
	return out
}
