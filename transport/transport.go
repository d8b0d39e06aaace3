// Package transport provides client connections to TAK servers over TCP,
// TLS, UDP, and WebSocket.
//
// The protocol layers above depend only on the Dialer and Conn interfaces
// here; socket details, stream framing, and reconnect handling stay inside
// this package. Inbound delivery is callback-based: each connection runs
// its own dispatch goroutine, so a registered callback never runs on the
// caller's goroutine and OnMessage(nil) is an atomic unsubscribe.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/omnitak/takcore/errors"
)

// Protocol selects the wire transport for a server connection.
type Protocol string

// Supported protocols.
const (
	ProtocolTCP       Protocol = "tcp"
	ProtocolUDP       Protocol = "udp"
	ProtocolTLS       Protocol = "tls"
	ProtocolWebSocket Protocol = "websocket"
)

// Config describes one server endpoint. Certificate bundles are resolved
// by the caller; this package treats TLS as an opaque, ready-to-use
// configuration.
type Config struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`

	// Path is the request path for WebSocket endpoints; other
	// protocols ignore it.
	Path string `json:"path,omitempty"`

	// TLS is required for ProtocolTLS and upgrades ProtocolWebSocket
	// to wss when set.
	TLS *tls.Config `json:"-"`

	ConnectTimeout time.Duration `json:"connectTimeout,omitempty"`
	WriteTimeout   time.Duration `json:"writeTimeout,omitempty"`

	// Reconnect enables automatic redial with backoff after a lost
	// connection. The retry policy lives here, not in the layers above.
	Reconnect      bool          `json:"reconnect"`
	ReconnectDelay time.Duration `json:"reconnectDelay,omitempty"`

	// MaxEventSize caps one framed event read from the stream.
	MaxEventSize int `json:"maxEventSize,omitempty"`
}

// Validate checks the endpoint description.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.WrapInvalid(fmt.Errorf("empty host"),
			"transport", "Validate", "host validation")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", c.Port),
			"transport", "Validate", "port validation")
	}
	switch c.Protocol {
	case ProtocolTCP, ProtocolUDP, ProtocolWebSocket:
	case ProtocolTLS:
		if c.TLS == nil {
			return errors.WrapInvalid(fmt.Errorf("protocol tls requires a tls config"),
				"transport", "Validate", "tls validation")
		}
	default:
		return errors.WrapInvalid(fmt.Errorf("unknown protocol %q", c.Protocol),
			"transport", "Validate", "protocol validation")
	}
	return nil
}

// Address returns the host:port form dialers use.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Status is a point-in-time connection snapshot.
type Status struct {
	Connected        bool   `json:"connected"`
	MessagesSent     int64  `json:"messagesSent"`
	MessagesReceived int64  `json:"messagesReceived"`
	Reconnects       int64  `json:"reconnects"`
	LastError        string `json:"lastError,omitempty"`
}

// Conn is one established server connection.
type Conn interface {
	// Send writes one framed event to the peer.
	Send(payload []byte) error
	// OnMessage registers the inbound delivery callback. Passing nil
	// unregisters it; no delivery happens after OnMessage(nil) returns.
	// The payload slice is owned by the callback.
	OnMessage(fn func(payload []byte))
	// Status reports liveness and traffic counters.
	Status() Status
	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer establishes connections for the federation layer. NetDialer is
// the production implementation; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Conn, error)
}
