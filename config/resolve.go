package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/pkg/security"
	"github.com/omnitak/takcore/pkg/tlsutil"
	"github.com/omnitak/takcore/transport"
)

// TransportConfig resolves the endpoint description into a dialable
// transport configuration, loading client TLS material from the
// security section when the protocol calls for it.
func (s ServerConfig) TransportConfig(sec security.Config) (transport.Config, error) {
	proto, needsTLS, err := resolveProtocol(s.Protocol, s.UseTLS)
	if err != nil {
		return transport.Config{}, err
	}

	tc := transport.Config{
		Host:           s.Host,
		Port:           s.Port,
		Protocol:       proto,
		Path:           s.Path,
		Reconnect:      s.Reconnect,
		ReconnectDelay: time.Duration(s.ReconnectDelayMS) * time.Millisecond,
	}

	if needsTLS {
		clientCfg := sec.TLS.Client
		if s.CertificateID != "" {
			named, ok := sec.Certificates[s.CertificateID]
			if !ok {
				return transport.Config{}, fmt.Errorf("certificate '%s' not defined under security.certificates", s.CertificateID)
			}
			clientCfg = named
		}

		tlsCfg, err := tlsutil.LoadClientTLSConfigWithMTLS(clientCfg, clientCfg.MTLS)
		if err != nil {
			return transport.Config{}, fmt.Errorf("load TLS material for %s:%d: %w", s.Host, s.Port, err)
		}
		// Verification needs the peer name; the dialer connects by
		// host:port, not by URL.
		tlsCfg.ServerName = s.Host
		tc.TLS = tlsCfg
	}

	return tc, nil
}

// resolveProtocol maps the document protocol string plus the useTls flag
// onto a transport protocol. tcp+useTls upgrades to tls; websocket+useTls
// keeps the websocket protocol and relies on the TLS config for wss.
func resolveProtocol(protocol string, useTLS bool) (transport.Protocol, bool, error) {
	switch strings.ToLower(protocol) {
	case "", "tcp":
		if useTLS {
			return transport.ProtocolTLS, true, nil
		}
		return transport.ProtocolTCP, false, nil
	case "tls", "ssl":
		return transport.ProtocolTLS, true, nil
	case "udp":
		return transport.ProtocolUDP, false, nil
	case "websocket", "ws":
		return transport.ProtocolWebSocket, useTLS, nil
	case "wss":
		return transport.ProtocolWebSocket, true, nil
	default:
		return "", false, fmt.Errorf("unknown protocol '%s'", protocol)
	}
}

// EffectivePolicy returns the configured sharing policy, or the default
// exchange-everything policy when the document omitted one entirely.
func (d ServerDefinition) EffectivePolicy() federation.Policy {
	p := d.Policy
	if len(p.ReceiveTypes) == 0 && len(p.SendTypes) == 0 &&
		!p.AutoShare && !p.BlueTeamOnly && !p.Bidirectional {
		return federation.DefaultPolicy()
	}
	return p
}
