package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/pkg/security"
	"github.com/omnitak/takcore/transport"
)

func TestResolveProtocol(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		useTLS   bool
		want     transport.Protocol
		wantTLS  bool
		wantErr  bool
	}{
		{"empty defaults to tcp", "", false, transport.ProtocolTCP, false, false},
		{"tcp", "tcp", false, transport.ProtocolTCP, false, false},
		{"tcp with useTls upgrades", "tcp", true, transport.ProtocolTLS, true, false},
		{"empty with useTls upgrades", "", true, transport.ProtocolTLS, true, false},
		{"tls", "tls", false, transport.ProtocolTLS, true, false},
		{"ssl alias", "ssl", false, transport.ProtocolTLS, true, false},
		{"udp", "udp", false, transport.ProtocolUDP, false, false},
		{"udp ignores useTls", "udp", true, transport.ProtocolUDP, false, false},
		{"websocket", "websocket", false, transport.ProtocolWebSocket, false, false},
		{"ws alias", "ws", false, transport.ProtocolWebSocket, false, false},
		{"ws with useTls", "ws", true, transport.ProtocolWebSocket, true, false},
		{"wss", "wss", false, transport.ProtocolWebSocket, true, false},
		{"case insensitive", "TLS", false, transport.ProtocolTLS, true, false},
		{"unknown", "carrier-pigeon", false, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto, needsTLS, err := resolveProtocol(tt.protocol, tt.useTLS)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown protocol")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, proto)
			assert.Equal(t, tt.wantTLS, needsTLS)
		})
	}
}

func TestServerConfig_TransportConfig(t *testing.T) {
	sc := ServerConfig{
		Host:             "tak.example.org",
		Port:             8087,
		Protocol:         "tcp",
		Reconnect:        true,
		ReconnectDelayMS: 2500,
	}

	tc, err := sc.TransportConfig(security.Config{})
	require.NoError(t, err)

	assert.Equal(t, "tak.example.org", tc.Host)
	assert.Equal(t, 8087, tc.Port)
	assert.Equal(t, transport.ProtocolTCP, tc.Protocol)
	assert.True(t, tc.Reconnect)
	assert.Equal(t, 2500*time.Millisecond, tc.ReconnectDelay)
	assert.Nil(t, tc.TLS)
}

func TestServerConfig_TransportConfig_TLS(t *testing.T) {
	sc := ServerConfig{
		Host:     "tak.example.org",
		Port:     8089,
		Protocol: "tls",
	}

	// Default client identity, system CA pool only
	tc, err := sc.TransportConfig(security.Config{})
	require.NoError(t, err)
	require.NotNil(t, tc.TLS)
	assert.Equal(t, transport.ProtocolTLS, tc.Protocol)
	assert.Equal(t, "tak.example.org", tc.TLS.ServerName)
}

func TestServerConfig_TransportConfig_NamedCertificate(t *testing.T) {
	sec := security.Config{
		Certificates: map[string]security.ClientTLSConfig{
			"main": {InsecureSkipVerify: true},
		},
	}

	sc := ServerConfig{
		Host:          "tak.example.org",
		Port:          8089,
		Protocol:      "tls",
		CertificateID: "main",
	}

	tc, err := sc.TransportConfig(sec)
	require.NoError(t, err)
	require.NotNil(t, tc.TLS)
	assert.True(t, tc.TLS.InsecureSkipVerify)

	// Unknown reference fails
	sc.CertificateID = "missing"
	_, err = sc.TransportConfig(sec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate 'missing' not defined")
}

func TestServerConfig_TransportConfig_BadProtocol(t *testing.T) {
	sc := ServerConfig{Host: "tak.example.org", Port: 8089, Protocol: "spdy"}

	_, err := sc.TransportConfig(security.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown protocol 'spdy'")
}

func TestServerDefinition_EffectivePolicy(t *testing.T) {
	// Zero policy falls back to the default exchange-everything policy
	def := ServerDefinition{ID: "tak-main"}
	policy := def.EffectivePolicy()
	assert.Equal(t, federation.DefaultPolicy(), policy)
	assert.True(t, policy.Bidirectional)

	// Any configured field keeps the policy as written
	def.Policy = federation.Policy{
		ReceiveTypes: []federation.DataType{federation.DataFriendly},
	}
	policy = def.EffectivePolicy()
	assert.Equal(t, []federation.DataType{federation.DataFriendly}, policy.ReceiveTypes)
	assert.False(t, policy.Bidirectional)

	// A send-only policy is not mistaken for the zero value
	def.Policy = federation.Policy{
		SendTypes: []federation.DataType{federation.DataAll},
	}
	policy = def.EffectivePolicy()
	assert.Empty(t, policy.ReceiveTypes)
	assert.Equal(t, []federation.DataType{federation.DataAll}, policy.SendTypes)
}
