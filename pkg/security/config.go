// Package security provides shared TLS configuration types.
package security

// Config holds the daemon-wide security configuration.
type Config struct {
	TLS TLSConfig `json:"tls,omitempty"`

	// Certificates holds named client identities referenced by a server
	// entry's certificateId. Each one carries the trust and key material
	// for a single federated peer; servers without a certificateId fall
	// back to TLS.Client.
	Certificates map[string]ClientTLSConfig `json:"certificates,omitempty"`
}

// TLSConfig holds TLS configuration for the status gateway listener and
// the default outbound client identity.
type TLSConfig struct {
	Server ServerTLSConfig `json:"server,omitempty"`
	Client ClientTLSConfig `json:"client,omitempty"`
}

// ACMEConfig holds ACME client configuration for automated certificate
// management against a private CA (step-ca style deployments).
type ACMEConfig struct {
	Enabled       bool     `json:"enabled"`
	DirectoryURL  string   `json:"directoryUrl,omitempty"`
	Email         string   `json:"email,omitempty"`
	Domains       []string `json:"domains,omitempty"`
	ChallengeType string   `json:"challengeType,omitempty"` // "http-01" or "tls-alpn-01"
	RenewBefore   string   `json:"renewBefore,omitempty"`   // duration string, 8h when unset
	StoragePath   string   `json:"storagePath,omitempty"`
	CABundle      string   `json:"caBundle,omitempty"`
}

// ServerMTLSConfig holds mTLS configuration for the gateway listener
// (client certificate validation).
type ServerMTLSConfig struct {
	Enabled           bool     `json:"enabled"`
	ClientCAFiles     []string `json:"clientCaFiles,omitempty"`
	RequireClientCert bool     `json:"requireClientCert,omitempty"` // false verifies only if presented
	AllowedClientCNs  []string `json:"allowedClientCns,omitempty"`  // leaf CN allowlist
}

// ServerTLSConfig holds TLS configuration for the status gateway listener.
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	Mode       string `json:"mode,omitempty"` // "manual" unless set to "acme"
	CertFile   string `json:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty"`
	MinVersion string `json:"minVersion,omitempty"` // "1.2" or "1.3"

	// ACME mode
	ACME ACMEConfig `json:"acme,omitempty"`

	// mTLS applies in both certificate modes.
	MTLS ServerMTLSConfig `json:"mtls,omitempty"`
}

// ClientMTLSConfig holds the client certificate presented to a federated
// server that demands one.
type ClientMTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
}

// ClientTLSConfig holds TLS configuration for outbound connections.
// The system CA bundle is always trusted; CAFiles add trust on top,
// which is how self-signed federation servers get verified.
type ClientTLSConfig struct {
	CAFiles            []string `json:"caFiles,omitempty"`
	InsecureSkipVerify bool     `json:"insecureSkipVerify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"minVersion,omitempty"`

	MTLS ClientMTLSConfig `json:"mtls,omitempty"`
}
