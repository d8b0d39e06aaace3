// Package acme automates certificate issuance and renewal for TLS-enabled
// listeners such as the status gateway, speaking the ACME protocol against
// a private CA (step-ca style deployments) or a public one.
package acme

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/challenge/tlsalpn01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/omnitak/takcore/errors"
)

// Config describes the CA to talk to and the certificate to maintain.
// Field names follow the security.acme config section.
type Config struct {
	DirectoryURL  string
	Email         string
	Domains       []string
	ChallengeType string // "http-01" (default) or "tls-alpn-01"
	RenewBefore   time.Duration
	StoragePath   string
	CABundle      string // extra trust for a private CA's own TLS endpoint

	// Logger defaults to slog.Default with component=acme.
	Logger *slog.Logger
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.DirectoryURL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("directoryUrl is required"),
			"acme", "Validate", "check directory URL")
	}
	if c.Email == "" {
		return errors.WrapInvalid(
			fmt.Errorf("email is required"),
			"acme", "Validate", "check account email")
	}
	if len(c.Domains) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("at least one domain is required"),
			"acme", "Validate", "check domains")
	}
	switch c.ChallengeType {
	case "", "http-01", "tls-alpn-01":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("challengeType must be 'http-01' or 'tls-alpn-01'"),
			"acme", "Validate", "check challenge type")
	}
	if c.StoragePath == "" {
		return errors.WrapInvalid(
			fmt.Errorf("storagePath is required"),
			"acme", "Validate", "check storage path")
	}
	if c.RenewBefore <= 0 {
		c.RenewBefore = 8 * time.Hour
	}
	return nil
}

// Client maintains one certificate: it registers an account with the CA,
// obtains the certificate, and renews it inside the RenewBefore window.
// Account material and issued certificates persist under StoragePath so a
// restart does not re-register or re-issue.
type Client struct {
	cfg     Config
	lego    *lego.Client
	account *Account
	logger  *slog.Logger
}

// NewClient validates cfg, loads or creates the ACME account under
// cfg.StoragePath, and registers it with the CA if it has no registration
// yet. The CA must be reachable.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.StoragePath, 0700); err != nil {
		return nil, errors.WrapFatal(err, "acme", "NewClient", "create storage directory")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "acme")
	}

	c := &Client{cfg: cfg, logger: logger}
	if err := c.ensureAccount(); err != nil {
		return nil, err
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect builds the lego client, installs the challenge solver, and
// registers the account if this is its first run.
func (c *Client) connect() error {
	legoCfg := lego.NewConfig(c.account)
	legoCfg.CADirURL = c.cfg.DirectoryURL
	legoCfg.Certificate.KeyType = certcrypto.EC256

	if c.cfg.CABundle != "" {
		httpClient, err := caBundleHTTPClient(c.cfg.CABundle)
		if err != nil {
			return err
		}
		legoCfg.HTTPClient = httpClient
	}

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return errors.WrapFatal(err, "acme", "connect", "create ACME client")
	}

	switch c.cfg.ChallengeType {
	case "", "http-01":
		err = client.Challenge.SetHTTP01Provider(http01.NewProviderServer("", "80"))
	case "tls-alpn-01":
		err = client.Challenge.SetTLSALPN01Provider(tlsalpn01.NewProviderServer("", "443"))
	}
	if err != nil {
		return errors.WrapFatal(err, "acme", "connect", "install challenge solver")
	}

	if c.account.Registration == nil {
		reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return errors.WrapTransient(err, "acme", "connect", "register account")
		}
		c.account.Registration = reg
		if err := c.saveAccount(); err != nil {
			return err
		}
		c.logger.Info("registered ACME account", "email", c.cfg.Email, "directory", c.cfg.DirectoryURL)
	}

	c.lego = client
	return nil
}

// caBundleHTTPClient returns an HTTP client that trusts only the CAs in
// the bundle file, for directories served by a private CA's own cert.
func caBundleHTTPClient(bundlePath string) (*http.Client, error) {
	caPEM, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, errors.WrapFatal(err, "acme", "connect", "read CA bundle")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.WrapFatal(
			fmt.Errorf("no certificates in %s", bundlePath),
			"acme", "connect", "parse CA bundle")
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}
