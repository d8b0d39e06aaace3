// Package tlsutil builds tls.Config values from security config: server-side
// configs for the status gateway listener and client-side configs for outbound
// connections to federated TAK servers.
package tlsutil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/pkg/acme"
	"github.com/omnitak/takcore/pkg/security"
)

// LoadServerTLSConfig builds the listener config from a manual cert/key
// pair. It returns (nil, nil) when TLS is disabled.
func LoadServerTLSConfig(cfg security.ServerTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfig", "load key pair")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   minTLSVersion(cfg.MinVersion),
	}, nil
}

// LoadClientTLSConfig builds the verification side of an outbound
// connection. The system CA bundle is always trusted; CAFiles add the
// federation's own CAs on top, which is how self-signed TAK servers get
// verified.
func LoadClientTLSConfig(cfg security.ClientTLSConfig) (*tls.Config, error) {
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if err := appendPEMCerts(rootCAs, cfg.CAFiles, "LoadClientTLSConfig"); err != nil {
		return nil, err
	}

	return &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         minTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, nil
}

// LoadServerTLSConfigWithMTLS builds the listener config, enforcing
// client certificates when the mTLS section asks for them.
func LoadServerTLSConfigWithMTLS(cfg security.ServerTLSConfig, mtls security.ServerMTLSConfig) (*tls.Config, error) {
	tlsConfig, err := LoadServerTLSConfig(cfg)
	if err != nil || tlsConfig == nil || !mtls.Enabled {
		return tlsConfig, err
	}
	if err := applyServerMTLS(tlsConfig, mtls); err != nil {
		return nil, err
	}
	return tlsConfig, nil
}

// LoadClientTLSConfigWithMTLS builds an outbound config that presents a
// client certificate, for federated servers that demand one.
func LoadClientTLSConfigWithMTLS(cfg security.ClientTLSConfig, mtls security.ClientMTLSConfig) (*tls.Config, error) {
	tlsConfig, err := LoadClientTLSConfig(cfg)
	if err != nil || !mtls.Enabled {
		return tlsConfig, err
	}

	pair, err := tls.LoadX509KeyPair(mtls.CertFile, mtls.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfigWithMTLS", "load client key pair")
	}
	tlsConfig.Certificates = []tls.Certificate{pair}
	return tlsConfig, nil
}

// applyServerMTLS installs the client CA pool and auth policy on an
// existing listener config.
func applyServerMTLS(tlsConfig *tls.Config, mtls security.ServerMTLSConfig) error {
	clientCAs := x509.NewCertPool()
	if err := appendPEMCerts(clientCAs, mtls.ClientCAFiles, "applyServerMTLS"); err != nil {
		return err
	}
	tlsConfig.ClientCAs = clientCAs

	if mtls.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	if len(mtls.AllowedClientCNs) > 0 {
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
			return checkAllowedCN(verifiedChains, mtls.AllowedClientCNs)
		}
	}
	return nil
}

// checkAllowedCN runs after chain verification and accepts only
// leaf certificates whose CN is on the allowlist.
func checkAllowedCN(chains [][]*x509.Certificate, allowedCNs []string) error {
	if len(chains) == 0 {
		return fmt.Errorf("no verified client certificate chain")
	}

	cn := chains[0][0].Subject.CommonName
	for _, allowed := range allowedCNs {
		if cn == allowed {
			return nil
		}
	}
	return fmt.Errorf("client CN %q not allowed", cn)
}

// appendPEMCerts adds every certificate in the named PEM files to pool.
func appendPEMCerts(pool *x509.CertPool, files []string, op string) error {
	for _, f := range files {
		caPEM, err := os.ReadFile(f)
		if err != nil {
			return errors.WrapFatal(err, "tlsutil", op, fmt.Sprintf("read CA file %s", f))
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return errors.WrapFatal(
				fmt.Errorf("no certificates in %s", f),
				"tlsutil", op, "parse CA file")
		}
	}
	return nil
}

// minTLSVersion maps the config string onto a crypto/tls constant,
// defaulting to 1.2 for anything unrecognized.
func minTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// LoadServerTLSConfigWithACME builds the listener config with
// ACME-managed certificates: it obtains or renews the certificate on
// startup, then keeps it fresh from a background renewal loop. Handshakes
// read the certificate through an atomic pointer, so a renewal swaps it
// without disturbing live connections. If the CA cannot be reached and a
// manual cert/key pair is configured, that pair serves as the fallback.
//
// The returned cleanup stops the renewal loop; it is non-nil whenever the
// error is nil.
func LoadServerTLSConfigWithACME(ctx context.Context, cfg security.ServerTLSConfig) (*tls.Config, func(), error) {
	if cfg.Mode != "acme" || !cfg.ACME.Enabled {
		tlsConfig, err := LoadServerTLSConfigWithMTLS(cfg, cfg.MTLS)
		return tlsConfig, func() {}, err
	}

	manualFallback := func(cause error) (*tls.Config, func(), error) {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, nil, cause
		}
		tlsConfig, err := LoadServerTLSConfigWithMTLS(cfg, cfg.MTLS)
		if err != nil {
			return nil, nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfigWithACME",
				"manual fallback after ACME failure")
		}
		return tlsConfig, func() {}, nil
	}

	client, err := newACMEClient(cfg.ACME)
	if err != nil {
		return manualFallback(err)
	}

	cert, _, err := client.RenewCertificateIfNeeded(ctx)
	if err != nil || cert == nil {
		cert, err = client.ObtainCertificate(ctx)
		if err != nil {
			return manualFallback(errors.WrapTransient(err, "tlsutil", "LoadServerTLSConfigWithACME",
				"obtain certificate"))
		}
	}

	var current atomic.Pointer[tls.Certificate]
	current.Store(cert)

	tlsConfig := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return current.Load(), nil
		},
		MinVersion: minTLSVersion(cfg.MinVersion),
	}
	if cfg.MTLS.Enabled {
		if err := applyServerMTLS(tlsConfig, cfg.MTLS); err != nil {
			return nil, nil, err
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.StartRenewalLoop(loopCtx, time.Hour, func(renewed *tls.Certificate) {
			current.Store(renewed)
		})
	}()

	cleanup := func() {
		cancel()
		<-done
	}
	return tlsConfig, cleanup, nil
}

// newACMEClient maps the security config section onto an acme.Config.
func newACMEClient(cfg security.ACMEConfig) (*acme.Client, error) {
	renewBefore, err := time.ParseDuration(cfg.RenewBefore)
	if err != nil {
		renewBefore = 8 * time.Hour
	}

	return acme.NewClient(acme.Config{
		DirectoryURL:  cfg.DirectoryURL,
		Email:         cfg.Email,
		Domains:       cfg.Domains,
		ChallengeType: cfg.ChallengeType,
		RenewBefore:   renewBefore,
		StoragePath:   cfg.StoragePath,
		CABundle:      cfg.CABundle,
	})
}
