package acme

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certificate"

	"github.com/omnitak/takcore/errors"
)

func (c *Client) certPath() string { return filepath.Join(c.cfg.StoragePath, "certificate.pem") }
func (c *Client) certKeyPath() string {
	return filepath.Join(c.cfg.StoragePath, "certificate.key")
}

// ObtainCertificate requests a fresh certificate for the configured
// domains and persists it under StoragePath.
func (c *Client) ObtainCertificate(_ context.Context) (*tls.Certificate, error) {
	res, err := c.lego.Certificate.Obtain(certificate.ObtainRequest{
		Domains: c.cfg.Domains,
		Bundle:  true,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "acme", "ObtainCertificate", "obtain certificate")
	}

	cert, err := c.persist(res.Certificate, res.PrivateKey)
	if err != nil {
		return nil, err
	}
	c.logger.Info("obtained certificate", "domains", c.cfg.Domains)
	return cert, nil
}

// RenewCertificateIfNeeded loads the stored certificate and renews it when
// its expiry falls inside the RenewBefore window. It returns (nil, false,
// nil) when no certificate is stored yet, and reports via the bool whether
// a renewal actually happened.
func (c *Client) RenewCertificateIfNeeded(_ context.Context) (*tls.Certificate, bool, error) {
	if _, err := os.Stat(c.certPath()); os.IsNotExist(err) {
		return nil, false, nil
	}

	current, err := tls.LoadX509KeyPair(c.certPath(), c.certKeyPath())
	if err != nil {
		return nil, false, errors.WrapFatal(err, "acme", "RenewCertificateIfNeeded", "load stored certificate")
	}
	leaf, err := x509.ParseCertificate(current.Certificate[0])
	if err != nil {
		return nil, false, errors.WrapFatal(err, "acme", "RenewCertificateIfNeeded", "parse stored certificate")
	}

	if time.Now().Before(leaf.NotAfter.Add(-c.cfg.RenewBefore)) {
		return &current, false, nil
	}

	certPEM, err := os.ReadFile(c.certPath())
	if err != nil {
		return nil, false, errors.WrapFatal(err, "acme", "RenewCertificateIfNeeded", "read certificate for renewal")
	}
	res, err := c.lego.Certificate.Renew(certificate.Resource{
		Domain:      c.cfg.Domains[0],
		Certificate: certPEM,
	}, true, false, "")
	if err != nil {
		return nil, false, errors.WrapTransient(err, "acme", "RenewCertificateIfNeeded", "renew certificate")
	}

	renewed, err := c.persist(res.Certificate, res.PrivateKey)
	if err != nil {
		return nil, false, err
	}
	c.logger.Info("renewed certificate", "domains", c.cfg.Domains, "expired_at", leaf.NotAfter)
	return renewed, true, nil
}

// persist writes the PEM pair under StoragePath and loads it back as a
// tls.Certificate.
func (c *Client) persist(certPEM, keyPEM []byte) (*tls.Certificate, error) {
	if err := os.WriteFile(c.certPath(), certPEM, 0644); err != nil {
		return nil, errors.WrapFatal(err, "acme", "persist", "write certificate")
	}
	if err := os.WriteFile(c.certKeyPath(), keyPEM, 0600); err != nil {
		return nil, errors.WrapFatal(err, "acme", "persist", "write certificate key")
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.WrapFatal(err, "acme", "persist", "load certificate pair")
	}
	return &cert, nil
}

// StartRenewalLoop checks for renewal every checkInterval until ctx ends,
// invoking onRenewal with each renewed certificate. Failed checks are
// logged and retried at the next tick; a CA outage must not take the
// listener down with it.
func (c *Client) StartRenewalLoop(ctx context.Context, checkInterval time.Duration, onRenewal func(*tls.Certificate)) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cert, renewed, err := c.RenewCertificateIfNeeded(ctx)
			if err != nil {
				c.logger.Warn("certificate renewal check failed", "error", err)
				continue
			}
			if renewed && onRenewal != nil {
				onRenewal(cert)
			}
		}
	}
}
