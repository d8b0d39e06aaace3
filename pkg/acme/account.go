package acme

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/registration"

	"github.com/omnitak/takcore/errors"
)

// Account is the ACME account identity. It satisfies lego's
// registration.User interface. The registration resource lives in
// account.json, the private key separately in account.key.
type Account struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`
	key          crypto.PrivateKey
}

func (a *Account) GetEmail() string                        { return a.Email }
func (a *Account) GetRegistration() *registration.Resource { return a.Registration }
func (a *Account) GetPrivateKey() crypto.PrivateKey        { return a.key }

func (c *Client) accountPath() string { return filepath.Join(c.cfg.StoragePath, "account.json") }
func (c *Client) accountKeyPath() string {
	return filepath.Join(c.cfg.StoragePath, "account.key")
}

// ensureAccount loads the account persisted under StoragePath, or
// generates a fresh P-256 key and saves a new unregistered account.
func (c *Client) ensureAccount() error {
	loaded, err := c.loadAccount()
	if err != nil || loaded {
		return err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return errors.WrapFatal(err, "acme", "ensureAccount", "generate account key")
	}

	c.account = &Account{Email: c.cfg.Email, key: key}
	return c.saveAccount()
}

// loadAccount reads the persisted account, reporting false when none
// exists yet.
func (c *Client) loadAccount() (bool, error) {
	raw, err := os.ReadFile(c.accountPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapFatal(err, "acme", "loadAccount", "read account file")
	}

	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return false, errors.WrapFatal(err, "acme", "loadAccount", "unmarshal account")
	}

	keyPEM, err := os.ReadFile(c.accountKeyPath())
	if err != nil {
		return false, errors.WrapFatal(err, "acme", "loadAccount", "read account key")
	}
	account.key, err = certcrypto.ParsePEMPrivateKey(keyPEM)
	if err != nil {
		return false, errors.WrapFatal(err, "acme", "loadAccount", "parse account key")
	}

	c.account = &account
	return true, nil
}

func (c *Client) saveAccount() error {
	raw, err := json.MarshalIndent(c.account, "", "  ")
	if err != nil {
		return errors.WrapFatal(err, "acme", "saveAccount", "marshal account")
	}
	if err := os.WriteFile(c.accountPath(), raw, 0600); err != nil {
		return errors.WrapFatal(err, "acme", "saveAccount", "write account file")
	}
	if err := os.WriteFile(c.accountKeyPath(), certcrypto.PEMEncode(c.account.key), 0600); err != nil {
		return errors.WrapFatal(err, "acme", "saveAccount", "write account key")
	}
	return nil
}
