package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/pkg/security"
)

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		errMsg string
	}{
		{"empty", "", "empty config path"},
		{"absolute yaml", "/etc/takfed/takfed.yaml", ""},
		{"absolute json", "/etc/takfed/takfed.json", ""},
		{"relative inside working directory", "takfed.yml", ""},
		{"escapes working directory", "../../../etc/passwd.yaml", "outside working directory"},
		{"unsupported extension", "/etc/takfed/takfed.toml", "only JSON or YAML"},
		{"no extension", "/etc/takfed/takfed", "only JSON or YAML"},
		{"overlong", "/" + strings.Repeat("a", maxPathLen) + ".json", "path too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestSafeReadFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("regular file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "takfed.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: \"1.0.0\"\n"), 0644))

		data, err := safeReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "version: \"1.0.0\"\n", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := safeReadFile(filepath.Join(tmpDir, "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot stat")
	})

	t.Run("directory", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "dir.json")
		require.NoError(t, os.Mkdir(dir, 0755))

		_, err := safeReadFile(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})
}

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takfed.json")
	require.NoError(t, safeWriteFile(path, []byte(`{"version":"1.0.0"}`)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	err = safeWriteFile(filepath.Join(t.TempDir(), "takfed.txt"), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only JSON or YAML")
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("TAKCORE_NATS_URLS", ""))
	assert.NoError(t, validateEnvVar("TAKCORE_NATS_URLS", "nats://localhost:4222"))

	err := validateEnvVar("TAKCORE_IDENTITY_UID", strings.Repeat("x", maxEnvVarLen+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too long")

	err = validateEnvVar("TAKCORE_IDENTITY_UID", "uid\x00evil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null byte")
}

func TestValidateJSONDepth(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{"flat object", `{"version":"1.0.0"}`, ""},
		{"nested within limit", `{"servers":[{"policy":{"receiveTypes":["all"]}}]}`, ""},
		{"brackets inside strings ignored", `{"note":"{[{[","esc":"say \"hi\"}"}`, ""},
		{"empty document", ``, ""},
		{
			"too deep",
			strings.Repeat("[", maxJSONDepth+1) + strings.Repeat("]", maxJSONDepth+1),
			"too deep",
		},
		{"unbalanced close", `{"a":1}}`, "unbalanced"},
		{"unclosed", `{"a":{"b":1}`, "unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSONDepth([]byte(tt.doc))
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestConfig_ValidateSecurity(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "server.pem")
	keyFile := filepath.Join(tmpDir, "server.key")
	require.NoError(t, os.WriteFile(certFile, []byte("cert"), 0644))
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0600))

	t.Run("manual mode requires cert and key", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server.Enabled = true

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires certFile and keyFile")
	})

	t.Run("manual mode with existing pair", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server = security.ServerTLSConfig{
			Enabled:  true,
			CertFile: certFile,
			KeyFile:  keyFile,
		}

		assert.NoError(t, cfg.validateSecurity())
	})

	t.Run("manual mode with missing cert file", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server = security.ServerTLSConfig{
			Enabled:  true,
			CertFile: filepath.Join(tmpDir, "absent.pem"),
			KeyFile:  keyFile,
		}

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tls.server.certFile")
	})

	t.Run("acme mode needs no cert pair", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server = security.ServerTLSConfig{
			Enabled: true,
			Mode:    "acme",
			ACME: security.ACMEConfig{
				Enabled:      true,
				DirectoryURL: "https://ca.takfed.example.org/acme/acme/directory",
			},
		}

		assert.NoError(t, cfg.validateSecurity())
	})

	t.Run("acme mode requires directory URL", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server = security.ServerTLSConfig{
			Enabled: true,
			Mode:    "acme",
			ACME:    security.ACMEConfig{Enabled: true},
		}

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "acme.directoryUrl")
	})

	t.Run("acme mode still checks a configured fallback pair", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Server = security.ServerTLSConfig{
			Enabled:  true,
			Mode:     "acme",
			CertFile: filepath.Join(tmpDir, "absent.pem"),
			KeyFile:  keyFile,
			ACME: security.ACMEConfig{
				Enabled:      true,
				DirectoryURL: "https://ca.takfed.example.org/acme/acme/directory",
			},
		}

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tls.server.certFile")
	})

	t.Run("client CA file must exist", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Client.CAFiles = []string{filepath.Join(tmpDir, "absent-ca.pem")}

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tls.client.caFiles[0]")
	})

	t.Run("named certificate mtls needs a key pair", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.Certificates = map[string]security.ClientTLSConfig{
			"main": {MTLS: security.ClientMTLSConfig{Enabled: true}},
		}

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "certificates.main.mtls")
	})

	t.Run("bad client min version", func(t *testing.T) {
		cfg := &Config{}
		cfg.Security.TLS.Client.MinVersion = "1.1"

		err := cfg.validateSecurity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "minVersion")
	})
}
