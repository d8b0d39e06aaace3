//go:build integration

package acme

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// stepCA is a smallstep CA container with an ACME provisioner, plus its
// root certificate written to a bundle file the client can trust.
type stepCA struct {
	url    string
	bundle string
}

func startStepCA(t *testing.T) *stepCA {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "smallstep/step-ca:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"DOCKER_STEPCA_INIT_NAME":             "takfed test CA",
				"DOCKER_STEPCA_INIT_DNS_NAMES":        "localhost,step-ca",
				"DOCKER_STEPCA_INIT_PROVISIONER_NAME": "acme",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Serving HTTPS"),
				wait.ForListeningPort("9000/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start step-ca container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate step-ca: %v", err)
		}
	})

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	// The CA serves its directory over TLS signed by its own root, so
	// pull that root out for the client's CA bundle.
	reader, err := container.CopyFileFromContainer(ctx, "/home/step/certs/root_ca.crt")
	require.NoError(t, err, "copy root CA from container")
	defer reader.Close()
	rootCA, err := io.ReadAll(reader)
	require.NoError(t, err)

	bundle := filepath.Join(t.TempDir(), "root_ca.crt")
	require.NoError(t, os.WriteFile(bundle, rootCA, 0644))

	return &stepCA{
		url:    fmt.Sprintf("https://localhost:%s", port.Port()),
		bundle: bundle,
	}
}

func (ca *stepCA) clientConfig(storagePath string) Config {
	return Config{
		DirectoryURL:  ca.url + "/acme/acme/directory",
		Email:         "ops@takfed.example.org",
		Domains:       []string{"gw.takfed.example.org"},
		ChallengeType: "http-01",
		RenewBefore:   8 * time.Hour,
		StoragePath:   storagePath,
		CABundle:      ca.bundle,
	}
}

// Account registration needs no challenge validation, so it runs against
// the real CA end to end. Certificate issuance is not exercised here: the
// containerized CA would have to dial back into the host to validate
// http-01, which it cannot.
func TestIntegration_AccountRegistration(t *testing.T) {
	ca := startStepCA(t)
	storage := t.TempDir()

	client, err := NewClient(ca.clientConfig(storage))
	require.NoError(t, err)
	require.NotNil(t, client.account.Registration)
	assert.FileExists(t, filepath.Join(storage, "account.json"))
	assert.FileExists(t, filepath.Join(storage, "account.key"))

	// A second client over the same storage reuses the registration
	// instead of creating a second account.
	again, err := NewClient(ca.clientConfig(storage))
	require.NoError(t, err)
	require.NotNil(t, again.account.Registration)
	assert.Equal(t, client.account.Registration.URI, again.account.Registration.URI)
}

func TestIntegration_RenewWithoutStoredCertificate(t *testing.T) {
	ca := startStepCA(t)

	client, err := NewClient(ca.clientConfig(t.TempDir()))
	require.NoError(t, err)

	cert, renewed, err := client.RenewCertificateIfNeeded(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cert)
	assert.False(t, renewed)
}

func TestIntegration_DirectoryUnreachable(t *testing.T) {
	cfg := Config{
		DirectoryURL:  "https://127.0.0.1:1/acme/acme/directory",
		Email:         "ops@takfed.example.org",
		Domains:       []string{"gw.takfed.example.org"},
		ChallengeType: "http-01",
		RenewBefore:   8 * time.Hour,
		StoragePath:   t.TempDir(),
	}

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create ACME client")
}
