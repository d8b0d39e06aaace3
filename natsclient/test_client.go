package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient runs a throwaway NATS server in a container and hands out
// a connected Client. Integration tests across takcore use it instead
// of mocking the broker.
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
	cleanup   func()
}

type testConfig struct {
	jetstream    bool
	kv           bool
	kvBuckets    []string
	natsVersion  string
	timeout      time.Duration
	startTimeout time.Duration
}

// TestOption configures the test server and client.
type TestOption func(*testConfig)

// WithJetStream starts the server with JetStream enabled.
func WithJetStream() TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
	}
}

// WithKV enables JetStream KV. Implies WithJetStream.
func WithKV() TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
		cfg.kv = true
	}
}

// WithKVBuckets pre-creates buckets before the test runs. Implies
// WithKV.
func WithKVBuckets(buckets ...string) TestOption {
	return func(cfg *testConfig) {
		cfg.jetstream = true
		cfg.kv = true
		cfg.kvBuckets = append(cfg.kvBuckets, buckets...)
	}
}

// WithFastStartup shortens the connect and container-start timeouts
// for tests that spin up their own server per test.
func WithFastStartup() TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = 2 * time.Second
		cfg.startTimeout = 10 * time.Second
	}
}

func defaultTestConfig() *testConfig {
	return &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
}

// NewSharedTestClient starts a test server without a testing.T, for
// TestMain setups that share one container across a package. The
// caller owns cleanup via Terminate.
func NewSharedTestClient(opts ...TestOption) (*TestClient, error) {
	cfg := defaultTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return startTestClient(cfg)
}

// NewTestClient starts a test server and registers cleanup on t.
// Accepts testing.TB so benchmarks can use it too.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	cfg := defaultTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tc, err := startTestClient(cfg)
	if err != nil {
		t.Fatalf("Failed to start NATS test client: %v", err)
	}

	t.Cleanup(tc.cleanup)
	return tc
}

// startTestClient launches the container, connects a Client, and
// pre-creates any requested buckets. On any failure it tears down what
// it already started.
func startTestClient(cfg *testConfig) (*TestClient, error) {
	ctx := context.Background()

	args := []string{
		"--port", "4222",
		"--http_port", "8222",
	}
	if cfg.jetstream {
		args = append(args, "--js")
	}

	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          args,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start NATS container: %w", err)
	}

	fail := func(err error) (*TestClient, error) {
		_ = container.Terminate(ctx)
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return fail(fmt.Errorf("container host: %w", err))
	}

	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		return fail(fmt.Errorf("mapped port: %w", err))
	}

	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	// No redial and no probe; a test server that drops is a failure,
	// not something to ride out.
	client, err := NewClient(url,
		WithTimeout(cfg.timeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	if err != nil {
		return fail(fmt.Errorf("create client: %w", err))
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if err := client.Connect(connectCtx); err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}

	if err := client.WaitForConnection(connectCtx); err != nil {
		_ = client.Close(ctx)
		return fail(fmt.Errorf("connection not ready: %w", err))
	}

	tc := &TestClient{
		container: container,
		Client:    client,
		URL:       url,
		cleanup: func() {
			_ = client.Close(context.Background())
			_ = container.Terminate(context.Background())
		},
	}

	if cfg.kv && len(cfg.kvBuckets) > 0 {
		if err := tc.setupKVBuckets(ctx, cfg.kvBuckets); err != nil {
			tc.cleanup()
			return nil, fmt.Errorf("setup KV buckets: %w", err)
		}
	}

	return tc, nil
}

func (tc *TestClient) setupKVBuckets(ctx context.Context, buckets []string) error {
	for _, name := range buckets {
		_, err := tc.Client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: name})
		if err != nil {
			return fmt.Errorf("create KV bucket %s: %w", name, err)
		}
	}
	return nil
}

// Terminate tears down the client and container. NewTestClient callers
// normally rely on t.Cleanup instead.
func (tc *TestClient) Terminate() error {
	if tc.cleanup != nil {
		tc.cleanup()
		tc.cleanup = nil
	}
	return nil
}

// IsReady reports whether the client is connected.
func (tc *TestClient) IsReady() bool {
	return tc.Client.IsHealthy()
}

// GetNativeConnection exposes the raw connection for tests that
// publish or subscribe outside the Client API.
func (tc *TestClient) GetNativeConnection() *gonats.Conn {
	return tc.Client.GetConnection()
}

// CreateKVBucket creates a bucket with default settings.
func (tc *TestClient) CreateKVBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	return tc.Client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: name})
}

// GetKVBucket fetches an existing bucket.
func (tc *TestClient) GetKVBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	return tc.Client.GetKeyValueBucket(ctx, name)
}
