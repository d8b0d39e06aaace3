package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestClient_BasicConnection(t *testing.T) {
	tc := NewTestClient(t)

	require.NotNil(t, tc.Client)
	assert.True(t, tc.IsReady())
	assert.NotEmpty(t, tc.URL)
}

func TestNewTestClient_WithJetStream(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	require.True(t, tc.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := tc.Client.JetStream()
	require.NoError(t, err)

	stream, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     "TAK_EVENTS",
		Subjects: []string{"tak.>"},
	})
	require.NoError(t, err)
	require.NotNil(t, stream)
}

func TestNewTestClient_WithKV(t *testing.T) {
	tc := NewTestClient(t, WithKV())
	require.True(t, tc.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bucket, err := tc.CreateKVBucket(ctx, "takfed_config")
	require.NoError(t, err)

	_, err = bucket.Put(ctx, "version", []byte("1.0.0"))
	require.NoError(t, err)

	entry, err := bucket.Get(ctx, "version")
	require.NoError(t, err)
	assert.Equal(t, []byte("1.0.0"), entry.Value())
}

func TestNewTestClient_WithKVBuckets(t *testing.T) {
	buckets := []string{"takfed_config", "marker_state", "chat_history"}
	tc := NewTestClient(t, WithKVBuckets(buckets...))
	require.True(t, tc.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range buckets {
		bucket, err := tc.GetKVBucket(ctx, name)
		require.NoError(t, err, "bucket %s should be pre-created", name)

		_, err = bucket.Put(ctx, "probe", []byte("ok"))
		assert.NoError(t, err, "bucket %s should be writable", name)
	}
}

func TestNewTestClient_PubSub(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	require.True(t, tc.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan []byte, 1)
	err := tc.Client.Subscribe(ctx, "tak.cot.event", func(_ context.Context, data []byte) {
		received <- data
	})
	require.NoError(t, err)

	require.NoError(t, tc.Client.Publish(ctx, "tak.cot.event", []byte("payload")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("payload"), data)
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}
}

// Two test servers must be fully isolated from each other.
func TestNewTestClient_Isolation(t *testing.T) {
	a := NewTestClient(t, WithFastStartup(), WithKV())
	b := NewTestClient(t, WithFastStartup(), WithKV())

	assert.NotEqual(t, a.URL, b.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := a.CreateKVBucket(ctx, "only_on_a")
	require.NoError(t, err)

	_, err = b.GetKVBucket(ctx, "only_on_a")
	assert.Error(t, err, "bucket should not leak across servers")
}

func TestNewTestClient_TerminateIdempotent(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())

	assert.NotPanics(t, func() { _ = tc.Terminate() })
	assert.NotPanics(t, func() { _ = tc.Terminate() })
	assert.False(t, tc.IsReady())
}

func TestNewTestClient_GetNativeConnection(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())

	conn := tc.GetNativeConnection()
	require.NotNil(t, conn)
	assert.True(t, conn.IsConnected())

	rtt, err := conn.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	// Raw publishes land in Client subscriptions.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan []byte, 1)
	err = tc.Client.Subscribe(ctx, "tak.raw", func(_ context.Context, data []byte) {
		received <- data
	})
	require.NoError(t, err)

	require.NoError(t, conn.Publish("tak.raw", []byte("native")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("native"), data)
	case <-ctx.Done():
		t.Fatal("timeout waiting for native publish")
	}
}

func TestNewSharedTestClient(t *testing.T) {
	tc, err := NewSharedTestClient(WithFastStartup(), WithKV())
	require.NoError(t, err)
	defer tc.Terminate()

	assert.True(t, tc.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = tc.CreateKVBucket(ctx, "takfed_config")
	assert.NoError(t, err)
}

func BenchmarkTestClientStartup(b *testing.B) {
	for i := 0; i < b.N; i++ {
		tc, err := NewSharedTestClient(WithFastStartup())
		if err != nil {
			b.Fatal(err)
		}
		_ = tc.Terminate()
	}
}
