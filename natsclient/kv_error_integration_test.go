//go:build integration

package natsclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_ValueSizeLimit(t *testing.T) {
	kv := newTestKVStore(t, "cas_size_limit", func(opts *KVOptions) {
		opts.MaxValueSize = 100
		opts.MaxRetries = 3
		opts.RetryDelay = 10 * time.Millisecond
	})
	ctx := context.Background()

	oversized := strings.Repeat("x", 200)
	attempts := 0
	err := kv.UpdateWithRetry(ctx, "servers.tak-main", func(_ []byte) ([]byte, error) {
		attempts++
		return []byte(oversized), nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
	assert.Equal(t, 1, attempts, "size violations do not retry")

	// Exactly at the limit is fine.
	err = kv.UpdateWithRetry(ctx, "servers.tak-main", func(_ []byte) ([]byte, error) {
		return []byte(strings.Repeat("x", 100)), nil
	})
	assert.NoError(t, err)
}

func TestKVStore_UpdateFnErrorNotRetried(t *testing.T) {
	kv := newTestKVStore(t, "cas_update_fn_error")
	ctx := context.Background()

	boom := errors.New("server entry rejected")
	attempts := 0
	err := kv.UpdateWithRetry(ctx, "servers.bad", func(_ []byte) ([]byte, error) {
		attempts++
		return nil, boom
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "update function")
	assert.Contains(t, err.Error(), "server entry rejected")
	assert.Equal(t, 1, attempts)
}

// Several nodes bump the same counter at once; every increment must
// land exactly once.
func TestKVStore_ConcurrentCounter(t *testing.T) {
	kv := newTestKVStore(t, "cas_concurrent", func(opts *KVOptions) {
		opts.MaxRetries = 20
		opts.RetryDelay = 5 * time.Millisecond
		opts.Timeout = 5 * time.Second
		opts.MaxRetryDelay = 100 * time.Millisecond
	})
	ctx := context.Background()

	err := kv.UpdateWithRetry(ctx, "stats.events_seen", func(_ []byte) ([]byte, error) {
		return []byte("0"), nil
	})
	require.NoError(t, err)

	const writers = 10
	const perWriter = 5

	var wg sync.WaitGroup
	var failed atomic.Int32

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				err := kv.UpdateWithRetry(ctx, "stats.events_seen", func(current []byte) ([]byte, error) {
					n, _ := strconv.Atoi(string(current))
					return []byte(strconv.Itoa(n + 1)), nil
				})
				if err != nil {
					failed.Add(1)
					t.Logf("increment failed: %v", err)
				}
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, failed.Load(), "all increments should land within the retry budget")

	entry, err := kv.Get(ctx, "stats.events_seen")
	require.NoError(t, err)

	final, err := strconv.Atoi(string(entry.Value))
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, final)
}

func TestKVStore_DeadlineExceeded(t *testing.T) {
	kv := newTestKVStore(t, "cas_deadline", func(opts *KVOptions) {
		opts.MaxRetries = 1
		opts.RetryDelay = time.Millisecond
		opts.Timeout = time.Nanosecond
	})

	err := kv.UpdateWithRetry(context.Background(), "version", func(_ []byte) ([]byte, error) {
		return []byte("1.0.0"), nil
	})

	require.Error(t, err)
	assert.True(t,
		errors.Is(err, context.DeadlineExceeded) ||
			strings.Contains(err.Error(), "deadline exceeded"),
		"expected deadline error, got: %v", err)
}

func TestKVStore_NilAndEmptyValues(t *testing.T) {
	kv := newTestKVStore(t, "cas_empty")
	ctx := context.Background()

	err := kv.UpdateWithRetry(ctx, "nil-value", func(_ []byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)

	entry, err := kv.Get(ctx, "nil-value")
	require.NoError(t, err)
	assert.Empty(t, entry.Value)

	err = kv.UpdateWithRetry(ctx, "empty-value", func(_ []byte) ([]byte, error) {
		return []byte{}, nil
	})
	require.NoError(t, err)

	// A value can be cleared back to empty.
	err = kv.UpdateWithRetry(ctx, "cleared", func(_ []byte) ([]byte, error) {
		return []byte(`{"uid":"A"}`), nil
	})
	require.NoError(t, err)

	err = kv.UpdateWithRetry(ctx, "cleared", func(current []byte) ([]byte, error) {
		assert.Equal(t, `{"uid":"A"}`, string(current))
		return nil, nil
	})
	require.NoError(t, err)
}

func TestKVStore_RetriesExhaustedUnderContention(t *testing.T) {
	kv := newTestKVStore(t, "cas_contention", func(opts *KVOptions) {
		opts.MaxRetries = 2
		opts.RetryDelay = 5 * time.Millisecond
		opts.Timeout = time.Second
	})
	ctx := context.Background()

	_, err := kv.Put(ctx, "version", []byte("1.0.0"))
	require.NoError(t, err)

	// A hostile writer that beats every attempt.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n++
				_, _ = kv.Put(ctx, "version", []byte(fmt.Sprintf("1.0.%d", n)))
			}
		}
	}()

	err = kv.UpdateWithRetry(ctx, "version", func(_ []byte) ([]byte, error) {
		time.Sleep(10 * time.Millisecond)
		return []byte("2.0.0"), nil
	})

	close(stop)
	<-done

	require.Error(t, err)
	assert.True(t,
		errors.Is(err, ErrKVMaxRetriesExceeded) ||
			strings.Contains(err.Error(), "deadline exceeded"),
		"expected retry exhaustion, got: %v", err)
}

func TestKVStore_InvalidJSON(t *testing.T) {
	kv := newTestKVStore(t, "cas_bad_json")
	ctx := context.Background()

	_, err := kv.Put(ctx, "servers.corrupt", []byte("{not json"))
	require.NoError(t, err)

	called := false
	err = kv.UpdateJSON(ctx, "servers.corrupt", func(_ map[string]any) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
	assert.False(t, called, "update fn should not run on corrupt data")
}

func TestKVStore_RecreateDeletedKey(t *testing.T) {
	kv := newTestKVStore(t, "cas_tombstone")
	ctx := context.Background()

	_, err := kv.Put(ctx, "servers.tak-main", []byte("old"))
	require.NoError(t, err)
	require.NoError(t, kv.Delete(ctx, "servers.tak-main"))

	// The tombstone reads as missing, so the update creates fresh.
	err = kv.UpdateWithRetry(ctx, "servers.tak-main", func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte("new"), nil
	})
	require.NoError(t, err)

	entry, err := kv.Get(ctx, "servers.tak-main")
	require.NoError(t, err)
	assert.Equal(t, "new", string(entry.Value))
}

func TestKVStore_PanicPropagates(t *testing.T) {
	kv := newTestKVStore(t, "cas_panic")

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("recovered: %v", r)
			}
		}()
		return kv.UpdateWithRetry(context.Background(), "key", func(_ []byte) ([]byte, error) {
			panic("update fn panic")
		})
	}()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "update fn panic")
}
