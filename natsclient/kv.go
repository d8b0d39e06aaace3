package natsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/omnitak/takcore/pkg/retry"
)

// KVEntry is a value paired with the revision needed for CAS writes.
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions tunes retry and validation behavior for a KVStore.
type KVOptions struct {
	MaxRetries            int           // additional CAS attempts after the first
	RetryDelay            time.Duration // initial delay between attempts
	Timeout               time.Duration // per-operation timeout
	MaxValueSize          int           // reject values larger than this
	UseExponentialBackoff bool
	MaxRetryDelay         time.Duration
}

// DefaultKVOptions returns the defaults the config manager runs with.
func DefaultKVOptions() KVOptions {
	return KVOptions{
		MaxRetries:            10,
		RetryDelay:            10 * time.Millisecond,
		Timeout:               5 * time.Second,
		MaxValueSize:          1024 * 1024,
		UseExponentialBackoff: true,
		MaxRetryDelay:         time.Second,
	}
}

// KVStore layers CAS-with-retry semantics over a JetStream KV bucket.
// The config manager stores the shared takfed configuration through
// one of these; several takfed nodes may write the same keys at once.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  Logger
}

// NewKVStore wraps a bucket obtained from CreateKeyValueBucket.
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	kv := &KVStore{
		bucket:  bucket,
		options: DefaultKVOptions(),
		logger:  c.logger,
	}
	for _, opt := range opts {
		opt(&kv.options)
	}
	return kv
}

// opContext bounds a single KV operation with the configured timeout.
func (kv *KVStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, kv.options.Timeout)
}

// Get returns the value and its revision, or ErrKVKeyNotFound.
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	raw, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}

	return &KVEntry{
		Key:      key,
		Value:    raw.Value(),
		Revision: raw.Revision(),
	}, nil
}

// Put writes a key unconditionally. Last writer wins.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv: put %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV put %s rev=%d", key, rev)
	}

	return rev, nil
}

// Create writes a key only if it does not exist, otherwise
// ErrKVKeyExists.
func (kv *KVStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	rev, err := kv.bucket.Create(ctx, key, value)
	if err != nil {
		if IsKVConflictError(err) {
			return 0, ErrKVKeyExists
		}
		return 0, fmt.Errorf("kv: create %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV create %s rev=%d", key, rev)
	}

	return rev, nil
}

// Update writes a key only if the stored revision still matches,
// otherwise ErrKVRevisionMismatch.
func (kv *KVStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	rev, err := kv.bucket.Update(ctx, key, value, revision)
	if err != nil {
		if IsKVConflictError(err) {
			return 0, ErrKVRevisionMismatch
		}
		return 0, fmt.Errorf("kv: update %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV update %s rev %d->%d", key, revision, rev)
	}

	return rev, nil
}

func (kv *KVStore) retryConfig() retry.Config {
	cfg := retry.Config{
		MaxAttempts:  kv.options.MaxRetries + 1,
		InitialDelay: kv.options.RetryDelay,
		MaxDelay:     kv.options.MaxRetryDelay,
		AddJitter:    true,
		Multiplier:   1.0,
	}
	if kv.options.UseExponentialBackoff {
		cfg.Multiplier = 2.0
	}
	return cfg
}

// UpdateWithRetry reads the current value, feeds it through updateFn,
// and writes the result with CAS, retrying on conflict until the write
// lands or attempts run out. A missing key is presented to updateFn as
// nil and created at revision 0. Errors from updateFn itself are not
// retried.
func (kv *KVStore) UpdateWithRetry(ctx context.Context, key string,
	updateFn func(current []byte) ([]byte, error)) error {

	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	cfg := kv.retryConfig()
	attempt := 0

	err := retry.Do(ctx, cfg, func() error {
		attempt++

		var current []byte
		var revision uint64

		entry, err := kv.Get(ctx, key)
		switch {
		case err == nil:
			current = entry.Value
			revision = entry.Revision
		case IsKVNotFoundError(err):
			// First writer creates the key.
		default:
			return fmt.Errorf("kv: read during update: %w", err)
		}

		next, err := updateFn(current)
		if err != nil {
			return retry.NonRetryable(fmt.Errorf("update function: %w", err))
		}

		if kv.options.MaxValueSize > 0 && len(next) > kv.options.MaxValueSize {
			return retry.NonRetryable(fmt.Errorf("value size %d exceeds maximum %d",
				len(next), kv.options.MaxValueSize))
		}

		if revision == 0 {
			_, err = kv.bucket.Create(ctx, key, next)
		} else {
			_, err = kv.bucket.Update(ctx, key, next, revision)
		}
		if err == nil {
			return nil
		}

		if IsKVConflictError(err) {
			if kv.logger != nil {
				kv.logger.Debugf("KV conflict on %s, attempt %d/%d", key, attempt, cfg.MaxAttempts)
			}
			// Another writer got there first. Retry re-reads their value.
			return err
		}

		return fmt.Errorf("kv: write %s: %w", key, err)
	})

	if err != nil && IsKVConflictError(err) {
		return ErrKVMaxRetriesExceeded
	}

	return err
}

// UpdateJSON is UpdateWithRetry for keys holding a JSON object. A
// missing key starts updateFn from an empty map.
func (kv *KVStore) UpdateJSON(ctx context.Context, key string,
	updateFn func(current map[string]any) error) error {

	return kv.UpdateWithRetry(ctx, key, func(raw []byte) ([]byte, error) {
		obj := make(map[string]any)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, retry.NonRetryable(fmt.Errorf("kv: unmarshal current value: %w", err))
			}
		}

		if err := updateFn(obj); err != nil {
			return nil, err
		}

		return json.Marshal(obj)
	})
}

// Delete removes a key, or returns ErrKVKeyNotFound.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.opContext(ctx)
	defer cancel()

	err := kv.bucket.Delete(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return ErrKVKeyNotFound
		}
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}

	if kv.logger != nil {
		kv.logger.Debugf("KV delete %s", key)
	}

	return nil
}

// Watch starts a long-lived watcher on a key pattern. The configured
// operation timeout does not apply; the watcher runs until ctx ends or
// Stop is called.
func (kv *KVStore) Watch(ctx context.Context, pattern string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	watcher, err := kv.bucket.Watch(ctx, pattern, opts...)
	if err != nil {
		return nil, fmt.Errorf("kv: watch %s: %w", pattern, err)
	}
	return watcher, nil
}

// kvErrorText reports whether the error text carries any of the given
// fragments. JetStream surfaces some KV failures only as message text
// with an embedded server code.
func kvErrorText(err error, fragments ...string) bool {
	msg := err.Error()
	for _, fragment := range fragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsKVNotFoundError reports whether err means the key does not exist,
// covering both the sentinel and raw server responses.
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrKVKeyNotFound) ||
		kvErrorText(err, "key not found", "10037")
}

// IsKVConflictError reports whether err means another writer won the
// CAS race, either the key already exists or the revision moved.
func IsKVConflictError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrKVRevisionMismatch) ||
		errors.Is(err, ErrKVKeyExists) ||
		kvErrorText(err, "wrong last sequence", "10071", "key exists", "10058")
}

var (
	ErrKVKeyNotFound        = errors.New("kv: key not found")
	ErrKVKeyExists          = errors.New("kv: key already exists")
	ErrKVRevisionMismatch   = errors.New("kv: revision mismatch (concurrent update)")
	ErrKVMaxRetriesExceeded = errors.New("kv: max retries exceeded")
)
