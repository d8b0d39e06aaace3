package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/omnitak/takcore/natsclient"
)

// kvBucket is the KV bucket holding the runtime-editable config. Its
// history depth lets an operator inspect the last few roster edits.
const (
	kvBucket        = "takcore_config"
	kvBucketHistory = 5
)

// Update is delivered to OnChange subscribers after a config change.
// Path names the KV key that changed; Config is the full configuration
// after the change was applied.
type Update struct {
	Path   string
	Config *SafeConfig
}

// Manager bridges the file config and the NATS KV bucket. On first boot
// the file seeds the bucket; afterwards KV edits (an operator adding a
// federated server, rotating credentials) flow back as Update
// notifications, which is how the daemon reshapes its roster without a
// restart.
type Manager struct {
	config  *SafeConfig
	kv      jetstream.KeyValue
	kvStore *natsclient.KVStore
	logger  *slog.Logger

	watchers []jetstream.KeyWatcher

	mu          sync.RWMutex
	subscribers map[string][]chan Update

	shutdownCh chan struct{}
	wg         sync.WaitGroup
	stopped    atomic.Bool
}

// NewConfigManager binds cfg to the config KV bucket, creating the
// bucket when it does not exist yet.
func NewConfigManager(cfg *Config, natsClient *natsclient.Client, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if natsClient == nil {
		return nil, fmt.Errorf("nats client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	kv, err := natsClient.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
		Bucket:      kvBucket,
		Description: "takcore runtime configuration",
		History:     kvBucketHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("create/get KV bucket: %w", err)
	}

	return &Manager{
		config:      NewSafeConfig(cfg),
		kv:          kv,
		kvStore:     natsClient.NewKVStore(kv),
		subscribers: make(map[string][]chan Update),
		logger:      logger,
	}, nil
}

// GetConfig returns the live configuration handle.
func (m *Manager) GetConfig() *SafeConfig {
	return m.config
}

// OnChange subscribes to changes under a key pattern and delivers the
// current configuration immediately. Patterns are either exact keys
// ("identity", "servers.tak-main") or carry a trailing wildcard
// ("servers.*" for the whole roster, "servers.tak-*" for a prefix).
func (m *Manager) OnChange(pattern string) <-chan Update {
	// One slot of buffer. A subscriber that falls behind misses
	// intermediate states but always ends on the latest one.
	ch := make(chan Update, 1)

	m.mu.Lock()
	m.subscribers[pattern] = append(m.subscribers[pattern], ch)
	m.mu.Unlock()

	select {
	case ch <- Update{Path: pattern, Config: m.config}:
	default:
	}

	return ch
}

// Start reconciles the file config with the KV bucket and begins
// watching the runtime-editable keys.
func (m *Manager) Start(ctx context.Context) error {
	m.shutdownCh = make(chan struct{})

	m.reconcile(ctx)

	if err := m.startWatchers(ctx); err != nil {
		return err
	}

	for _, watcher := range m.watchers {
		m.wg.Add(1)
		go m.watchLoop(ctx, watcher)
	}

	return nil
}

// reconcile decides which side wins on boot. An empty bucket means
// first boot: seed it from the file. Otherwise the higher semver wins;
// on a tie the bucket wins, since an operator may have edited it while
// the daemon was down. Reconciliation failures are logged rather than
// fatal: the daemon still has its file config to run on.
func (m *Manager) reconcile(ctx context.Context) {
	keys, err := m.kv.Keys(ctx)
	if err != nil {
		m.logger.Warn("KV inspection failed, seeding from file config", "error", err)
		keys = nil
	}

	if len(keys) == 0 {
		m.logger.Info("Seeding empty config bucket from file")
		if err := m.PushToKV(ctx); err != nil {
			m.logger.Error("Seed config bucket failed", "error", err)
		}
		return
	}

	fileVersion := m.config.Get().Version
	kvVersion, err := m.kvVersion(ctx)
	if err != nil {
		m.logger.Warn("Read KV config version failed, adopting KV state", "error", err)
		m.adoptKV(ctx)
		return
	}

	cmp, err := CompareVersions(fileVersion, kvVersion)
	switch {
	case err != nil:
		m.logger.Warn("Config version comparison failed, adopting KV state",
			"file_version", fileVersion, "kv_version", kvVersion, "error", err)
		m.adoptKV(ctx)
	case cmp > 0:
		m.logger.Info("File config is newer, updating KV",
			"file_version", fileVersion, "kv_version", kvVersion)
		if err := m.PushToKV(ctx); err != nil {
			m.logger.Error("Update KV with newer config failed", "error", err)
		}
	case cmp < 0:
		m.logger.Warn("File config is older than KV, running on KV state",
			"file_version", fileVersion, "kv_version", kvVersion,
			"hint", "bump the file version to push file changes")
		m.adoptKV(ctx)
	default:
		m.adoptKV(ctx)
	}
}

func (m *Manager) adoptKV(ctx context.Context) {
	if err := m.syncFromKV(ctx); err != nil {
		m.logger.Warn("Sync from KV failed, running on file config", "error", err)
	}
}

// startWatchers opens one KV watcher per runtime-editable section. The
// wildcard is single level, so property-level keys such as
// servers.tak-main.port never reach the update path.
func (m *Manager) startWatchers(ctx context.Context) error {
	patterns := []string{
		"servers.*",
		"identity",
		"nats",
	}

	m.watchers = make([]jetstream.KeyWatcher, 0, len(patterns))
	for _, pattern := range patterns {
		// UpdatesOnly: reconcile already applied the current state.
		watcher, err := m.kvStore.Watch(ctx, pattern, jetstream.UpdatesOnly())
		if err != nil {
			m.logger.Debug("Watch pattern failed", "pattern", pattern, "error", err)
			continue
		}
		m.watchers = append(m.watchers, watcher)
	}

	if len(m.watchers) == 0 {
		m.watchers = nil
		return fmt.Errorf("failed to create any watchers")
	}
	return nil
}

// Stop halts the watchers, waits out in-flight updates, then closes all
// subscriber channels. Safe to call more than once.
func (m *Manager) Stop(timeout time.Duration) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if m.shutdownCh != nil {
		close(m.shutdownCh)
	}
	for _, watcher := range m.watchers {
		if watcher != nil {
			_ = watcher.Stop()
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("Config manager shutdown timeout", "timeout", timeout)
	}

	// Channels close only after the watch goroutines are gone, so no
	// send can race the close.
	m.mu.Lock()
	for _, channels := range m.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	m.subscribers = make(map[string][]chan Update)
	m.mu.Unlock()

	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher jetstream.KeyWatcher) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdownCh:
			return
		case entry := <-watcher.Updates():
			if entry == nil {
				continue
			}
			m.handleUpdate(entry.Key(), entry.Value())
		}
	}
}

func (m *Manager) handleUpdate(key string, value []byte) {
	if m.stopped.Load() {
		return
	}

	if err := m.applyUpdate(key, value); err != nil {
		m.logger.Error("Reject config update", "key", key, "error", err)
		return
	}

	m.notify(key)
}

// notify fans the latest config out to every subscriber whose pattern
// covers key. Sends never block: a full channel means that subscriber
// still has an older snapshot pending, and the one it eventually reads
// points at the same SafeConfig anyway.
func (m *Manager) notify(key string) {
	update := Update{Path: key, Config: m.config}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for pattern, channels := range m.subscribers {
		if !m.matchesPattern(key, pattern) {
			continue
		}
		for _, ch := range channels {
			if m.stopped.Load() {
				return
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

// matchesPattern reports whether a KV key falls under a subscription
// pattern.
func (m *Manager) matchesPattern(key, pattern string) bool {
	if pattern == key {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(key, prefix+".")
	}
	if prefix, _, ok := strings.Cut(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return false
}

// applyUpdate folds one KV entry into the configuration. An empty value
// is a deletion. Oversized or overly nested payloads are rejected
// before any parsing happens.
func (m *Manager) applyUpdate(key string, value []byte) error {
	if len(value) > 0 {
		if len(value) > maxConfigSize {
			return fmt.Errorf("config value too large: %d bytes > %d", len(value), maxConfigSize)
		}
		if err := validateJSONDepth(value); err != nil {
			return fmt.Errorf("invalid JSON structure in KV update: %w", err)
		}
	}

	section, rest, _ := strings.Cut(key, ".")
	cfg := m.config.Get()

	switch section {
	case "servers":
		if rest == "" || strings.Contains(rest, ".") {
			return fmt.Errorf("invalid server key format: %s", key)
		}
		if len(value) == 0 {
			cfg.Servers = removeServer(cfg.Servers, rest)
			break
		}
		var def ServerDefinition
		if err := json.Unmarshal(value, &def); err != nil {
			return fmt.Errorf("parse server definition: %w", err)
		}
		if def.ID == "" {
			def.ID = rest
		}
		if def.ID != rest {
			return fmt.Errorf("server definition id '%s' does not match key '%s'", def.ID, key)
		}
		cfg.Servers = upsertServer(cfg.Servers, def)

	case "identity":
		if err := json.Unmarshal(value, &cfg.Identity); err != nil {
			return fmt.Errorf("parse identity config: %w", err)
		}

	case "nats":
		if err := json.Unmarshal(value, &cfg.NATS); err != nil {
			return fmt.Errorf("parse NATS config: %w", err)
		}

	default:
		// Keys outside the runtime-editable sections are left alone.
		return nil
	}

	return m.config.Update(cfg)
}

// upsertServer replaces the definition with a matching ID, or appends
// when the roster does not have one yet.
func upsertServer(servers []ServerDefinition, def ServerDefinition) []ServerDefinition {
	for i := range servers {
		if servers[i].ID == def.ID {
			servers[i] = def
			return servers
		}
	}
	return append(servers, def)
}

// removeServer drops the definition with the given ID, if present.
func removeServer(servers []ServerDefinition, id string) []ServerDefinition {
	out := servers[:0]
	for _, def := range servers {
		if def.ID != id {
			out = append(out, def)
		}
	}
	return out
}

// sanitizeKVKey replaces characters NATS KV keys cannot carry.
func sanitizeKVKey(key string) string {
	return strings.ReplaceAll(key, " ", "_")
}

// PushToKV writes the current configuration into the KV bucket, section
// by section.
func (m *Manager) PushToKV(ctx context.Context) error {
	cfg := m.config.Get()

	// The version write is the commit point. Several nodes can race
	// here on first boot when all of them see an empty bucket, so it
	// goes through CAS with a keep-if-newer guard instead of a blind
	// put.
	if cfg.Version != "" {
		data, err := json.Marshal(cfg.Version)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}

		newerInKV := false
		err = m.kvStore.UpdateWithRetry(ctx, "version", func(current []byte) ([]byte, error) {
			newerInKV = false
			if len(current) == 0 {
				return data, nil
			}
			var existing string
			if err := json.Unmarshal(current, &existing); err != nil {
				// Unreadable version entry, overwrite it.
				return data, nil
			}
			if cmp, cmpErr := CompareVersions(cfg.Version, existing); cmpErr == nil && cmp < 0 {
				newerInKV = true
				return current, nil
			}
			return data, nil
		})
		if err != nil {
			return fmt.Errorf("push version: %w", err)
		}
		if newerInKV {
			// Another node seeded a newer config while we were
			// starting. Ours would roll it back, so adopt theirs.
			m.logger.Warn("KV holds a newer config version, adopting it instead of pushing",
				"file_version", cfg.Version)
			return m.syncFromKV(ctx)
		}
		m.logger.Info("Pushed config version to KV", "version", cfg.Version)
	} else {
		m.logger.Warn("Config version is empty, skipping version push")
	}

	for _, def := range cfg.Servers {
		key := "servers." + sanitizeKVKey(def.ID)
		data, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("marshal server %s: %w", def.ID, err)
		}
		if _, err := m.kvStore.Put(ctx, key, data); err != nil {
			return fmt.Errorf("push server %s: %w", def.ID, err)
		}
	}

	if data, err := json.Marshal(cfg.Identity); err == nil && string(data) != "{}" {
		if _, err := m.kvStore.Put(ctx, "identity", data); err != nil {
			return fmt.Errorf("push identity: %w", err)
		}
	}

	if data, err := json.Marshal(cfg.NATS); err == nil && string(data) != "{}" {
		if _, err := m.kvStore.Put(ctx, "nats", data); err != nil {
			return fmt.Errorf("push nats: %w", err)
		}
	}

	return nil
}

// kvVersion reads the config version stored in the bucket. Buckets that
// predate versioned configs count as 0.0.0 so any versioned file config
// supersedes them.
func (m *Manager) kvVersion(ctx context.Context) (string, error) {
	entry, err := m.kvStore.Get(ctx, "version")
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return "0.0.0", nil
		}
		return "", fmt.Errorf("get version from KV: %w", err)
	}

	var version string
	if err := json.Unmarshal(entry.Value, &version); err != nil {
		m.logger.Warn("Unparsable version entry in KV, treating as 0.0.0", "error", err)
		return "0.0.0", nil
	}
	return version, nil
}

// syncFromKV folds every section-level key in the bucket into the
// configuration. Individual bad entries are skipped, not fatal.
func (m *Manager) syncFromKV(ctx context.Context) error {
	keys, err := m.kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list KV keys: %w", err)
	}

	for _, key := range keys {
		if strings.Count(key, ".") > 1 {
			m.logger.Debug("Skipping property-level key during sync", "key", key)
			continue
		}

		entry, err := m.kvStore.Get(ctx, key)
		if err != nil {
			m.logger.Warn("Read KV entry during sync failed", "key", key, "error", err)
			continue
		}
		if err := m.applyUpdate(key, entry.Value); err != nil {
			m.logger.Warn("Apply KV entry during sync failed", "key", key, "error", err)
		}
	}

	m.logger.Info("Synced configuration from KV", "keys", len(keys))
	return nil
}
