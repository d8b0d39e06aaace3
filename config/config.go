package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/chat"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/pkg/security"
)

// Config is the complete daemon configuration: identity, security,
// NATS connection, the federated server roster, and one section per
// component. Version gates KV synchronization between the file and the
// cluster copy.
type Config struct {
	Version    string             `json:"version,omitempty"`
	Identity   IdentityConfig     `json:"identity"`
	Security   security.Config    `json:"security,omitempty"`
	NATS       NATSConfig         `json:"nats,omitempty"`
	Servers    []ServerDefinition `json:"servers,omitempty"`
	Markers    marker.Config      `json:"markers,omitempty"`
	Chat       chat.Config        `json:"chat,omitempty"`
	Alert      alert.Config       `json:"alert,omitempty"`
	Federation federation.Config  `json:"federation,omitempty"`
	Bridge     BridgeConfig       `json:"bridge,omitempty"`
	Gateway    GatewayConfig      `json:"gateway,omitempty"`
}

// IdentityConfig is who this node claims to be on the TAK mesh. UID and
// Callsign stamp the self marker, composed chat, and raised alerts.
type IdentityConfig struct {
	UID      string  `json:"uid"`
	Callsign string  `json:"callsign"`
	Team     string  `json:"team,omitempty"` // Cyan, Blue, Red, ...
	Role     string  `json:"role,omitempty"` // Team Member, Team Lead, HQ, ...
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
}

// ServerDefinition describes one federated TAK server: how to reach it
// and what may be exchanged with it.
type ServerDefinition struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Connection ServerConfig      `json:"connection"`
	Policy     federation.Policy `json:"policy,omitempty"`
}

// ServerConfig is the wire-level endpoint description. UseTLS upgrades
// tcp to tls and websocket to wss; CertificateID selects a named client
// identity from the security section.
type ServerConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	Protocol         string `json:"protocol,omitempty"` // tcp, udp, tls, websocket
	UseTLS           bool   `json:"useTls,omitempty"`
	CertificateID    string `json:"certificateId,omitempty"`
	Reconnect        bool   `json:"reconnect,omitempty"`
	ReconnectDelayMS int    `json:"reconnectDelayMs,omitempty"`
	// Path is the endpoint path for websocket servers; other protocols
	// ignore it.
	Path string `json:"path,omitempty"`
}

// NATSConfig defines the bridge's NATS connection settings.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"maxReconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnectWait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	TLS           NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections.
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
	CAFile   string `json:"caFile,omitempty"`
}

// BridgeConfig controls the NATS bridge component.
type BridgeConfig struct {
	Enabled bool `json:"enabled"`
	// SubjectPrefix is the first token of every published subject
	// (e.g. "tak" yields tak.event.*, tak.marker.*, tak.alert.*).
	SubjectPrefix string `json:"subjectPrefix,omitempty"`
}

// GatewayConfig controls the HTTP status gateway.
type GatewayConfig struct {
	Enabled      bool          `json:"enabled"`
	Addr         string        `json:"addr,omitempty"`
	ReadTimeout  time.Duration `json:"readTimeout,omitempty"`
	WriteTimeout time.Duration `json:"writeTimeout,omitempty"`
}

// SafeConfig shares one Config between goroutines. Get hands out deep
// copies, so callers may mutate what they receive; Update is the only
// way to publish a change, and it validates first.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg for shared use. A nil cfg becomes an empty
// config rather than a nil deref later.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update swaps in cfg after validation. A config that fails validation
// leaves the current one in place.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone returns a deep copy. The copy rides through the JSON codec, so
// anything a config document can express survives it; if the codec
// fails the copy degrades to a shallow one.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	shallow := func() *Config {
		copied := *c
		return &copied
	}

	data, err := json.Marshal(c)
	if err != nil {
		return shallow()
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		return shallow()
	}
	return &clone
}

// Validate checks the whole configuration for internal consistency:
// identity fields, roster uniqueness, certificate references, and each
// component section. A config that passes here can be handed to the
// daemon without surprises at connect time.
func (c *Config) Validate() error {
	if c.Identity.UID == "" {
		return errors.New("identity.uid is required")
	}
	if c.Identity.Callsign == "" {
		return errors.New("identity.callsign is required")
	}

	// UIDs become KV keys and metric labels, so they carry the same
	// character restrictions as NATS subject tokens.
	if !isValidSubjectToken(c.Identity.UID) {
		return fmt.Errorf(
			"identity.uid '%s' is not valid (must be alphanumeric with dots, dashes, underscores)",
			c.Identity.UID,
		)
	}

	seen := make(map[string]bool, len(c.Servers))
	for i, def := range c.Servers {
		if def.ID == "" {
			return fmt.Errorf("servers[%d].id is required", i)
		}
		// Server IDs become single KV key tokens, so dots are out.
		if !isValidSubjectToken(def.ID) || strings.Contains(def.ID, ".") {
			return fmt.Errorf("servers[%d].id '%s' is not valid (must be alphanumeric with dashes or underscores)", i, def.ID)
		}
		if seen[def.ID] {
			return fmt.Errorf("servers[%d]: duplicate server id '%s'", i, def.ID)
		}
		seen[def.ID] = true

		if err := def.Connection.Validate(); err != nil {
			return fmt.Errorf("servers[%d] (%s): %w", i, def.ID, err)
		}
		if def.Connection.CertificateID != "" {
			if _, ok := c.Security.Certificates[def.Connection.CertificateID]; !ok {
				return fmt.Errorf("servers[%d] (%s): certificate '%s' not defined under security.certificates",
					i, def.ID, def.Connection.CertificateID)
			}
		}
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security configuration: %w", err)
	}

	if err := c.Markers.Validate(); err != nil {
		return fmt.Errorf("markers: %w", err)
	}
	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := c.Alert.Validate(); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	if err := c.Federation.Validate(); err != nil {
		return fmt.Errorf("federation: %w", err)
	}

	if c.Bridge.Enabled {
		if len(c.NATS.URLs) == 0 {
			return errors.New("bridge.enabled requires nats.urls")
		}
		if c.Bridge.SubjectPrefix != "" && !isValidSubjectToken(c.Bridge.SubjectPrefix) {
			return fmt.Errorf("bridge.subjectPrefix '%s' is not a valid NATS subject token", c.Bridge.SubjectPrefix)
		}
	}

	if c.Gateway.Enabled {
		if _, _, err := net.SplitHostPort(c.Gateway.Addr); err != nil {
			return fmt.Errorf("gateway.addr '%s' is not a host:port address: %w", c.Gateway.Addr, err)
		}
	}

	return nil
}

// Validate checks the endpoint description without dialing it.
func (s ServerConfig) Validate() error {
	if s.Host == "" {
		return errors.New("connection.host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("connection.port %d out of range", s.Port)
	}
	switch strings.ToLower(s.Protocol) {
	case "", "tcp", "udp", "tls", "ssl", "websocket", "ws", "wss":
	default:
		return fmt.Errorf("connection.protocol '%s' is not one of tcp, udp, tls, websocket", s.Protocol)
	}
	if s.ReconnectDelayMS < 0 {
		return fmt.Errorf("connection.reconnectDelayMs %d must not be negative", s.ReconnectDelayMS)
	}
	return nil
}

// isValidSubjectToken checks if a string is valid as a single NATS
// subject or KV key token. Valid characters are alphanumeric, dots,
// dashes, and underscores.
func isValidSubjectToken(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// validateSecurity checks the TLS sections: the gateway's server side,
// the default client identity, and every named certificate.
func (c *Config) validateSecurity() error {
	if c.Security.TLS.Server.Enabled {
		srv := c.Security.TLS.Server
		acmeMode := srv.Mode == "acme" && srv.ACME.Enabled

		// In ACME mode the cert/key pair is only the fallback for CA
		// outages, so it may be absent.
		if !acmeMode && (srv.CertFile == "" || srv.KeyFile == "") {
			return errors.New("tls.server requires certFile and keyFile unless mode is \"acme\"")
		}
		if srv.CertFile != "" {
			if _, err := os.Stat(srv.CertFile); err != nil {
				return fmt.Errorf("tls.server.certFile: %w", err)
			}
		}
		if srv.KeyFile != "" {
			if _, err := os.Stat(srv.KeyFile); err != nil {
				return fmt.Errorf("tls.server.keyFile: %w", err)
			}
		}

		if acmeMode && srv.ACME.DirectoryURL == "" {
			return errors.New("tls.server.acme.directoryUrl is required in acme mode")
		}

		if srv.MinVersion != "" {
			if err := validateTLSVersion(srv.MinVersion); err != nil {
				return fmt.Errorf("tls.server.minVersion: %w", err)
			}
		}
	}

	if err := validateClientTLS("tls.client", c.Security.TLS.Client); err != nil {
		return err
	}
	for name, cert := range c.Security.Certificates {
		if err := validateClientTLS(fmt.Sprintf("certificates.%s", name), cert); err != nil {
			return err
		}
	}

	return nil
}

// validateClientTLS checks one outbound identity. Referenced files must
// exist at validation time so a bad roster fails at startup, not at the
// first reconnect.
func validateClientTLS(prefix string, cfg security.ClientTLSConfig) error {
	for i, caFile := range cfg.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("%s.caFiles[%d]: %w", prefix, i, err)
		}
	}

	if cfg.MTLS.Enabled {
		if cfg.MTLS.CertFile == "" || cfg.MTLS.KeyFile == "" {
			return fmt.Errorf("%s.mtls requires certFile and keyFile", prefix)
		}
		if _, err := os.Stat(cfg.MTLS.CertFile); err != nil {
			return fmt.Errorf("%s.mtls.certFile: %w", prefix, err)
		}
		if _, err := os.Stat(cfg.MTLS.KeyFile); err != nil {
			return fmt.Errorf("%s.mtls.keyFile: %w", prefix, err)
		}
	}

	if cfg.InsecureSkipVerify {
		_, _ = fmt.Fprintf(
			os.Stderr,
			"WARNING: TLS certificate verification is disabled for %s (insecureSkipVerify=true). This should only be used in development/testing!\n",
			prefix,
		)
	}

	if cfg.MinVersion != "" {
		if err := validateTLSVersion(cfg.MinVersion); err != nil {
			return fmt.Errorf("%s.minVersion: %w", prefix, err)
		}
	}

	return nil
}

// validateTLSVersion accepts the two versions this daemon will speak.
func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (must be \"1.2\" or \"1.3\")", version)
	}
}

// Loader assembles a Config from stacked document layers, environment
// overrides on top. Later layers win on conflicting keys.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader returns a loader with no layers and validation off.
func NewLoader() *Loader {
	return &Loader{envPrefix: "TAKCORE"}
}

// AddLayer appends a document to the stack. Layers merge in the order
// they were added.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation turns on per-document schema checks and a full
// Validate of the merged result.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads a single document, replacing any layers added so far.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, the document layers, and environment overrides
// into one Config.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range l.layers {
		rawConfig, err := l.loadRawDocument(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with every section at its
// defaults. The loader starts from this before applying file layers, and
// hand-built configs should too: Validate rejects zero-valued sections.
func DefaultConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			Team: "Cyan",
			Role: "HQ",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Markers:    marker.DefaultConfig(),
		Chat:       chat.DefaultConfig(),
		Alert:      alert.DefaultConfig(),
		Federation: federation.DefaultConfig(),
		Bridge: BridgeConfig{
			Enabled:       true,
			SubjectPrefix: "tak",
		},
		Gateway: GatewayConfig{
			Enabled:      true,
			Addr:         ":8088",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// loadRawDocument loads one configuration layer as a map. The document
// format is chosen by extension: .yaml/.yml go through the YAML parser,
// everything else is JSON. Duration strings are normalized before the
// map is merged, and the document is checked against the config schema
// when validation is on.
func (l *Loader) loadRawDocument(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	} else {
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &rawConfig); err != nil {
			return nil, err
		}
	}

	l.parseDurations(rawConfig)

	if l.validation {
		if err := validateDocument(rawConfig); err != nil {
			return nil, err
		}
	}

	return rawConfig, nil
}

func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// mergeFromMap folds a raw document into base. Only keys present in
// the document override; everything else keeps the base value. The
// merge runs on map form and converts back through the JSON codec, so
// a document never has to repeat a whole section to change one field.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseMap, err := toMap(base)
	if err != nil {
		return base
	}

	mergedJSON, err := json.Marshal(deepMerge(baseMap, override))
	if err != nil {
		return base
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}
	return &merged
}

// toMap converts a config (or any JSON-marshalable value) to map form
// for merging.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMerge layers override on top of base. Maps on both sides merge
// recursively; any other value pair is won by the override. Nil
// override values are skipped so absent keys never erase base state.
func deepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := merged[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				merged[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		merged[k] = v
	}

	return merged
}

// durationKeys maps a config section to the keys inside it that accept
// Go duration strings in documents. The values are rewritten to
// nanosecond numbers before unmarshaling.
var durationKeys = map[string][]string{
	"nats":       {"reconnectWait"},
	"markers":    {"sweepInterval", "gracePeriod"},
	"alert":      {"sweepInterval", "expiryGrace"},
	"federation": {"cacheRetention", "cacheSweepInterval"},
	"gateway":    {"readTimeout", "writeTimeout"},
}

// parseDurations rewrites known duration keys in a raw document from
// strings to nanosecond numbers, the form the JSON decoder expects for
// time.Duration fields.
func (l *Loader) parseDurations(data map[string]any) {
	for section, keys := range durationKeys {
		if m, ok := data[section].(map[string]any); ok {
			for _, key := range keys {
				convertDurationKey(m, key)
			}
		}
	}
}

func convertDurationKey(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if d, err := parseDurationWithDays(s); err == nil {
			m[key] = d.Nanoseconds()
		}
	}
}

// parseDurationWithDays extends Go duration syntax with a whole-day
// form ("14d"), which retention settings tend to use.
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeConfigs merges two already-parsed configs, override on top.
// Load does not use this (documents merge in map form before they ever
// become a Config), but it is handy when composing configs in code.
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	if override == nil {
		return base
	}

	overrideMap, err := toMap(override)
	if err != nil {
		return base
	}
	// A struct round-trips zero values as explicit nulls; strip them so
	// they do not clobber base fields the override never set.
	pruneNils(overrideMap)

	return l.mergeFromMap(base, overrideMap)
}

// pruneNils deletes nil values from a map, recursively.
func pruneNils(m map[string]any) {
	for k, v := range m {
		switch nested := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			pruneNils(nested)
		}
	}
}

// applyEnvOverrides lays TAKCORE_* environment variables over cfg.
// These are the knobs deployments most often need to vary per node
// without editing the shared document.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		suffix string
		apply  func(string)
	}{
		{"_IDENTITY_UID", func(v string) { cfg.Identity.UID = v }},
		{"_IDENTITY_CALLSIGN", func(v string) { cfg.Identity.Callsign = v }},
		{"_IDENTITY_TEAM", func(v string) { cfg.Identity.Team = v }},
		{"_IDENTITY_ROLE", func(v string) { cfg.Identity.Role = v }},
		{"_NATS_URLS", func(v string) { cfg.NATS.URLs = strings.Split(v, ",") }},
		{"_NATS_USERNAME", func(v string) { cfg.NATS.Username = v }},
		{"_NATS_PASSWORD", func(v string) { cfg.NATS.Password = v }},
		{"_NATS_TOKEN", func(v string) { cfg.NATS.Token = v }},
		{"_GATEWAY_ADDR", func(v string) { cfg.Gateway.Addr = v }},
	}

	for _, o := range overrides {
		if val := l.envValue(o.suffix); val != "" {
			o.apply(val)
		}
	}
}

// envValue reads one override, dropping values that fail the basic
// environment variable checks.
func (l *Loader) envValue(suffix string) string {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}

// SaveToFile writes the configuration as indented JSON, with the same
// path and size checks as loading.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// String renders the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// CompareVersions orders two semver strings: -1 when v1 is older, 1
// when newer, 0 on a tie. Either side failing to parse is an error, so
// callers can treat garbage versions explicitly instead of silently
// losing a sync decision.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := parseSemVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}
	b, err := parseSemVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for i := range a {
		switch {
		case a[i] > b[i]:
			return 1, nil
		case a[i] < b[i]:
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer splits "1.2.3" (an optional leading "v" is tolerated)
// into numeric [major minor patch].
func parseSemVer(version string) ([3]int, error) {
	var out [3]int

	if version == "" {
		return out, errors.New("version cannot be empty")
	}
	version = strings.TrimPrefix(version, "v")

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	names := [3]string{"major", "minor", "patch"}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return out, fmt.Errorf("invalid %s version '%s': %w", names[i], part, err)
		}
		out[i] = n
	}
	return out, nil
}

// UnmarshalJSON accepts reconnectWait as either a duration string
// ("2s") or a nanosecond number. Documents loaded through the Loader
// arrive pre-normalized, but KV entries and hand-written JSON hit this
// path directly.
func (n *NATSConfig) UnmarshalJSON(data []byte) error {
	type alias NATSConfig
	aux := struct {
		ReconnectWait any `json:"reconnectWait"`
		*alias
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch v := aux.ReconnectWait.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("nats.reconnectWait: %w", err)
		}
		n.ReconnectWait = d
	case float64:
		n.ReconnectWait = time.Duration(v)
	}
	return nil
}
