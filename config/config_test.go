package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Structure(t *testing.T) {
	cfg := &Config{
		Identity: IdentityConfig{
			UID:      "TAKCORE-OPS-01",
			Callsign: "OPS",
			Team:     "Cyan",
			Role:     "HQ",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Servers: []ServerDefinition{
			{ID: "tak-main", Connection: ServerConfig{Host: "tak.example.org", Port: 8089, Protocol: "tls"}},
		},
	}

	assert.Equal(t, "TAKCORE-OPS-01", cfg.Identity.UID)
	assert.Equal(t, "OPS", cfg.Identity.Callsign)
	assert.Len(t, cfg.Servers, 1)
	assert.Equal(t, "tak-main", cfg.Servers[0].ID)
}

func TestLoader_LoadJSON(t *testing.T) {
	testConfig := `{
		"version": "1.2.0",
		"identity": {
			"uid": "TAKCORE-ALPHA-01",
			"callsign": "ALPHA",
			"team": "Blue",
			"role": "Team Lead",
			"lat": 38.8895,
			"lon": -77.0353
		},
		"nats": {
			"urls": ["nats://nats-1:4222", "nats://nats-2:4222"],
			"maxReconnects": 12,
			"reconnectWait": "4s"
		},
		"servers": [
			{
				"id": "tak-main",
				"name": "Main TAK Server",
				"connection": {
					"host": "tak.example.org",
					"port": 8089,
					"protocol": "tls",
					"certificateId": "main",
					"reconnect": true,
					"reconnectDelayMs": 5000
				},
				"policy": {
					"receiveTypes": ["all"],
					"sendTypes": ["friendly"],
					"bidirectional": true
				}
			}
		],
		"markers": {"maxMarkers": 500, "sweepInterval": "2s"},
		"chat": {"roomHistory": 50}
	}`

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfig), 0644))

	loader := NewLoader()
	cfg, err := loader.LoadFile(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "TAKCORE-ALPHA-01", cfg.Identity.UID)
	assert.Equal(t, "ALPHA", cfg.Identity.Callsign)
	assert.InDelta(t, 38.8895, cfg.Identity.Lat, 1e-9)
	assert.Len(t, cfg.NATS.URLs, 2)
	assert.Equal(t, 12, cfg.NATS.MaxReconnects)
	assert.Equal(t, 4*time.Second, cfg.NATS.ReconnectWait)

	require.Len(t, cfg.Servers, 1)
	def := cfg.Servers[0]
	assert.Equal(t, "tak-main", def.ID)
	assert.Equal(t, "Main TAK Server", def.Name)
	assert.Equal(t, 8089, def.Connection.Port)
	assert.Equal(t, "main", def.Connection.CertificateID)
	assert.True(t, def.Connection.Reconnect)
	assert.Equal(t, 5000, def.Connection.ReconnectDelayMS)
	assert.True(t, def.Policy.Bidirectional)

	assert.Equal(t, 500, cfg.Markers.MaxMarkers)
	assert.Equal(t, 2*time.Second, cfg.Markers.SweepInterval)
	assert.Equal(t, 50, cfg.Chat.RoomHistory)
}

func TestLoader_LoadYAML(t *testing.T) {
	testConfig := `
version: "2.0.0"
identity:
  uid: TAKCORE-BRAVO-02
  callsign: BRAVO
nats:
  urls:
    - nats://nats-1:4222
  reconnectWait: 3s
servers:
  - id: tak-backup
    connection:
      host: backup.example.org
      port: 8087
      protocol: tcp
alert:
  expiryGrace: 1m
  recentHistory: 25
`

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfig), 0644))

	loader := NewLoader()
	cfg, err := loader.LoadFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, "TAKCORE-BRAVO-02", cfg.Identity.UID)
	assert.Equal(t, []string{"nats://nats-1:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 3*time.Second, cfg.NATS.ReconnectWait)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "tak-backup", cfg.Servers[0].ID)
	assert.Equal(t, 8087, cfg.Servers[0].Connection.Port)
	assert.Equal(t, time.Minute, cfg.Alert.ExpiryGrace)
	assert.Equal(t, 25, cfg.Alert.RecentHistory)
}

func TestLoader_Defaults(t *testing.T) {
	// Only identity is set. Everything else must come from defaults.
	testConfig := `{
		"identity": {
			"uid": "TAKCORE-MIN",
			"callsign": "MIN"
		}
	}`

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfig), 0644))

	loader := NewLoader()
	cfg, err := loader.LoadFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "Cyan", cfg.Identity.Team)
	assert.Equal(t, "HQ", cfg.Identity.Role)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.NATS.URLs)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, 10000, cfg.Markers.MaxMarkers)
	assert.Equal(t, 200, cfg.Chat.RoomHistory)
	assert.Equal(t, 30*time.Second, cfg.Alert.ExpiryGrace)
	assert.Equal(t, 4, cfg.Federation.FanoutWorkers)
	assert.True(t, cfg.Bridge.Enabled)
	assert.Equal(t, "tak", cfg.Bridge.SubjectPrefix)
	assert.True(t, cfg.Gateway.Enabled)
	assert.Equal(t, ":8088", cfg.Gateway.Addr)
}

func TestLoader_EnvOverrides(t *testing.T) {
	_ = os.Setenv("TAKCORE_IDENTITY_UID", "TAKCORE-ENV")
	_ = os.Setenv("TAKCORE_NATS_USERNAME", "takfed-svc")
	_ = os.Setenv("TAKCORE_NATS_PASSWORD", "svc-secret")
	_ = os.Setenv("TAKCORE_GATEWAY_ADDR", ":9090")
	defer func() {
		_ = os.Unsetenv("TAKCORE_IDENTITY_UID")
		_ = os.Unsetenv("TAKCORE_NATS_USERNAME")
		_ = os.Unsetenv("TAKCORE_NATS_PASSWORD")
		_ = os.Unsetenv("TAKCORE_GATEWAY_ADDR")
	}()

	testConfig := `{
		"identity": {
			"uid": "TAKCORE-FILE",
			"callsign": "FILE"
		}
	}`

	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfig), 0644))

	loader := NewLoader()
	cfg, err := loader.LoadFile(configFile)
	require.NoError(t, err)

	// env wins over the file
	assert.Equal(t, "TAKCORE-ENV", cfg.Identity.UID)
	assert.Equal(t, "takfed-svc", cfg.NATS.Username)
	assert.Equal(t, "svc-secret", cfg.NATS.Password)
	assert.Equal(t, ":9090", cfg.Gateway.Addr)

	// untouched fields keep the file value
	assert.Equal(t, "FILE", cfg.Identity.Callsign)
}

func TestLoader_Validation(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		wantError string
	}{
		{
			name: "missing uid",
			config: `{
				"identity": {
					"callsign": "NOUID"
				}
			}`,
			wantError: "identity.uid is required",
		},
		{
			name: "missing callsign",
			config: `{
				"identity": {
					"uid": "TAKCORE-NOCALL"
				}
			}`,
			wantError: "identity.callsign is required",
		},
		{
			name: "duplicate server id",
			config: `{
				"identity": {"uid": "TAKCORE-DUP", "callsign": "DUP"},
				"servers": [
					{"id": "tak-main", "connection": {"host": "a.example.org", "port": 8089}},
					{"id": "tak-main", "connection": {"host": "b.example.org", "port": 8089}}
				]
			}`,
			wantError: "duplicate server id 'tak-main'",
		},
		{
			name: "unknown certificate reference",
			config: `{
				"identity": {"uid": "TAKCORE-CERT", "callsign": "CERT"},
				"servers": [
					{"id": "tak-main", "connection": {"host": "a.example.org", "port": 8089, "certificateId": "missing"}}
				]
			}`,
			wantError: "certificate 'missing' not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(configFile, []byte(tt.config), 0644))

			loader := NewLoader()
			loader.EnableValidation(true)

			_, err := loader.LoadFile(configFile)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr string
	}{
		{"valid tcp", ServerConfig{Host: "tak.example.org", Port: 8087, Protocol: "tcp"}, ""},
		{"valid default protocol", ServerConfig{Host: "tak.example.org", Port: 8087}, ""},
		{"missing host", ServerConfig{Port: 8087}, "host is required"},
		{"port too large", ServerConfig{Host: "h", Port: 70000}, "out of range"},
		{"port zero", ServerConfig{Host: "h"}, "out of range"},
		{"bad protocol", ServerConfig{Host: "h", Port: 8087, Protocol: "carrier-pigeon"}, "not one of"},
		{"negative delay", ServerConfig{Host: "h", Port: 8087, ReconnectDelayMS: -1}, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoader_MergeConfigs(t *testing.T) {
	loader := NewLoader()

	base := &Config{
		Identity: IdentityConfig{
			UID:  "TAKCORE-BASE",
			Team: "Cyan",
			Role: "HQ",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
		},
	}

	override := &Config{
		Identity: IdentityConfig{
			UID:      "TAKCORE-SITE",
			Callsign: "SITE",
		},
		NATS: NATSConfig{
			MaxReconnects: 5,
			Username:      "takfed-svc",
		},
		Servers: []ServerDefinition{
			{ID: "tak-main", Connection: ServerConfig{Host: "tak.example.org", Port: 8089}},
		},
	}

	merged := loader.mergeConfigs(base, override)

	assert.Equal(t, "TAKCORE-SITE", merged.Identity.UID) // override
	assert.Equal(t, "SITE", merged.Identity.Callsign)    // override
	assert.Equal(t, "Cyan", merged.Identity.Team)        // base
	assert.Equal(t, "HQ", merged.Identity.Role)          // base

	assert.Equal(t, []string{"nats://localhost:4222"}, merged.NATS.URLs) // base
	assert.Equal(t, 5, merged.NATS.MaxReconnects)        // override
	assert.Equal(t, "takfed-svc", merged.NATS.Username)  // override

	require.Len(t, merged.Servers, 1) // override
	assert.Equal(t, "tak-main", merged.Servers[0].ID)
}

// Layered loading: a site overlay on top of a base document.
func TestLoader_Layers(t *testing.T) {
	base := `{
		"identity": {"uid": "TAKCORE-LAYER", "callsign": "LAYER"},
		"markers": {"maxMarkers": 1000},
		"gateway": {"addr": ":8088"}
	}`
	site := `{
		"markers": {"gracePeriod": "90s"},
		"gateway": {"addr": ":18088"}
	}`

	tmpDir := t.TempDir()
	baseFile := filepath.Join(tmpDir, "base.json")
	siteFile := filepath.Join(tmpDir, "site.json")
	require.NoError(t, os.WriteFile(baseFile, []byte(base), 0644))
	require.NoError(t, os.WriteFile(siteFile, []byte(site), 0644))

	loader := NewLoader()
	loader.AddLayer(baseFile)
	loader.AddLayer(siteFile)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "TAKCORE-LAYER", cfg.Identity.UID)       // base
	assert.Equal(t, 1000, cfg.Markers.MaxMarkers)            // base
	assert.Equal(t, 90*time.Second, cfg.Markers.GracePeriod) // site
	assert.Equal(t, ":18088", cfg.Gateway.Addr)              // site wins
}

func TestConfig_Save(t *testing.T) {
	cfg := &Config{
		Version: "1.0.0",
		Identity: IdentityConfig{
			UID:      "TAKCORE-SAVE",
			Callsign: "SAVE",
			Team:     "Red",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://nats-1:4222", "nats://nats-2:4222"},
			MaxReconnects: 10,
		},
		Servers: []ServerDefinition{
			{ID: "tak-main", Name: "Main", Connection: ServerConfig{Host: "tak.example.org", Port: 8089, Protocol: "tls", Reconnect: true}},
		},
	}

	saveFile := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveToFile(saveFile))

	// Load it back
	loader := NewLoader()
	loaded, err := loader.LoadFile(saveFile)
	require.NoError(t, err)

	assert.Equal(t, cfg.Version, loaded.Version)
	assert.Equal(t, cfg.Identity.UID, loaded.Identity.UID)
	assert.Equal(t, cfg.Identity.Team, loaded.Identity.Team)
	assert.Equal(t, cfg.NATS.URLs, loaded.NATS.URLs)
	assert.Equal(t, cfg.NATS.MaxReconnects, loaded.NATS.MaxReconnects)
	require.Len(t, loaded.Servers, 1)
	assert.Equal(t, cfg.Servers[0], loaded.Servers[0])
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.9.9", 1},
		{"v1.1.0", "1.0.9", 1},
	}

	for _, tt := range tests {
		got, err := CompareVersions(tt.v1, tt.v2)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.v1, tt.v2)
	}

	_, err := CompareVersions("1.0", "1.0.0")
	assert.Error(t, err)
	_, err = CompareVersions("", "1.0.0")
	assert.Error(t, err)
}
