package config_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/omnitak/takcore/config"
	"github.com/omnitak/takcore/natsclient"
	"github.com/omnitak/takcore/pkg/security"
)

// ExampleLoader_Load demonstrates loading configuration from multiple layers
// with environment variable overrides and validation.
func ExampleLoader_Load() {
	loader := config.NewLoader()

	// Add base configuration layer
	loader.AddLayer("testdata/base.json")

	// Add site-specific overrides (YAML and JSON layers mix freely)
	loader.AddLayer("testdata/site.yaml")

	// Enable validation to catch errors early
	loader.EnableValidation(true)

	// Load merged configuration
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Identity.Callsign, cfg.Gateway.Addr)
	// Output: GATEWAY :18088
}

// ExampleServerConfig_TransportConfig demonstrates resolving a server
// entry into a dialable transport configuration.
func ExampleServerConfig_TransportConfig() {
	sc := config.ServerConfig{
		Host:             "tak.example.org",
		Port:             8087,
		Protocol:         "tcp",
		Reconnect:        true,
		ReconnectDelayMS: 5000,
	}

	tc, err := sc.TransportConfig(security.Config{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s:%d reconnect=%v", tc.Protocol, tc.Host, tc.Port, tc.Reconnect)
	// Output: tcp tak.example.org:8087 reconnect=true
}

// ExampleLoader_Load_environmentOverrides demonstrates using environment
// variables to override configuration values at runtime.
func ExampleLoader_Load_environmentOverrides() {
	// Set environment variables (in real usage, these would be set externally)
	// export TAKCORE_IDENTITY_UID="TAKCORE-PROD-01"
	// export TAKCORE_NATS_URLS="nats://server1:4222,nats://server2:4222"

	loader := config.NewLoader()
	loader.AddLayer("testdata/base.json")

	cfg, err := loader.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Identity UID and NATS URLs can be overridden via environment
	fmt.Printf("UID: %s\n", cfg.Identity.UID)
	fmt.Printf("NATS URLs: %v\n", cfg.NATS.URLs)
}

// ExampleSafeConfig shows that Get hands out deep copies: mutating a
// snapshot never leaks into the shared state, and Update is the only
// way to publish a change.
func ExampleSafeConfig() {
	cfg := config.DefaultConfig()
	cfg.Identity = config.IdentityConfig{UID: "TAKCORE-OPS-01", Callsign: "REAPER"}
	sc := config.NewSafeConfig(cfg)

	snapshot := sc.Get()
	snapshot.Identity.Callsign = "SCRATCH"
	fmt.Println(sc.Get().Identity.Callsign)

	if err := sc.Update(snapshot); err != nil {
		log.Fatal(err)
	}
	fmt.Println(sc.Get().Identity.Callsign)
	// Output:
	// REAPER
	// SCRATCH
}

// ExampleManager wires the config manager into a daemon: the file
// config seeds the takcore_config KV bucket, and later bucket edits
// arrive as Update notifications.
func ExampleManager() {
	ctx := context.Background()

	client, err := natsclient.NewClient("nats://localhost:4222",
		natsclient.WithName("takfed-example"))
	if err != nil {
		log.Fatal(err)
	}
	if err := client.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Close(ctx)

	cfg := config.DefaultConfig()
	cfg.Identity = config.IdentityConfig{UID: "TAKCORE-OPS-01", Callsign: "REAPER"}

	cm, err := config.NewConfigManager(cfg, client, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := cm.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer cm.Stop(5 * time.Second)

	// A put on servers.<id> grows the roster at runtime; a delete
	// shrinks it. Every edit lands here with the full latest config.
	for update := range cm.OnChange("servers.*") {
		for _, def := range update.Config.Get().Servers {
			fmt.Println(def.ID, def.Connection.Host)
		}
	}
}
