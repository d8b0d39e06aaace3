// Package config loads, validates, and live-updates the takcore daemon
// configuration.
//
// A configuration document is JSON or YAML and covers the node
// identity, TLS material, the NATS connection, the federated server
// roster, and one section per component. Documents stack: a base layer
// plus site overrides, merged in order, with TAKCORE_* environment
// variables applied on top. Each layer is checked against a JSON schema
// when validation is enabled, so a misspelled section or an
// out-of-range port fails at load time with a field-level message.
// Duration fields accept Go duration strings ("30s", "5m", "14d") and
// are normalized before unmarshaling.
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/site.yaml") // overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Environment overrides follow the section path:
//
//	export TAKCORE_IDENTITY_UID="TAKCORE-OPS-01"
//	export TAKCORE_IDENTITY_CALLSIGN="OPS"
//	export TAKCORE_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// Each roster entry resolves to a dialable transport configuration; the
// connection's certificateId picks a named client identity out of the
// security section:
//
//	for _, def := range cfg.Servers {
//		tc, err := def.Connection.TransportConfig(cfg.Security)
//		if err != nil {
//			log.Fatal(err)
//		}
//		mgr.AddServer(def.ID, def.Name, tc, def.EffectivePolicy())
//	}
//
// A loaded Config is plain data. SafeConfig wraps one for shared use:
// Get returns deep copies and Update validates before swapping, so a
// half-edited config never becomes visible. Manager goes one step
// further and binds the config to a NATS KV bucket. The file seeds the
// bucket on first boot; afterwards bucket edits win, and subscribing to
// "servers.*" is how the daemon grows and shrinks its federated roster
// without a restart:
//
//	cm, err := config.NewConfigManager(cfg, natsClient, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cm.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer cm.Stop(5 * time.Second)
//
//	for update := range cm.OnChange("servers.*") {
//		log.Printf("Server roster changed: %s", update.Path)
//	}
//
// Config input is untrusted until proven otherwise: files and KV
// payloads are capped at 10MB, JSON nesting at 100 levels, paths must
// stay inside the working directory when relative, and only regular
// files are read.
package config
