// Package takcore implements the protocol core of a Cursor-on-Target
// (CoT) federation node: the CoT XML codec, event classification,
// tactical state (markers, chat, emergency alerts), multi-server
// federation with per-server policy, and a bridge onto NATS.
//
// # Scope
//
// takcore handles the CoT side of a TAK deployment:
//
//   - Wire protocol: CoT XML events over tcp, udp, tls, and websocket
//   - Classification: position updates, GeoChat, emergency beacons,
//     waypoints, deletion tasking
//   - State: live marker picture, chat rooms, active alert set
//   - Federation: persistent links to many TAK servers, share/receive
//     policy per server, loop suppression via a dedup cache
//   - Messaging: accepted traffic republished as JSON on NATS subjects
//
// takcore does NOT contain:
//   - Map rendering or any client UI
//   - Mission package / data package file transfer
//   - TAK server internals (user management, enrollment portals)
//
// Those belong to the TAK clients and servers this node federates with.
//
// # Architecture
//
//	┌────────────┐  ┌────────────┐  ┌────────────┐
//	│ TAK Server │  │ TAK Server │  │ TAK Server │
//	└─────┬──────┘  └─────┬──────┘  └─────┬──────┘
//	      │   CoT XML over tcp/udp/tls/ws │
//	┌─────┴────────────────┴──────────────┴──────┐
//	│          transport (framing, reconnect)    │
//	└──────────────────────┬─────────────────────┘
//	                       ↓
//	┌────────────────────────────────────────────┐
//	│  federation (policy, dedup cache, fan-out) │
//	└──────────────────────┬─────────────────────┘
//	                       │ router.Classify
//	       ┌───────────────┼───────────────┐
//	       ↓               ↓               ↓
//	  ┌─────────┐     ┌─────────┐     ┌─────────┐
//	  │ marker  │     │  chat   │     │  alert  │
//	  └────┬────┘     └─────────┘     └────┬────┘
//	       │      lifecycle events         │
//	       └───────────────┬───────────────┘
//	                       ↓
//	                 ┌──────────┐         ┌──────────┐
//	                 │  bridge  │────────→│   NATS   │
//	                 └──────────┘         └──────────┘
//
// Inbound, each federated connection delivers raw CoT XML to the
// federation manager, which parses, applies the server's receive
// policy, suppresses events already seen on another link, classifies,
// and publishes on an in-process bus. The daemon pipeline feeds the
// classified stream into the marker, chat, and alert managers; the
// bridge republishes the same stream (plus marker and alert lifecycle
// transitions) as JSON on NATS.
//
// Outbound, a local event handed to Broadcast fans out to every
// connected server whose share policy accepts it, through a bounded
// worker pool with per-server rate limits.
//
// # Packages
//
// Protocol:
//   - cot: CoT event model, XML codec, type predicates, builders
//   - router: classification of parsed events into tactical kinds
//
// State:
//   - marker: live marker store with staleness sweep and eviction
//   - chat: GeoChat rooms with bounded history and dedup
//   - alert: active emergency beacons with expiry
//
// Federation:
//   - federation: server registry, policy, dedup cache, fan-out
//   - transport: tcp/udp/tls/websocket dialer with reconnect
//
// Messaging:
//   - natsclient: NATS connection management
//   - bridge: tactical streams to NATS subjects
//
// Operations:
//   - gateway/http: /healthz, /status, /metrics listener
//   - config: file config, validation, NATS KV live updates
//   - health: per-component health aggregation
//   - metric: Prometheus metrics registry
//   - errors: structured error handling with severity
//
// Infrastructure:
//   - component: lifecycle contract and ordered runner
//   - pkg/pubsub: typed in-process fan-out bus
//   - pkg/worker: bounded worker pools
//   - pkg/buffer: ring buffer for bounded history
//   - pkg/retry: retry policies with backoff
//   - pkg/security, pkg/tlsutil, pkg/acme: TLS material loading
//
// # Usage
//
// Wiring the core by hand mirrors what cmd/takfed does:
//
//	dialer := &transport.NetDialer{}
//	fed := federation.NewManager(federation.ManagerDeps{Dialer: dialer})
//	markers := marker.NewStore(marker.StoreDeps{})
//
//	fed.Initialize()
//	markers.Initialize()
//	fed.Start(ctx)
//	markers.Start(ctx)
//
//	fed.AddServer("tak-main", "Main TAK", transport.Config{
//	    Host: "tak.example.org", Port: 8087, Protocol: transport.ProtocolTCP,
//	}, federation.DefaultPolicy())
//	fed.ConnectServer(ctx, "tak-main")
//
//	sub := fed.Subscribe()
//	for in := range sub.C() {
//	    if in.Classified.Kind == router.KindPositionUpdate {
//	        markers.Ingest(in.Event)
//	    }
//	}
//
// Components follow one lifecycle contract (Initialize, Start, Stop)
// and are normally driven by a component.Runner, which starts them in
// registration order and stops them in reverse.
//
// # Binary
//
// cmd/takfed is the daemon: it loads configuration, connects NATS,
// wires every component above, reconciles the federated server roster
// from config (including live NATS KV edits), and serves the status
// gateway. See configs/ for a starting configuration.
package takcore
