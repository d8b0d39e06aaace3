// Package federation relays Cursor-on-Target traffic between TAK
// servers under per-server sharing policies.
//
// The Manager registers server definitions, dials them through a
// transport.Dialer, and processes each connection's inbound stream:
// parse, receive-policy filter, dedup-cache upsert, subscriber
// notification, and (for auto-share sources) fan-out to every other
// eligible server. Delivery to a peer is at-most-once per cached UID:
// the dedup cache records which servers an event was claimed for, and
// the claim is taken before the send is queued, so concurrent
// re-reports of the same UID never double-send.
//
// Reconnect policy is deliberately not here. The manager exposes
// ConnectServer and DisconnectServer as idempotent operations and
// reports per-server status; when and how often to retry belongs to
// the transport layer or the host application.
package federation
