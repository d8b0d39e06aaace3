// Package marker maintains the live set of tactical entities derived from
// position events.
//
// The store keys markers by event uid and updates them in place, so the
// high-rate re-broadcast stream a TAK network produces collapses into one
// marker per entity. A background sweep drives the active → stale →
// removed lifecycle: a marker goes stale when the wall clock passes its
// event's stale timestamp and is removed after a grace period, which
// absorbs brief reconnect gaps without map flicker.
//
// Subscribers receive created, updated, and removed notifications through
// a non-blocking bus; updated notifications carry the previous snapshot
// for diffing. Queries are filtered, fully materialized copies, never
// views into store state.
package marker
