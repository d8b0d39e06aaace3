package federation

import (
	"sort"
	"sync"
	"time"

	"github.com/omnitak/takcore/cot"
)

// Entry is the public snapshot of one deduplicated event. SharedTo
// lists the server IDs the event has been claimed for; a claim is made
// before the send is attempted, so a listed server may not have
// received the payload if its connection failed at the wrong moment.
type Entry struct {
	UID              string     `json:"uid"`
	Event            *cot.Event `json:"-"`
	Raw              []byte     `json:"-"`
	SourceServerID   string     `json:"sourceServerId"`
	SourceServerName string     `json:"sourceServerName,omitempty"`
	ReceivedAt       time.Time  `json:"receivedAt"`
	SharedTo         []string   `json:"sharedTo"`
}

type cacheEntry struct {
	uid        string
	event      *cot.Event
	raw        []byte
	sourceID   string
	sourceName string
	receivedAt time.Time
	sharedTo   map[string]struct{}
}

func (e *cacheEntry) snapshot() Entry {
	shared := make([]string, 0, len(e.sharedTo))
	for id := range e.sharedTo {
		shared = append(shared, id)
	}
	sort.Strings(shared)
	return Entry{
		UID:              e.uid,
		Event:            e.event,
		Raw:              e.raw,
		SourceServerID:   e.sourceID,
		SourceServerName: e.sourceName,
		ReceivedAt:       e.receivedAt,
		SharedTo:         shared,
	}
}

// Cache deduplicates events across servers by UID. The payload follows
// last-write-wins while the shared-to set only grows, so a re-received
// event is never fanned out to a server that already got an earlier
// revision.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Upsert records an event under its UID. A repeat UID replaces the
// payload and source attribution but keeps the accumulated shared-to
// set. Returns true when the UID was not present before.
func (c *Cache) Upsert(uid string, ev *cot.Event, raw []byte, sourceID, sourceName string, receivedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[uid]; ok {
		existing.event = ev
		existing.raw = raw
		existing.sourceID = sourceID
		existing.sourceName = sourceName
		existing.receivedAt = receivedAt
		return false
	}
	c.entries[uid] = &cacheEntry{
		uid:        uid,
		event:      ev,
		raw:        raw,
		sourceID:   sourceID,
		sourceName: sourceName,
		receivedAt: receivedAt,
		sharedTo:   make(map[string]struct{}),
	}
	return true
}

// ClaimShare atomically marks uid as shared to serverID. Returns true
// when this call made the claim, false when the server already held it
// or the entry is gone. Callers claim before sending so two concurrent
// fan-outs of the same event cannot both send to one server.
func (c *Cache) ClaimShare(uid, serverID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[uid]
	if !ok {
		return false
	}
	if _, done := entry.sharedTo[serverID]; done {
		return false
	}
	entry.sharedTo[serverID] = struct{}{}
	return true
}

// Get returns a snapshot of the entry for uid.
func (c *Cache) Get(uid string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[uid]
	if !ok {
		return Entry{}, false
	}
	return entry.snapshot(), true
}

// Len returns the number of cached UIDs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns all entries sorted by UID.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// sweep drops entries received before now minus retention and returns
// how many were removed. Dropping an entry also forgets its shared-to
// set, so a UID that reappears later fans out again.
func (c *Cache) sweep(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for uid, entry := range c.entries {
		if entry.receivedAt.Before(cutoff) {
			delete(c.entries, uid)
			removed++
		}
	}
	return removed
}
