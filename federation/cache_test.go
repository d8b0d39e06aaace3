package federation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/cot"
)

func cacheEvent(uid string) (*cot.Event, []byte) {
	ev := cot.NewPositionEvent(uid, "a-f-G-E-V", "ALPHA1", 38.8977, -77.0365, 10, 5*time.Minute)
	raw, err := cot.Serialize(ev)
	if err != nil {
		panic(err)
	}
	return ev, raw
}

func TestCache_Upsert(t *testing.T) {
	c := NewCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ev, raw := cacheEvent("U1")

	created := c.Upsert("U1", ev, raw, "srv-a", "Alpha", now)
	require.True(t, created)
	require.Equal(t, 1, c.Len())

	entry, ok := c.Get("U1")
	require.True(t, ok)
	assert.Equal(t, "srv-a", entry.SourceServerID)
	assert.Equal(t, "Alpha", entry.SourceServerName)
	assert.Equal(t, now, entry.ReceivedAt)
	assert.Equal(t, raw, entry.Raw)
	assert.Empty(t, entry.SharedTo)

	created = c.Upsert("U1", ev, raw, "srv-a", "Alpha", now.Add(time.Second))
	assert.False(t, created)
	assert.Equal(t, 1, c.Len())
}

func TestCache_UpsertPreservesSharedTo(t *testing.T) {
	c := NewCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ev, raw := cacheEvent("U1")

	c.Upsert("U1", ev, raw, "srv-a", "Alpha", now)
	require.True(t, c.ClaimShare("U1", "srv-b"))

	// Same UID re-reported by a different source: payload follows
	// last-write-wins, the shared-to set only grows.
	ev2, raw2 := cacheEvent("U1")
	created := c.Upsert("U1", ev2, raw2, "srv-c", "Charlie", now.Add(time.Minute))
	require.False(t, created)

	entry, ok := c.Get("U1")
	require.True(t, ok)
	assert.Equal(t, "srv-c", entry.SourceServerID)
	assert.Equal(t, now.Add(time.Minute), entry.ReceivedAt)
	assert.Equal(t, []string{"srv-b"}, entry.SharedTo)
}

func TestCache_ClaimShare(t *testing.T) {
	c := NewCache()
	ev, raw := cacheEvent("U1")
	c.Upsert("U1", ev, raw, "srv-a", "", time.Now())

	assert.True(t, c.ClaimShare("U1", "srv-b"))
	assert.False(t, c.ClaimShare("U1", "srv-b"))
	assert.True(t, c.ClaimShare("U1", "srv-c"))
	assert.False(t, c.ClaimShare("missing", "srv-b"))

	entry, _ := c.Get("U1")
	assert.Equal(t, []string{"srv-b", "srv-c"}, entry.SharedTo)
}

func TestCache_ClaimShareConcurrent(t *testing.T) {
	c := NewCache()
	ev, raw := cacheEvent("U1")
	c.Upsert("U1", ev, raw, "srv-a", "", time.Now())

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ClaimShare("U1", "srv-b") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
}

func TestCache_Snapshot(t *testing.T) {
	c := NewCache()
	now := time.Now()
	for _, uid := range []string{"U3", "U1", "U2"} {
		ev, raw := cacheEvent(uid)
		c.Upsert(uid, ev, raw, "srv-a", "", now)
	}

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "U1", snap[0].UID)
	assert.Equal(t, "U2", snap[1].UID)
	assert.Equal(t, "U3", snap[2].UID)
}

func TestCache_Sweep(t *testing.T) {
	c := NewCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	retention := time.Hour

	for i, age := range []time.Duration{2 * time.Hour, 30 * time.Minute, 0} {
		uid := fmt.Sprintf("U%d", i+1)
		ev, raw := cacheEvent(uid)
		c.Upsert(uid, ev, raw, "srv-a", "", now.Add(-age))
	}
	require.True(t, c.ClaimShare("U1", "srv-b"))

	removed := c.sweep(now, retention)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("U1")
	assert.False(t, ok)

	// A swept UID that reappears starts with an empty shared-to set,
	// so it fans out again.
	ev, raw := cacheEvent("U1")
	created := c.Upsert("U1", ev, raw, "srv-a", "", now)
	assert.True(t, created)
	entry, _ := c.Get("U1")
	assert.Empty(t, entry.SharedTo)
	assert.True(t, c.ClaimShare("U1", "srv-b"))
}
