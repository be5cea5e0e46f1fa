// Package liveness is the liveness tracker (spec.md §4.2): an in-memory
// index of last-heartbeat time, last reported metrics, and a bounded
// per-device pending-command queue. The index lives in this process
// and is not shared between orchestrator replicas.
//
// No Redis client (or any other KV-store client) appears anywhere in
// the examples pack — the original's redis.asyncio usage has no Go
// analogue here — so this is an in-process sync.RWMutex-guarded map,
// documented in DESIGN.md as standard-library-only by necessity.
package liveness

import (
	"sync"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
)

// entry mirrors spec.md §3's ephemeral heartbeat record, keyed by
// device_id under live:{device_id} in the spec's KV-store framing.
type entry struct {
	seq        uint64
	receivedAt time.Time
	metrics    protocol.Metrics
	expiresAt  time.Time
	commands   *commandQueue
}

// Tracker is the liveness tracker.
type Tracker struct {
	mu                sync.RWMutex
	entries           map[string]*entry
	clock             clock.Clock
	heartbeatInterval time.Duration
}

func New(clk clock.Clock, heartbeatInterval time.Duration) *Tracker {
	return &Tracker{
		entries:           make(map[string]*entry),
		clock:             clk,
		heartbeatInterval: heartbeatInterval,
	}
}

// Ingest records a heartbeat. Returns false without updating state if
// seq is not strictly greater than the last stored sequence for this
// device — the stale-stream defense spec.md §3 requires.
func (t *Tracker) Ingest(deviceID string, seq uint64, metrics protocol.Metrics) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	existing, ok := t.entries[deviceID]
	if ok && seq <= existing.seq {
		return false
	}

	ttl := 3 * t.heartbeatInterval
	if ok {
		existing.seq = seq
		existing.receivedAt = now
		existing.metrics = metrics
		existing.expiresAt = now.Add(ttl)
		return true
	}

	t.entries[deviceID] = &entry{
		seq:        seq,
		receivedAt: now,
		metrics:    metrics,
		expiresAt:  now.Add(ttl),
		commands:   newCommandQueue(),
	}
	return true
}

// IsLive reports whether device_id has a live: key, i.e. a heartbeat
// within its TTL that hasn't been swept yet.
func (t *Tracker) IsLive(deviceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[deviceID]
	if !ok {
		return false
	}
	return t.clock.Now().Before(e.expiresAt)
}

// LastMetrics returns the most recently ingested metrics for a live
// device.
func (t *Tracker) LastMetrics(deviceID string) (protocol.Metrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[deviceID]
	if !ok {
		return protocol.Metrics{}, false
	}
	return e.metrics, true
}

// LastSeen returns when the device's most recent heartbeat arrived.
func (t *Tracker) LastSeen(deviceID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[deviceID]
	if !ok {
		return time.Time{}, false
	}
	return e.receivedAt, true
}

// Evict removes the live: key for a device, as the sweeper does when it
// downgrades a stale device (spec.md §4.4).
func (t *Tracker) Evict(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, deviceID)
}

// PushCommand enqueues a command to be delivered on the device's next
// heartbeat response (spec.md §4.2). Creates the device's queue
// lazily so commands can be queued ahead of its first heartbeat.
func (t *Tracker) PushCommand(deviceID string, cmd protocol.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[deviceID]
	if !ok {
		e = &entry{commands: newCommandQueue()}
		t.entries[deviceID] = e
	}
	e.commands.push(cmd)
}

// PopCommand pops at most one queued command for a device, per
// heartbeat response (spec.md §4.3).
func (t *Tracker) PopCommand(deviceID string) (protocol.Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[deviceID]
	if !ok {
		return protocol.Command{}, false
	}
	return e.commands.pop()
}

// LiveDeviceIDs returns a snapshot of currently-tracked device ids.
func (t *Tracker) LiveDeviceIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}
