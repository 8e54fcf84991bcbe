package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Buffer holds commands awaiting hardware acknowledgment for at most
// TTL, and allows exactly one successful retrieval per command id.
//
// Expiry is passive: an entry whose deadline has passed is unobservable
// to Take, with no background sweep required. StartReaper may be run to
// reclaim memory from entries that expire without ever being taken; the
// reaper has no externally observable effect.
type Buffer struct {
	mu      sync.Mutex
	entries map[string]bufferEntry
	ttl     time.Duration

	// now is the clock; replaced in tests to exercise expiry.
	now func() time.Time
}

type bufferEntry struct {
	cmd      PendingCommand
	deadline time.Time
}

// NewBuffer creates a command buffer with the given time-to-live.
func NewBuffer(ttl time.Duration) *Buffer {
	return &Buffer{
		entries: make(map[string]bufferEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Buffer stores cmd, assigns it a collision-free command id and a
// deadline of now + TTL, and returns the id immediately. Non-blocking;
// it does not wait for delivery or acknowledgment.
func (b *Buffer) Buffer(cmd PendingCommand) string {
	id := uuid.NewString()

	b.mu.Lock()
	now := b.now()
	cmd.CommandID = id
	cmd.CreatedAt = now
	b.entries[id] = bufferEntry{
		cmd:      cmd,
		deadline: now.Add(b.ttl),
	}
	b.mu.Unlock()

	return id
}

// Take atomically retrieves and removes the entry for id if present and
// not expired. Returns false for unknown, already-taken, or expired ids.
// An entry is expired at any time >= its deadline, the deadline instant
// included.
//
// Under concurrent Take calls for the same id exactly one caller
// observes the entry; all others observe a miss. Callers must treat
// "expired" and "already taken" identically.
func (b *Buffer) Take(id string) (PendingCommand, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[id]
	if !ok {
		return PendingCommand{}, false
	}

	delete(b.entries, id)

	if !b.now().Before(entry.deadline) {
		return PendingCommand{}, false
	}
	return entry.cmd, true
}

// Len returns the number of stored entries, including any that have
// expired but not yet been reaped. For tests and metrics only.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// StartReaper runs a background loop that frees memory held by expired
// entries every interval, until ctx is cancelled. Optional; expiry
// correctness does not depend on it. onExpire, if non-nil, is called
// with each reaped command (used for telemetry).
func (b *Buffer) StartReaper(ctx context.Context, interval time.Duration, onExpire func(PendingCommand)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, cmd := range b.reap() {
					if onExpire != nil {
						onExpire(cmd)
					}
				}
			}
		}
	}()
}

// reap removes and returns all expired entries.
func (b *Buffer) reap() []PendingCommand {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var reaped []PendingCommand
	for id, entry := range b.entries {
		if !now.Before(entry.deadline) {
			reaped = append(reaped, entry.cmd)
			delete(b.entries, id)
		}
	}
	return reaped
}
