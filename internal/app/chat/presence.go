/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the Presence registry, a reference-counted table of live
connections per user. A user is online iff their count is greater than zero;
only the 0-to-1 and 1-to-0 edges are externally visible, so a second device
connecting or the first of two devices disconnecting never flickers the flag.
*/
package chat

import (
	"sort"
	"sync"
)

// Presence tracks the number of live connections per user identity.
// All mutation goes through a single lock, so concurrent connect/disconnect
// for the same or different users cannot lose updates.
type Presence struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewPresence returns an empty presence registry.
func NewPresence() *Presence {
	return &Presence{
		counts: make(map[int64]int),
	}
}

// Connect increments the user's connection count and reports whether this was
// the 0-to-1 transition that makes the user publicly online.
func (p *Presence) Connect(userID int64) (wentOnline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	return p.counts[userID] == 1
}

// Disconnect decrements the user's connection count, floored at zero, and
// reports whether this was the 1-to-0 transition that makes the user offline.
// A disconnect for an unknown user is a no-op.
func (p *Presence) Disconnect(userID int64) (wentOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.counts[userID]
	if !ok {
		return false
	}

	if c <= 1 {
		delete(p.counts, userID)
		return true
	}

	p.counts[userID] = c - 1
	return false
}

// Snapshot returns the identities of every user with a nonzero count,
// sorted ascending for deterministic payloads.
func (p *Presence) Snapshot() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int64, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Online reports whether the user currently has at least one live connection.
func (p *Presence) Online(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.counts[userID] > 0
}
