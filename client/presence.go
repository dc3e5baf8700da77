package client

import (
	"sort"
	"sync"

	"chatwire/internal/app/chat"
)

// PresenceSet is the client-side view of who is online. A snapshot replaces
// the whole set; updates apply single edges on top of it. Safe for concurrent
// use, so callbacks may feed it directly.
type PresenceSet struct {
	mu       sync.Mutex
	online   map[int64]struct{}
	lastSeen map[int64]int64
}

// NewPresenceSet returns an empty presence view.
func NewPresenceSet() *PresenceSet {
	return &PresenceSet{
		online:   make(map[int64]struct{}),
		lastSeen: make(map[int64]int64),
	}
}

// ApplySnapshot replaces the online set with the authoritative server list.
// Last-seen marks survive; they describe users who are offline either way.
func (p *PresenceSet) ApplySnapshot(snap chat.PresenceSnapshotPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.online = make(map[int64]struct{}, len(snap.OnlineUserIDs))
	for _, id := range snap.OnlineUserIDs {
		p.online[id] = struct{}{}
	}
}

// ApplyUpdate applies one presence transition edge.
func (p *PresenceSet) ApplyUpdate(update chat.PresenceUpdatePayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if update.Online {
		p.online[update.UserID] = struct{}{}
		return
	}

	delete(p.online, update.UserID)
	if update.LastSeen != nil {
		p.lastSeen[update.UserID] = *update.LastSeen
	}
}

// Online reports whether the user currently has a live connection.
func (p *PresenceSet) Online(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.online[userID]
	return ok
}

// LastSeen returns the most recent offline timestamp in epoch milliseconds.
// The second return value is false when no offline edge has been observed.
func (p *PresenceSet) LastSeen(userID int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ms, ok := p.lastSeen[userID]
	return ms, ok
}

// OnlineUsers returns the online user ids in ascending order.
func (p *PresenceSet) OnlineUsers() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int64, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
