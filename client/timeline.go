package client

import (
	"sort"
	"sync"

	"chatwire/internal/app/chat"
)

// Timeline merges history pages and live broadcasts into one ascending,
// duplicate-free message sequence for a single chat. The message identifier
// is the sole ordering key, so a message arriving both ways (broadcast and a
// later history pull) collapses into one entry.
type Timeline struct {
	mu       sync.Mutex
	messages []chat.MessageEvent
	seen     map[int64]struct{}
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[int64]struct{})}
}

// Add inserts one message in id order. It reports whether the message was new;
// a duplicate id leaves the timeline unchanged.
func (t *Timeline) Add(msg chat.MessageEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.insert(msg)
}

// AddPage inserts a history page. Pages may overlap each other and the live
// stream arbitrarily; the result is always the exact ascending union.
func (t *Timeline) AddPage(msgs []chat.MessageEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, msg := range msgs {
		if t.insert(msg) {
			added++
		}
	}
	return added
}

func (t *Timeline) insert(msg chat.MessageEvent) bool {
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	at := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].ID > msg.ID
	})

	t.messages = append(t.messages, chat.MessageEvent{})
	copy(t.messages[at+1:], t.messages[at:])
	t.messages[at] = msg
	return true
}

// Messages returns a copy of the timeline in ascending id order.
func (t *Timeline) Messages() []chat.MessageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]chat.MessageEvent, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of distinct messages held.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.messages)
}

// OldestID returns the smallest message id held, for use as the beforeId
// cursor of the next history page. Zero means the timeline is empty.
func (t *Timeline) OldestID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return 0
	}
	return t.messages[0].ID
}
