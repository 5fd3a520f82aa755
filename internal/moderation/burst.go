package moderation

import (
	"sync"
	"time"
)

// BurstDetector flags users who send Size messages within Window, across all
// chats. State lives in memory only and is lost on restart.
type BurstDetector struct {
	mu      sync.Mutex
	size    int
	window  time.Duration
	history map[int64][]time.Time
}

// NewBurstDetector creates a detector. Non-positive arguments fall back to
// 3 messages in 3 seconds.
func NewBurstDetector(size int, window time.Duration) *BurstDetector {
	if size <= 0 {
		size = 3
	}
	if window <= 0 {
		window = 3 * time.Second
	}
	return &BurstDetector{
		size:    size,
		window:  window,
		history: make(map[int64][]time.Time),
	}
}

// Observe records a message of userID at t. It reports true when the last
// size messages span less than the window, clearing the user's history.
func (d *BurstDetector) Observe(userID int64, t time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ring := append(d.history[userID], t)
	if len(ring) > d.size {
		ring = ring[len(ring)-d.size:]
	}

	if len(ring) == d.size && ring[len(ring)-1].Sub(ring[0]) < d.window {
		delete(d.history, userID)
		return true
	}
	d.history[userID] = ring
	return false
}

// Reset forgets the history of userID.
func (d *BurstDetector) Reset(userID int64) {
	d.mu.Lock()
	delete(d.history, userID)
	d.mu.Unlock()
}

// notified remembers which (chat, user) pairs were already told about a
// blacklist, keyed to that blacklist's expiry so a new entry notifies again.
type notified struct {
	mu   sync.Mutex
	seen map[[2]int64]time.Time
}

func newNotified() *notified {
	return &notified{seen: make(map[[2]int64]time.Time)}
}

// mark records the pair for the blacklist ending at expires and reports
// whether it was not yet recorded.
func (n *notified) mark(chatID, userID int64, expires time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := [2]int64{chatID, userID}
	if prev, ok := n.seen[key]; ok && prev.Equal(expires) {
		return false
	}
	n.seen[key] = expires
	return true
}

func (n *notified) clearUser(userID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key := range n.seen {
		if key[1] == userID {
			delete(n.seen, key)
		}
	}
}

// prune drops flags whose blacklist ended by now.
func (n *notified) prune(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, expires := range n.seen {
		if !expires.After(now) {
			delete(n.seen, key)
		}
	}
}
