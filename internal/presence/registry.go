package presence

import (
	"log"
	"sync"
)

// Channel is the delivery end of a live connection. TrySend must never
// block: it reports false when the message could not be handed to the
// connection (buffer full or connection gone).
type Channel interface {
	TrySend(msg []byte) bool
}

type entry struct {
	channelID   string
	displayName string
	ch          Channel
}

// Registry tracks which users currently have a live connection able to
// receive a push. It holds no persistence and is rebuilt from scratch on
// process restart; it is correct for a single-process deployment only.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]entry)}
}

// Register inserts or replaces the mapping for userID. A newer connection
// for the same user silently supersedes the old one (last-registered-wins).
func (r *Registry) Register(userID int64, channelID, displayName string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[userID]; ok && old.channelID != channelID {
		log.Printf("presence: user %d (%s) reconnected, superseding channel %s", userID, displayName, old.channelID)
	}
	r.entries[userID] = entry{channelID: channelID, displayName: displayName, ch: ch}
}

// Unregister removes the mapping for userID only if channelID matches the
// currently stored channel. A disconnect from a superseded connection racing
// a fresh registration is a no-op. Returns whether an entry was removed.
func (r *Registry) Unregister(userID int64, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[userID]
	if !ok || cur.channelID != channelID {
		return false
	}
	delete(r.entries, userID)
	log.Printf("presence: user %d (%s) disconnected", userID, cur.displayName)
	return true
}

// Lookup returns the live channel for userID. A missing entry means the
// user is not currently reachable, which is a normal outcome.
func (r *Registry) Lookup(userID int64) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return cur.ch, true
}

// Online returns the number of currently registered users.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
