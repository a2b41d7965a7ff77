package wordbank

import (
	"sync"
	"time"

	"github.com/mockify/interviewstats/internal/transcript"
)

// Provenance records what a bank was built from.
type Provenance struct {
	SessionCount int       `json:"session_count" yaml:"session_count"`
	BuiltAt      time.Time `json:"built_at" yaml:"built_at"`
}

// Snapshot is a bank together with its provenance. Bank must be
// treated as read-only; the cache hands the same map to every
// reader.
type Snapshot struct {
	Bank       Bank
	Provenance Provenance
}

// Stale reports whether the snapshot was built over a different
// number of sessions than the collection currently holds.
func (s Snapshot) Stale(currentSessions int) bool {
	return s.Provenance.SessionCount != currentSessions
}

// Cache holds the current word bank. Rebuild replaces it
// wholesale; it is never merged with earlier state.
type Cache struct {
	mu     sync.RWMutex
	snap   Snapshot
	loaded bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the current snapshot, or false when the cache has
// never been loaded or was invalidated.
func (c *Cache) Get() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.loaded
}

// Rebuild indexes sessions, stores the result, and returns it.
func (c *Cache) Rebuild(
	sessions []transcript.Session, now time.Time,
) Snapshot {
	snap := Snapshot{
		Bank: Rebuild(sessions),
		Provenance: Provenance{
			SessionCount: len(sessions),
			BuiltAt:      now.UTC(),
		},
	}
	c.Load(snap.Bank, snap.Provenance)
	return snap
}

// Load installs a bank read from storage.
func (c *Cache) Load(bank Bank, prov Provenance) {
	if bank == nil {
		bank = Bank{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot{Bank: bank, Provenance: prov}
	c.loaded = true
}

// Clear installs an empty bank, as after a user-requested clear.
func (c *Cache) Clear() {
	c.Load(Bank{}, Provenance{})
}

// Invalidate drops the cached bank so the next Get misses.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot{}
	c.loaded = false
}
