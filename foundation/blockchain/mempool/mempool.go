// Package mempool maintains the payloads waiting to be mined into blocks.
package mempool

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Entry represents a payload that has been submitted but not yet mined.
type Entry struct {
	ID       string    `json:"id"`
	Data     []byte    `json:"data"`
	Level    uint      `json:"level"` // Requested difficulty level, 0 lets the miner decide.
	Received time.Time `json:"received"`
}

// =============================================================================

// Mempool represents a cache of pending payloads keyed by their id.
type Mempool struct {
	pool   map[string]Entry
	mu     sync.RWMutex
	sortFn SortStrategy
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(StrategyFIFO)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	sortFn, err := Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:   make(map[string]Entry),
		sortFn: sortFn,
	}

	return &mp, nil
}

// Count returns the current number of entries in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces an entry in the mempool.
func (mp *Mempool) Upsert(entry Entry) (int, error) {
	if entry.ID == "" {
		return 0, errors.New("entry id is required")
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	entry.Data = append([]byte(nil), entry.Data...)
	mp.pool[entry.ID] = entry

	return len(mp.pool), nil
}

// Delete removes an entry from the mempool.
func (mp *Mempool) Delete(id string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[id]; !exists {
		return fmt.Errorf("entry %q does not exist", id)
	}

	delete(mp.pool, id)

	return nil
}

// Truncate clears all the entries from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]Entry)
}

// PickBest uses the configured sort strategy to return the next set
// of entries to mine. Pass -1 for all the entries.
func (mp *Mempool) PickBest(howMany int) []Entry {
	entries := make([]Entry, 0, mp.Count())

	mp.mu.RLock()
	{
		for _, entry := range mp.pool {
			entries = append(entries, entry)
		}
	}
	mp.mu.RUnlock()

	return mp.sortFn(entries, howMany)
}

// PickNext returns the single best entry to mine next.
func (mp *Mempool) PickNext() (Entry, bool) {
	entries := mp.PickBest(1)
	if len(entries) == 0 {
		return Entry{}, false
	}

	return entries[0], true
}
