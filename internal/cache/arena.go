package cache

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

// ClipArena stores synthesized clips by key for the duration of one run.
// It never evicts; a full arena rejects new clips.
type ClipArena struct {
	capacity int64
	size     int64

	items map[dtypes.ClipKey]dtypes.Clip
	order []dtypes.ClipKey

	mu    sync.RWMutex
	stats Stats
}

// NewClipArena creates an arena. A capacity of 0 means unbounded.
func NewClipArena(capacity int64) *ClipArena {
	return &ClipArena{
		capacity: capacity,
		items:    make(map[dtypes.ClipKey]dtypes.Clip),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the clip stored under key.
func (a *ClipArena) Get(key dtypes.ClipKey) (dtypes.Clip, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clip, ok := a.items[key]
	if !ok {
		a.stats.Misses++
		return dtypes.Clip{}, false
	}
	a.stats.Hits++
	return clip, true
}

// Put stores clip under clip.Key. Storing the same audio twice is a no-op.
func (a *ClipArena) Put(clip dtypes.Clip) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.items[clip.Key]; ok {
		if existing.Format != clip.Format || !bytes.Equal(existing.PCM, clip.PCM) {
			return fmt.Errorf("%w: %s", ErrClipMismatch, clip.Key)
		}
		return nil
	}

	n := int64(len(clip.PCM))
	if a.capacity > 0 && a.size+n > a.capacity {
		return fmt.Errorf("%w: %d + %d bytes exceeds %d", ErrArenaFull, a.size, n, a.capacity)
	}

	a.items[clip.Key] = clip
	a.order = append(a.order, clip.Key)
	a.size += n
	return nil
}

// Contains reports whether key is stored without touching the statistics.
func (a *ClipArena) Contains(key dtypes.ClipKey) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.items[key]
	return ok
}

// Len returns the number of clips held.
func (a *ClipArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.items)
}

// Size returns the bytes held.
func (a *ClipArena) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.size
}

// Keys returns the stored keys in insertion order.
func (a *ClipArena) Keys() []dtypes.ClipKey {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Clone(a.order)
}

// Stats returns arena statistics.
func (a *ClipArena) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	stats.Size = a.size
	stats.ItemCount = int64(len(a.items))
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}
