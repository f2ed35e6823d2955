package cache

import "errors"

var (
	// ErrArenaFull is returned when a clip would push the arena past its
	// byte budget.
	ErrArenaFull = errors.New("clip arena is full")

	// ErrClipMismatch is returned when a different clip is stored under an
	// existing key.
	ErrClipMismatch = errors.New("clip already stored with different audio")
)

// Stats holds arena counters.
type Stats struct {
	Capacity  int64   // byte budget, 0 for unbounded
	Size      int64   // bytes held
	ItemCount int64   // clips held
	Hits      int64   // lookups that found a clip
	Misses    int64   // lookups that did not
	HitRate   float64 // hits / (hits + misses)
}
