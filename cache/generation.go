package cache

import "sync/atomic"

// Generation is a monotonically increasing invalidation epoch. Bumping it
// once invalidates every entry stamped with an earlier value, O(1) for the
// whole process with no enumeration of cached keys.
type Generation struct {
	n atomic.Uint64
}

// NewGeneration starts a counter at epoch zero.
func NewGeneration() *Generation {
	return &Generation{}
}

// Current returns the active epoch.
func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// Bump advances the epoch, invalidating all outstanding stamps, and returns
// the new value.
func (g *Generation) Bump() uint64 {
	return g.n.Add(1)
}
