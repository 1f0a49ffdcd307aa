package market

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// DefaultWindowSize covers 24h of samples at 5s granularity.
const DefaultWindowSize = 17280

// PricePoint is a single observed price sample. Immutable once recorded.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Asset     string    `json:"asset"`
	Price     float64   `json:"price"`
}

// Window keeps a fixed-capacity ring of recent price points per asset.
// Many concurrent readers are expected; the feed is the single writer for
// any given asset. Readers always get independent copies.
type Window struct {
	shards   [numShards]*windowShard
	capacity int
}

type windowShard struct {
	mu    sync.RWMutex
	rings map[string]*ring
}

// ring is a FIFO buffer: once full, every append evicts the oldest point.
type ring struct {
	points []PricePoint
	start  int // index of the oldest point once the ring is full
}

// NewWindow creates a window store with the given per-asset capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	w := &Window{capacity: capacity}
	for i := range w.shards {
		w.shards[i] = &windowShard{rings: make(map[string]*ring)}
	}
	return w
}

func (w *Window) shard(asset string) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(asset))
	return w.shards[h.Sum32()%numShards]
}

// Append records a new point for its asset, evicting the oldest when full.
func (w *Window) Append(p PricePoint) {
	s := w.shard(p.Asset)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[p.Asset]
	if !ok {
		r = &ring{points: make([]PricePoint, 0, w.capacity)}
		s.rings[p.Asset] = r
	}

	if len(r.points) < w.capacity {
		r.points = append(r.points, p)
		return
	}
	r.points[r.start] = p
	r.start = (r.start + 1) % w.capacity
}

// Snapshot returns up to n of the most recent points for an asset, oldest
// first, as an independent copy.
func (w *Window) Snapshot(asset string, n int) []PricePoint {
	s := w.shard(asset)
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rings[asset]
	if !ok || n <= 0 {
		return nil
	}

	size := len(r.points)
	if n > size {
		n = size
	}

	out := make([]PricePoint, n)
	for i := 0; i < n; i++ {
		// walk backwards from the newest point
		idx := (r.start + size - n + i) % size
		out[i] = r.points[idx]
	}
	return out
}

// Len reports how many points are currently buffered for an asset.
func (w *Window) Len(asset string) int {
	s := w.shard(asset)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rings[asset]; ok {
		return len(r.points)
	}
	return 0
}

// LatestPrice returns the newest recorded price for an asset.
func (w *Window) LatestPrice(asset string) (float64, bool) {
	p, ok := w.latest(asset)
	return p.Price, ok
}

// LatestAge reports how stale the newest point for an asset is. A stalled
// feed shows up as growing age, not as an error.
func (w *Window) LatestAge(asset string) (time.Duration, bool) {
	p, ok := w.latest(asset)
	if !ok {
		return 0, false
	}
	return time.Since(p.Timestamp), true
}

func (w *Window) latest(asset string) (PricePoint, bool) {
	s := w.shard(asset)
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rings[asset]
	if !ok || len(r.points) == 0 {
		return PricePoint{}, false
	}
	size := len(r.points)
	idx := (r.start + size - 1) % size
	return r.points[idx], true
}

// Assets lists every asset with at least one buffered point.
func (w *Window) Assets() []string {
	var out []string
	for _, s := range w.shards {
		s.mu.RLock()
		for asset := range s.rings {
			out = append(out, asset)
		}
		s.mu.RUnlock()
	}
	return out
}
