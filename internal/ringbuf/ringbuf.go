// Package ringbuf implements the time-indexed, bounded signal log: a
// FIFO-eviction buffer over (t, payload) entries with windowed queries
// answered by binary search over the monotonically non-decreasing
// timestamps.
package ringbuf

import "sort"

// DefaultCapacity mirrors the source's default maxlen.
const DefaultCapacity = 512

// Entry is one stored (t, payload) pair, as returned by Window —
// payload augmented with its stored timestamp.
type Entry struct {
	T       float64
	Payload map[string]float64
}

// Buffer is a single-producer/single-consumer-at-the-tick-level ring
// buffer. Control produces; the Event-Pack Assembler reads on triggers
// from the same thread. Any advisory-band reader must go through a
// snapshot rather than holding a lock across the Control tick body.
type Buffer struct {
	ts       []float64
	xs       []map[string]float64
	capacity int
}

// New returns an empty Buffer with the given capacity. capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Add appends (t, payload). Caller must ensure t is >= the last added
// timestamp — the buffer does not defend against out-of-order callers,
// matching the source's documented invariant. When the buffer exceeds
// capacity, the oldest entries are evicted from the front.
func (b *Buffer) Add(t float64, payload map[string]float64) {
	b.ts = append(b.ts, t)
	b.xs = append(b.xs, payload)
	if len(b.ts) > b.capacity {
		over := len(b.ts) - b.capacity
		b.ts = b.ts[over:]
		b.xs = b.xs[over:]
	}
}

// Len reports the number of entries currently stored.
func (b *Buffer) Len() int {
	return len(b.ts)
}

// Window returns every entry whose timestamp lies in [t0, t1], in
// ascending time order, found via binary search in O(log n + k).
func (b *Buffer) Window(t0, t1 float64) []Entry {
	i0 := sort.Search(len(b.ts), func(i int) bool { return b.ts[i] >= t0 })
	i1 := sort.Search(len(b.ts), func(i int) bool { return b.ts[i] > t1 })

	out := make([]Entry, 0, i1-i0)
	for i := i0; i < i1; i++ {
		out = append(out, Entry{T: b.ts[i], Payload: b.xs[i]})
	}
	return out
}
