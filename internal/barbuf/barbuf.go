// Package barbuf provides a fixed-capacity history of the most recent bars
// for a symbol. When full, appending overwrites the oldest bar.
//
// It is written and read only from the engine's single trading loop, so no
// synchronization is needed.
package barbuf

import "tradesim/internal/model"

// History holds the trailing window of bars used for indicator warmup.
// Capacity is rounded up to the next power of two for cheap index masking.
type History struct {
	buf   []model.Bar
	mask  uint64
	count uint64
}

// New creates a history retaining at least capacity bars (minimum 2).
func New(capacity int) *History {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &History{
		buf:  make([]model.Bar, c),
		mask: uint64(c - 1),
	}
}

// Append adds a bar, evicting the oldest when the buffer is full.
func (h *History) Append(bar model.Bar) {
	h.buf[h.count&h.mask] = bar
	h.count++
}

// Len returns the number of retained bars.
func (h *History) Len() int {
	if h.count > uint64(len(h.buf)) {
		return len(h.buf)
	}
	return int(h.count)
}

// Cap returns the buffer capacity.
func (h *History) Cap() int { return len(h.buf) }

// Last returns the most recent bar, or false when empty.
func (h *History) Last() (model.Bar, bool) {
	if h.count == 0 {
		return model.Bar{}, false
	}
	return h.buf[(h.count-1)&h.mask], true
}

// Bars returns the retained bars in chronological order.
func (h *History) Bars() []model.Bar {
	n := h.Len()
	out := make([]model.Bar, n)
	start := h.count - uint64(n)
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+uint64(i))&h.mask]
	}
	return out
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
