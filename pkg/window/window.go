// Package window buffers per-sensor sample values for analysis, either
// as back-to-back blocks or as a rolling ring over the most recent
// samples.
package window

// Block collects values into fixed, non-overlapping windows of n
// samples. Completed windows are numbered from 1 so warm-up windows can
// be discarded by id.
type Block struct {
	n   int
	buf []float64
	id  uint64
}

// NewBlock creates a block window of n samples.
func NewBlock(n int) *Block {
	if n < 1 {
		n = 1
	}
	return &Block{n: n, buf: make([]float64, 0, n)}
}

// Push adds one value. When the value completes a window, Push returns
// a copy of it together with its id and true, and starts the next
// window empty.
func (b *Block) Push(v float64) ([]float64, uint64, bool) {
	b.buf = append(b.buf, v)
	if len(b.buf) < b.n {
		return nil, 0, false
	}

	b.id++
	out := make([]float64, b.n)
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out, b.id, true
}

// Len returns how many values the current window holds.
func (b *Block) Len() int {
	return len(b.buf)
}

// Size returns the window length n.
func (b *Block) Size() int {
	return b.n
}

// Ring keeps the most recent n values. Once filled, every push
// overwrites the oldest value.
type Ring struct {
	n      int
	buf    []float64
	pos    int
	filled bool
}

// NewRing creates a ring over the last n values.
func NewRing(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{n: n, buf: make([]float64, n)}
}

// Push adds one value, overwriting the oldest once the ring is full.
func (r *Ring) Push(v float64) {
	r.buf[r.pos] = v
	r.pos++
	if r.pos == r.n {
		r.pos = 0
		r.filled = true
	}
}

// Filled reports whether the ring has wrapped at least once.
func (r *Ring) Filled() bool {
	return r.filled
}

// Len returns how many values the ring currently holds.
func (r *Ring) Len() int {
	if r.filled {
		return r.n
	}
	return r.pos
}

// Size returns the ring capacity n.
func (r *Ring) Size() int {
	return r.n
}

// Snapshot copies the held values in chronological order, oldest first.
// Destination-based: reuses dst if it has sufficient capacity, otherwise
// allocates new.
func (r *Ring) Snapshot(dst []float64) []float64 {
	n := r.Len()
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]float64, n)
	}

	if !r.filled {
		copy(dst, r.buf[:r.pos])
		return dst
	}

	for i := 0; i < r.n; i++ {
		dst[i] = r.buf[(r.pos+i)%r.n]
	}
	return dst
}
