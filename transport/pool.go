package transport

import (
	"errors"
	"sync"
)

var ErrPoolExhausted = errors.New("buffer pool exhausted")

// Pool hands out fixed-size slices of one preallocated arena. Slots are
// carved from the arena on demand and recycled through a LIFO free list.
type Pool struct {
	mu sync.Mutex

	arena   []byte
	size    int
	carved  int
	free    []int
	maxFree int

	discarded int
}

// Buffer is one slot of a Pool.
type Buffer struct {
	pool     *Pool
	off      int
	b        []byte
	released bool
}

type PoolStats struct {
	Slots     int
	Carved    int
	Free      int
	InUse     int
	Discarded int
}

// NewPool allocates slots*size bytes. At most maxFree released slots are
// kept for reuse; a slot released past that is dropped for good.
func NewPool(slots, size, maxFree int) *Pool {
	return &Pool{
		arena:   make([]byte, slots*size),
		size:    size,
		free:    make([]int, 0, maxFree),
		maxFree: maxFree,
	}
}

func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var off int
	if n := len(p.free); n > 0 {
		off = p.free[n-1]
		p.free = p.free[:n-1]
	} else if (p.carved+1)*p.size <= len(p.arena) {
		off = p.carved * p.size
		p.carved++
	} else {
		return nil, ErrPoolExhausted
	}

	b := p.arena[off : off+p.size : off+p.size]
	clear(b)
	return &Buffer{pool: p, off: off, b: b}, nil
}

// Release returns b to the pool. Releasing the same Buffer again does
// nothing.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b.pool != p || b.released {
		return
	}
	b.released = true
	b.b = nil

	if len(p.free) >= p.maxFree {
		p.discarded++
		return
	}
	p.free = append(p.free, b.off)
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Slots:     len(p.arena) / max(p.size, 1),
		Carved:    p.carved,
		Free:      len(p.free),
		InUse:     p.carved - len(p.free) - p.discarded,
		Discarded: p.discarded,
	}
}

// Size is the length of every buffer handed out.
func (p *Pool) Size() int {
	return p.size
}

// Bytes is nil once the buffer has been released.
func (b *Buffer) Bytes() []byte {
	return b.b
}

func (b *Buffer) Release() {
	b.pool.Release(b)
}
