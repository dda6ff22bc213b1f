package camera

import (
	"sync/atomic"
)

// DefaultPoolBuffers is the number of buffers a pooled source keeps in flight.
const DefaultPoolBuffers = 10

// BufferPool is a fixed set of equally sized frame buffers.
//
// Get never blocks: an empty pool means every buffer is held downstream, and
// the caller drops the frame. That is the only flow control between a pooled
// source and the tracking engine.
type BufferPool struct {
	free chan []byte
	size int

	gets   atomic.Uint64
	misses atomic.Uint64
}

// NewBufferPool allocates n buffers of size bytes. n <= 0 uses DefaultPoolBuffers.
func NewBufferPool(n, size int) *BufferPool {
	if n <= 0 {
		n = DefaultPoolBuffers
	}
	p := &BufferPool{
		free: make(chan []byte, n),
		size: size,
	}
	for i := 0; i < n; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// Get takes a buffer from the pool. ok is false when the pool is exhausted.
func (p *BufferPool) Get() (buf []byte, ok bool) {
	p.gets.Add(1)
	select {
	case buf = <-p.free:
		return buf, true
	default:
		p.misses.Add(1)
		return nil, false
	}
}

// Put returns a buffer to the pool. Buffers of the wrong size are discarded.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	select {
	case p.free <- buf[:p.size]:
	default:
	}
}

// Attach makes f return buf to the pool when released.
func (p *BufferPool) Attach(f *Frame, buf []byte) {
	f.SetRelease(func() { p.Put(buf) })
}

// BufferSize is the size of each pooled buffer.
func (p *BufferPool) BufferSize() int { return p.size }

// Available is the number of buffers currently in the pool.
func (p *BufferPool) Available() int { return len(p.free) }

// Misses is how many Get calls found the pool empty.
func (p *BufferPool) Misses() uint64 { return p.misses.Load() }

// Gets is how many Get calls were made.
func (p *BufferPool) Gets() uint64 { return p.gets.Load() }
