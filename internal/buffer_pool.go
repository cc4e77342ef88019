package internal

import "sync"

// BufferPool recycles part-sized byte buffers so steady-state multi-part
// uploads don't churn a fresh allocation per part.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool whose buffers are grown to at least
// initialSize on first use.
func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, 0, initialSize)
				return &b
			},
		},
	}
}

// Get returns a zero-length buffer: a fresh one has the pool's initial
// size as capacity, a recycled one keeps whatever capacity it had when
// it was Put, which may be smaller. Callers check cap before slicing up
// to their own needed length.
func (p *BufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return (*b)[:0]
}

// Put returns buf to the pool for reuse. Callers must not use buf after
// calling Put.
func (p *BufferPool) Put(buf []byte) {
	buf = buf[:0]
	p.pool.Put(&buf)
}
