// Package pool provides reusable chunk read buffers.
//
// Chunk uploads read fixed-size slices of a file; pooling those buffers
// keeps allocation churn bounded during long sessions.
package pool

import (
	"sync"
)

const (
	// SmallBufferSize covers trailing chunks and tiny files (64KB)
	SmallBufferSize = 64 * 1024
	// MediumBufferSize covers mid-sized chunk configurations (1MB)
	MediumBufferSize = 1024 * 1024
	// LargeBufferSize covers the default 5MiB chunk size with headroom (8MB)
	LargeBufferSize = 8 * 1024 * 1024
)

// BufferPool manages reusable buffers of tiered sizes.
type BufferPool struct {
	small  *sync.Pool
	medium *sync.Pool
	large  *sync.Pool
}

// NewBufferPool creates a buffer pool with the default tiers.
func NewBufferPool() *BufferPool {
	newPool := func(size int) *sync.Pool {
		return &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, size)
				return &buf
			},
		}
	}
	return &BufferPool{
		small:  newPool(SmallBufferSize),
		medium: newPool(MediumBufferSize),
		large:  newPool(LargeBufferSize),
	}
}

// Get returns a zero-length buffer with capacity of at least size.
// Buffers beyond the largest tier are allocated fresh and never pooled.
func (bp *BufferPool) Get(size int) []byte {
	var p *sync.Pool
	switch {
	case size <= SmallBufferSize:
		p = bp.small
	case size <= MediumBufferSize:
		p = bp.medium
	case size <= LargeBufferSize:
		p = bp.large
	default:
		return make([]byte, 0, size)
	}
	bufPtr := p.Get().(*[]byte)
	return (*bufPtr)[:0]
}

// Put returns a buffer to the tier matching its capacity. Buffers that were
// allocated beyond the largest tier are dropped to avoid memory bloat.
func (bp *BufferPool) Put(buf []byte) {
	buf = buf[:0]
	switch cap(buf) {
	case SmallBufferSize:
		bp.small.Put(&buf)
	case MediumBufferSize:
		bp.medium.Put(&buf)
	case LargeBufferSize:
		bp.large.Put(&buf)
	}
}

// Global pool instance shared by chunk readers.
var globalPool = NewBufferPool()

// Get returns a buffer from the global pool for the specified size.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
