// Package pool provides unified high-performance object pooling for Comet.
// It offers zero-allocation memory management with automatic object recycling,
// significantly reducing garbage collection pressure on the parse hot path.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Pre-configured global pools for the chunk machinery (field offsets,
//     value slices, scratch buffers)
//   - Buffer pooling with size-based buckets for encode payloads
//   - Comprehensive statistics and monitoring
//
// Example usage:
//
//	offsets := pool.GetOffsets(rows * cols * 2)
//	defer pool.PutOffsets(offsets)
//
//	// Using custom pools
//	myPool := pool.New(
//	    func() *MyType { return &MyType{} },
//	    func(obj *MyType) { obj.Reset() },
//	)
//	obj := myPool.Get()
//	defer myPool.Put(obj)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with additional features like statistics tracking
// and automatic reset functionality. The pool is safe for concurrent use.
//
// Type parameter T can be any type, but pointer types are recommended
// for efficiency. The pool maintains statistics on allocations, usage,
// and hit/miss rates for monitoring and optimization.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty and a new object is
// needed. The reset function is called before returning an object to the
// pool, allowing for efficient cleanup and reuse.
//
// Example:
//
//	pool := New(
//	    func() *Buffer { return &Buffer{data: make([]byte, 0, 1024)} },
//	    func(b *Buffer) { b.data = b.data[:0] },
//	)
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool. If the pool is empty, it creates
// a new object using the factory function provided in New. The method is
// safe for concurrent use and updates pool statistics.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse. If a reset function was
// provided during pool creation, it is called to clean up the object
// before returning it to the pool. The method is safe for concurrent use.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics including allocation count,
// objects currently in use, cache hits, and cache misses. These metrics
// are useful for monitoring pool efficiency and tuning performance.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// Global pools for the chunk machinery. Parsing allocates one offsets slice
// per loaded chunk and releases it on unload, so these pools see constant
// churn at steady state.
var (
	// OffsetsPool provides pooling for field offset indexes. A loaded chunk
	// stores two uint32 words per field, so slices are sized for roughly a
	// thousand rows of an eight-column file and grown on demand.
	OffsetsPool = New(
		func() []uint32 {
			return make([]uint32, 0, 16384)
		},
		func(s []uint32) {
			// Length reset happens on Get; contents are overwritten
		},
	)

	// StringSlicePool provides pooling for decoded row values collected for
	// re-emission. Slices are pre-allocated with capacity 32 and cleared on
	// return so field strings do not pin chunk memory.
	StringSlicePool = New(
		func() []string {
			return make([]string, 0, 32)
		},
		func(s []string) {
			for i := range s {
				s[i] = ""
			}
		},
	)

	// ByteSlicePool provides pooling for general-purpose scratch buffers,
	// such as unescaping quoted field content. Slices are pre-allocated with
	// 1KB capacity and reset to zero length on return.
	ByteSlicePool = New(
		func() []byte {
			return make([]byte, 0, 1024)
		},
		func(b []byte) {
			// Reset slice length (assignment not needed)
		},
	)

	// IDBufferPool provides pooling for ID generation buffers.
	IDBufferPool = New(
		func() []byte {
			return make([]byte, 0, 64)
		},
		func(b []byte) {
			// Reset slice length (assignment not needed)
		},
	)
)

// idCounter provides atomic unique ID generation
var idCounter uint64

// GetOffsets retrieves an offsets slice from the global pool. If the
// requested capacity exceeds the pooled slice capacity, a new slice is
// allocated. The returned slice always has zero length.
//
// Example:
//
//	offsets := pool.GetOffsets(rows * cols * 2)
//	defer pool.PutOffsets(offsets)
func GetOffsets(capacity int) []uint32 {
	s := OffsetsPool.Get()
	if cap(s) < capacity {
		// Replace the pooled slice; the small one goes back on Put
		OffsetsPool.Put(s)
		return make([]uint32, 0, capacity)
	}
	return s[:0]
}

// PutOffsets returns an offsets slice to the global pool for reuse.
// This function is safe to call with nil slices.
func PutOffsets(s []uint32) {
	if s != nil {
		OffsetsPool.Put(s)
	}
}

// GetStringSlice retrieves a string slice from the global pool.
// The returned slice has zero length and capacity at least 32.
func GetStringSlice() []string {
	return StringSlicePool.Get()[:0]
}

// PutStringSlice returns a string slice to the global pool for reuse.
// The slice is automatically cleared before being pooled.
// This function is safe to call with nil slices.
func PutStringSlice(s []string) {
	if s != nil {
		StringSlicePool.Put(s)
	}
}

// GetByteSlice retrieves a byte slice from the global pool.
// The returned slice has zero length and capacity at least 1024.
func GetByteSlice() []byte {
	return ByteSlicePool.Get()[:0]
}

// PutByteSlice returns a byte slice to the global pool for reuse.
// This function is safe to call with nil slices.
func PutByteSlice(b []byte) {
	if b != nil {
		ByteSlicePool.Put(b)
	}
}

// GenerateID generates a unique ID with the specified prefix using pooled
// buffers. The ID format is "prefix-number" where number is an atomic
// counter. This function is safe for concurrent use.
//
// Example:
//
//	id := pool.GenerateID("task")  // Returns "task-1", "task-2", etc.
func GenerateID(prefix string) string {
	buf := IDBufferPool.Get()
	defer IDBufferPool.Put(buf)

	// Use atomic counter for uniqueness
	id := atomic.AddUint64(&idCounter, 1)

	// Build ID efficiently
	buf = append(buf, prefix...)
	buf = append(buf, '-')
	buf = appendUint64(buf, id)

	return string(buf)
}

// appendUint64 efficiently appends uint64 to byte slice
func appendUint64(buf []byte, n uint64) []byte {
	if n == 0 {
		return append(buf, '0')
	}

	// Calculate digits
	temp := n
	digits := 0
	for temp > 0 {
		temp /= 10
		digits++
	}

	// Extend buffer
	start := len(buf)
	buf = buf[:start+digits]

	// Fill digits from right to left
	for i := digits - 1; i >= 0; i-- {
		buf[start+i] = byte('0' + n%10)
		n /= 10
	}

	return buf
}

// BufferPool manages byte buffer pooling with size-based buckets.
// It maintains multiple pools for different buffer sizes, automatically
// selecting the appropriate pool based on requested size. The encode phase
// uses it for per-chunk payload buffers, which cluster around the chunk
// size and reuse well across tasks.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a new buffer pool with predefined size buckets.
// The pool uses power-of-2 sizes from 512 bytes to 16MB, covering most
// common buffer requirements. Buffers larger than 16MB are allocated
// directly without pooling.
//
// The predefined sizes are:
//   - 512B, 1KB, 4KB, 16KB, 64KB, 256KB, 1MB, 4MB, 16MB
func NewBufferPool() *BufferPool {
	// Common buffer sizes (powers of 2)
	sizes := []int{
		512,      // 512B
		1024,     // 1KB
		4096,     // 4KB
		16384,    // 16KB
		65536,    // 64KB
		262144,   // 256KB
		1048576,  // 1MB
		4194304,  // 4MB
		16777216, // 16MB
	}

	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		size := size // capture loop variable
		pools[i] = New(
			func() []byte {
				return make([]byte, size)
			},
			func(b []byte) {
				// Contents overwritten by the next user
			},
		)
	}

	return &BufferPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns a buffer of at least the requested size from the pool.
// It selects the smallest available buffer that can accommodate the request.
// For sizes larger than 16MB, a new buffer is allocated directly.
//
// The returned buffer's length is set to the requested size, but its
// capacity may be larger.
func (p *BufferPool) Get(size int) []byte {
	// Find the smallest buffer that fits
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}

	// Fallback to allocation for very large buffers
	return make([]byte, size)
}

// Put returns a buffer to the pool for reuse.
// The buffer is matched to its appropriate size pool based on capacity.
// Buffers that don't match any pool size are released to garbage collection.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)

	// Find the matching pool
	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf[:s])
			return
		}
	}

	// Buffer doesn't match any pool size, let GC handle it
}

// GlobalBufferPool provides size-based byte buffer pooling for encode and
// merge scratch buffers. It manages buffers from 512B to 16MB with
// automatic size selection.
var GlobalBufferPool = NewBufferPool()

// Stats represents pool statistics for monitoring and optimization.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64
	// InUse is the current number of objects checked out from the pool
	InUse int64
	// Hits is the number of successful pool retrievals
	Hits int64
	// Misses is the number of times a new object had to be created
	Misses int64
}

// GetGlobalStats returns statistics for all global pools, keyed by pool
// name. This is useful for monitoring pool efficiency and detecting leaks
// of loaded-chunk resources.
func GetGlobalStats() map[string]Stats {
	offsetsAlloc, offsetsInUse, offsetsHits, offsetsMisses := OffsetsPool.Stats()
	stringAlloc, stringInUse, stringHits, stringMisses := StringSlicePool.Stats()
	byteAlloc, byteInUse, byteHits, byteMisses := ByteSlicePool.Stats()

	return map[string]Stats{
		"offsets": {
			Allocated: offsetsAlloc,
			InUse:     offsetsInUse,
			Hits:      offsetsHits,
			Misses:    offsetsMisses,
		},
		"string_slice": {
			Allocated: stringAlloc,
			InUse:     stringInUse,
			Hits:      stringHits,
			Misses:    stringMisses,
		},
		"byte_slice": {
			Allocated: byteAlloc,
			InUse:     byteInUse,
			Hits:      byteHits,
			Misses:    byteMisses,
		},
	}
}
