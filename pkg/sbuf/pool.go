// Package sbuf implements reference-counted sample buffers shared across a
// single channel's DSP pipeline, and the pools that recycle them.
//
// A buffer is owned by exactly one stage at a time. Forwarding a buffer to
// a second consumer (fan-out) requires incrementing the user count first;
// the last decrement to zero returns the buffer to its pool. Accessing a
// buffer after its user count reaches zero is a programmer error and panics
// rather than silently corrupting pooled memory.
package sbuf

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ComplexBuffer is a pooled, reference-counted buffer of interleaved-free
// complex64 IQ samples.
type ComplexBuffer struct {
	pool    *ComplexPool
	samples []complex64
	count   int
	users   int
	mu      sync.Mutex
}

// Samples returns the live sample slice. Panics if the buffer has already
// been released back to its pool.
func (b *ComplexBuffer) Samples() []complex64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users <= 0 {
		panic("sbuf: access to released ComplexBuffer")
	}
	return b.samples[:b.count]
}

// SampleCount returns the number of valid samples in the buffer.
func (b *ComplexBuffer) SampleCount() int {
	return b.count
}

// IncrementUserCount must be called by a stage before handing the buffer to
// an additional consumer (fan-out).
func (b *ComplexBuffer) IncrementUserCount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users <= 0 {
		panic("sbuf: increment of released ComplexBuffer")
	}
	b.users++
}

// DecrementUserCount releases one reference. When the count reaches zero the
// buffer is returned to its pool and must not be touched again.
func (b *ComplexBuffer) DecrementUserCount() {
	b.mu.Lock()
	if b.users <= 0 {
		b.mu.Unlock()
		panic("sbuf: double release of ComplexBuffer")
	}
	b.users--
	released := b.users == 0
	b.mu.Unlock()

	if released && b.pool != nil {
		b.pool.release(b)
	}
}

// ComplexPool recycles ComplexBuffer instances of a fixed capacity.
type ComplexPool struct {
	id       string
	capacity int
	mu       sync.Mutex
	free     []*ComplexBuffer
}

// NewComplexPool creates a pool producing buffers with room for up to
// capacity samples.
func NewComplexPool(capacity int) *ComplexPool {
	return &ComplexPool{id: uuid.NewString(), capacity: capacity}
}

// ID identifies this pool instance, useful for correlating metrics/log lines
// across multiple channels that each own their own pool.
func (p *ComplexPool) ID() string {
	return p.id
}

// Get returns a buffer holding exactly count samples (count <= capacity),
// reusing a released buffer when one is available.
func (p *ComplexPool) Get(count int) *ComplexBuffer {
	if count > p.capacity {
		panic(fmt.Sprintf("sbuf: requested %d samples exceeds pool capacity %d", count, p.capacity))
	}

	p.mu.Lock()
	var buf *ComplexBuffer
	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if buf == nil {
		buf = &ComplexBuffer{pool: p, samples: make([]complex64, p.capacity)}
	}
	buf.count = count
	buf.users = 1
	return buf
}

func (p *ComplexPool) release(buf *ComplexBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf)
}

// RealBuffer is a pooled, reference-counted buffer of real (mono) float32
// samples, produced by the FM demodulator and consumed by the resampler.
type RealBuffer struct {
	pool    *RealPool
	samples []float32
	count   int
	users   int
	mu      sync.Mutex
}

// Samples returns the live sample slice. Panics if released.
func (b *RealBuffer) Samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users <= 0 {
		panic("sbuf: access to released RealBuffer")
	}
	return b.samples[:b.count]
}

// SampleCount returns the number of valid samples in the buffer.
func (b *RealBuffer) SampleCount() int {
	return b.count
}

// IncrementUserCount must be called before fanning this buffer out to an
// additional consumer.
func (b *RealBuffer) IncrementUserCount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.users <= 0 {
		panic("sbuf: increment of released RealBuffer")
	}
	b.users++
}

// DecrementUserCount releases one reference, returning the buffer to its
// pool at zero.
func (b *RealBuffer) DecrementUserCount() {
	b.mu.Lock()
	if b.users <= 0 {
		b.mu.Unlock()
		panic("sbuf: double release of RealBuffer")
	}
	b.users--
	released := b.users == 0
	b.mu.Unlock()

	if released && b.pool != nil {
		b.pool.release(b)
	}
}

// RealPool recycles RealBuffer instances of a fixed capacity.
type RealPool struct {
	id       string
	capacity int
	mu       sync.Mutex
	free     []*RealBuffer
}

// NewRealPool creates a pool producing buffers with room for up to capacity
// samples.
func NewRealPool(capacity int) *RealPool {
	return &RealPool{id: uuid.NewString(), capacity: capacity}
}

// ID identifies this pool instance.
func (p *RealPool) ID() string {
	return p.id
}

// Get returns a buffer holding exactly count samples.
func (p *RealPool) Get(count int) *RealBuffer {
	if count > p.capacity {
		panic(fmt.Sprintf("sbuf: requested %d samples exceeds pool capacity %d", count, p.capacity))
	}

	p.mu.Lock()
	var buf *RealBuffer
	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if buf == nil {
		buf = &RealBuffer{pool: p, samples: make([]float32, p.capacity)}
	}
	buf.count = count
	buf.users = 1
	return buf
}

func (p *RealPool) release(buf *RealBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf)
}
