// SPDX-License-Identifier: Apache-2.0

package heapbuf

import (
	"errors"
	"fmt"
)

const (
	// PageSize is the wasm linear-memory page size, used as the default
	// region size for a LinearMemory.
	PageSize = 64 * 1024

	sampleAlign = 4 // allocations start on a whole-sample boundary
)

// ErrOutOfMemory is returned by LinearMemory.Allocate when the region cannot
// fit the request. The region is sized once; it never grows.
var ErrOutOfMemory = errors.New("heapbuf: linear memory exhausted")

// LinearMemory is an in-process MemoryOwner backed by a single fixed-size
// byte region. Allocation is a bump pointer with whole-sample alignment;
// releasing the most recent live allocation rewinds the pointer, releasing
// an older one only marks it until the allocations above it are released
// too.
//
// LinearMemory is not safe for concurrent use; wrap it with
// NewConcurrentOwner when multiple goroutines allocate from it.
type LinearMemory struct {
	buf    []byte
	size   int
	offset int
	peak   int
	live   []allocation
}

// allocation records one live reservation. start includes the alignment
// padding in front of base, so rewinding to start reclaims the padding too.
type allocation struct {
	start int
	base  int
	end   int
	freed bool
}

// LinearMemoryOption represents a configuration option for a LinearMemory.
type LinearMemoryOption func(*LinearMemory)

// WithRegionSize sets the total size of the backing region in bytes.
func WithRegionSize(size int) LinearMemoryOption {
	return func(m *LinearMemory) {
		m.size = size
	}
}

// NewLinearMemory creates a LinearMemory. Without options the region spans
// one PageSize. The backing bytes are allocated lazily on first use.
func NewLinearMemory(opts ...LinearMemoryOption) *LinearMemory {
	m := &LinearMemory{size: PageSize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allocate satisfies the MemoryOwner interface. The returned offset is
// aligned to a whole sample and the reserved bytes are zeroed.
func (m *LinearMemory) Allocate(byteSize int) (int, error) {
	if byteSize < 0 {
		return 0, fmt.Errorf("heapbuf: negative allocation size %d", byteSize)
	}
	m.ensureRegion()

	alignOffset := 0
	for p := m.offset; p%sampleAlign != 0; p++ {
		alignOffset++
	}
	allocSize := byteSize + alignOffset

	if m.size-m.offset < allocSize {
		return 0, fmt.Errorf("%w: %d bytes requested, %d free", ErrOutOfMemory, byteSize, m.size-m.offset)
	}

	start := m.offset
	base := start + alignOffset
	m.offset += allocSize

	b := m.buf[base : base+byteSize]
	for i := range b {
		b[i] = 0
	}

	m.live = append(m.live, allocation{start: start, base: base, end: m.offset})
	if m.offset > m.peak {
		m.peak = m.offset
	}
	return base, nil
}

// Release satisfies the MemoryOwner interface. Unknown or already-released
// offsets are ignored.
func (m *LinearMemory) Release(offset int) {
	for i := range m.live {
		if m.live[i].base == offset && !m.live[i].freed {
			m.live[i].freed = true
			break
		}
	}
	// Rewind over the trailing freed allocations.
	for n := len(m.live); n > 0 && m.live[n-1].freed; n = len(m.live) {
		m.offset = m.live[n-1].start
		m.live = m.live[:n-1]
	}
}

// Bytes satisfies the MemoryOwner interface.
func (m *LinearMemory) Bytes() []byte {
	m.ensureRegion()
	return m.buf
}

func (m *LinearMemory) ensureRegion() {
	if m.buf == nil {
		m.buf = make([]byte, m.size)
	}
}

// Reset forgets all allocations without releasing the backing region.
// Every previously returned offset becomes immediately invalid and the
// region can be reused for new allocations.
func (m *LinearMemory) Reset() {
	m.offset = 0
	m.live = nil
}

// Len returns the total number of bytes currently reserved in the region.
func (m *LinearMemory) Len() int {
	return m.offset
}

// Cap returns the total size of the region in bytes.
func (m *LinearMemory) Cap() int {
	return m.size
}

// Peak returns the high-water mark of reserved bytes. It is not reset by
// Reset, allowing tracking of maximum usage across reuses.
func (m *LinearMemory) Peak() int {
	return m.peak
}
