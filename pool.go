// SPDX-License-Identifier: Apache-2.0

package heapbuf

import (
	"sync"
	"weak"
)

// OwnerPool provides a thread-safe pool of LinearMemory regions for
// pipelines that set up and tear down sample buffers per stream. It uses
// weak pointers to allow garbage collection of idle regions while keeping a
// pool of reusable ones for high-frequency setup patterns.
//
// by storing PoolItem as weak pointers, the GC can collect them at any time
// before using an PoolItem, we try to get a strong pointer while removing it from the pool
// once we call Release, we turn the item back to the pool and make it a weak pointer again
// this means that at any time, GC can claim back the memory if required,
// allowing GC to automatically manage an appropriate pool size depending on available memory and GC pressure
type OwnerPool struct {
	// pool is a slice of weak pointers to the struct holding the LinearMemory
	pool  []weak.Pointer[PoolItem]
	sizes map[uint64]*ownerPoolItemSize
	mu    sync.Mutex
}

// ownerPoolItemSize is used to track the required memory across the last 50 regions in the pool
type ownerPoolItemSize struct {
	count      int
	totalBytes int
}

// PoolItem wraps a LinearMemory for use in the pool
type PoolItem struct {
	Owner *LinearMemory
	Key   uint64
}

// NewOwnerPool creates a new OwnerPool instance
func NewOwnerPool() *OwnerPool {
	return &OwnerPool{
		sizes: make(map[uint64]*ownerPoolItemSize),
	}
}

// Acquire gets a region from the pool or creates a new one if none are
// available. The key parameter is used to track region sizes per use case
// for optimization.
func (p *OwnerPool) Acquire(key uint64) *PoolItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Try to find an available region in the pool
	for len(p.pool) > 0 {
		// Pop the last item
		lastIdx := len(p.pool) - 1
		wp := p.pool[lastIdx]
		p.pool = p.pool[:lastIdx]

		v := wp.Value()
		if v != nil {
			v.Key = key
			return v
		}
		// If weak pointer was nil (GC collected), continue to next item
	}

	// No region available, create a new one
	size := WithRegionSize(p.getRegionSize(key))
	return &PoolItem{
		Owner: NewLinearMemory(size),
		Key:   key,
	}
}

// Release returns a region to the pool for reuse. The peak usage is
// recorded to optimize future region sizes for this use case.
func (p *OwnerPool) Release(item *PoolItem) {
	peak := item.Owner.Peak()
	item.Owner.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.recordPeak(item.Key, peak)
	item.Key = 0

	// Add the region back to the pool using a weak pointer
	w := weak.Make(item)
	p.pool = append(p.pool, w)
}

// ReleaseMany returns multiple regions to the pool in one lock acquisition.
func (p *OwnerPool) ReleaseMany(items []*PoolItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, item := range items {
		peak := item.Owner.Peak()
		item.Owner.Reset()

		p.recordPeak(item.Key, peak)
		item.Key = 0

		w := weak.Make(item)
		p.pool = append(p.pool, w)
	}
}

// recordPeak folds one observed peak into the rolling size estimate for key.
// Callers must hold p.mu.
func (p *OwnerPool) recordPeak(key uint64, peak int) {
	if size, ok := p.sizes[key]; ok {
		if size.count == 50 {
			size.count = 1
			size.totalBytes = size.totalBytes / 50
		}
		size.count++
		size.totalBytes += peak
	} else {
		p.sizes[key] = &ownerPoolItemSize{
			count:      1,
			totalBytes: peak,
		}
	}
}

// getRegionSize returns the optimal region size for a given use case key.
// If no size is recorded, it defaults to one PageSize.
func (p *OwnerPool) getRegionSize(key uint64) int {
	if size, ok := p.sizes[key]; ok {
		if avg := size.totalBytes / size.count; avg > 0 {
			return avg
		}
	}
	return PageSize
}
