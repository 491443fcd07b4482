// SPDX-License-Identifier: Apache-2.0

package heapbuf

import (
	"errors"
	"sync"
)

type concurrentOwner struct {
	mtx sync.Mutex
	o   MemoryOwner
}

// NewConcurrentOwner returns a MemoryOwner whose Allocate, Release and Bytes
// are safe to call concurrently from multiple goroutines. Only the control
// surface is serialized; access to the sample data behind the returned
// region remains the caller's responsibility.
func NewConcurrentOwner(o MemoryOwner) MemoryOwner {
	return &concurrentOwner{o: o}
}

// Allocate satisfies the MemoryOwner interface.
func (c *concurrentOwner) Allocate(byteSize int) (int, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.o == nil {
		return 0, errors.New("heapbuf: no underlying memory owner")
	}
	return c.o.Allocate(byteSize)
}

// Release satisfies the MemoryOwner interface.
func (c *concurrentOwner) Release(offset int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.o == nil {
		return
	}
	c.o.Release(offset)
}

// Bytes satisfies the MemoryOwner interface.
func (c *concurrentOwner) Bytes() []byte {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.o == nil {
		return nil
	}
	return c.o.Bytes()
}
