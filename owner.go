// SPDX-License-Identifier: Apache-2.0

// Package heapbuf provides zero-copy multi-channel audio sample views over a
// linear memory region shared with an external computation engine.
package heapbuf

// MemoryOwner is an interface that describes the owner of a linear,
// byte-addressable memory region shared between the host and an external
// computation engine. The region itself is never copied; callers derive
// typed views into it by byte offset.
type MemoryOwner interface {
	// Allocate reserves byteSize contiguous bytes and returns the byte
	// offset of the allocation within the region. The offset stays valid
	// until Release is called with it.
	Allocate(byteSize int) (int, error)

	// Release invalidates the allocation that starts at offset.
	// Offsets that were never returned by Allocate, or that have already
	// been released, are ignored.
	Release(offset int)

	// Bytes returns the raw backing region. The returned slice aliases the
	// shared memory; writes through it are visible to the engine and to any
	// view derived from the region.
	Bytes() []byte
}
