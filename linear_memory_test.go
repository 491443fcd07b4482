// SPDX-License-Identifier: Apache-2.0

package heapbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearMemoryAllocate(t *testing.T) {
	m := NewLinearMemory()
	require.Equal(t, 0, m.Len())
	require.Equal(t, PageSize, m.Cap())

	off1, err := m.Allocate(100)
	require.NoError(t, err)
	require.Equal(t, 0, off1)
	require.Equal(t, 100, m.Len())

	off2, err := m.Allocate(200)
	require.NoError(t, err)
	require.Equal(t, 0, off2%sampleAlign)
	require.True(t, off2 >= 100)
	require.True(t, m.Len() >= 300)
}

func TestLinearMemoryAlignment(t *testing.T) {
	m := NewLinearMemory()

	_, err := m.Allocate(3)
	require.NoError(t, err)

	off, err := m.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, 4, off) // padded past the odd-sized allocation
}

func TestLinearMemoryZeroesAllocations(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(64))

	off, err := m.Allocate(32)
	require.NoError(t, err)

	// Dirty the region, release, allocate again: fresh bytes are zero.
	region := m.Bytes()
	for i := off; i < off+32; i++ {
		region[i] = 0xff
	}
	m.Release(off)

	off2, err := m.Allocate(32)
	require.NoError(t, err)
	for i := off2; i < off2+32; i++ {
		require.Equal(t, byte(0), region[i])
	}
}

func TestLinearMemoryExhaustion(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(128))

	_, err := m.Allocate(100)
	require.NoError(t, err)

	_, err = m.Allocate(100)
	require.ErrorIs(t, err, ErrOutOfMemory)

	_, err = m.Allocate(-1)
	require.Error(t, err)
}

func TestLinearMemoryReleaseRewind(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(256))

	off1, err := m.Allocate(16)
	require.NoError(t, err)
	off2, err := m.Allocate(16)
	require.NoError(t, err)
	require.Equal(t, 32, m.Len())

	// Topmost release rewinds immediately.
	m.Release(off2)
	require.Equal(t, 16, m.Len())

	m.Release(off1)
	require.Equal(t, 0, m.Len())
}

func TestLinearMemoryReleaseOutOfOrder(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(256))

	off1, err := m.Allocate(16)
	require.NoError(t, err)
	off2, err := m.Allocate(16)
	require.NoError(t, err)

	// Releasing a buried allocation keeps the bump pointer in place until
	// everything above it is released too.
	m.Release(off1)
	require.Equal(t, 32, m.Len())

	m.Release(off2)
	require.Equal(t, 0, m.Len())
}

func TestLinearMemoryReleaseUnknownOffset(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(256))

	off, err := m.Allocate(16)
	require.NoError(t, err)

	m.Release(12345)
	require.Equal(t, 16, m.Len())

	// Double release is ignored.
	m.Release(off)
	m.Release(off)
	require.Equal(t, 0, m.Len())
}

func TestLinearMemoryResetAndPeak(t *testing.T) {
	m := NewLinearMemory(WithRegionSize(1024))

	_, err := m.Allocate(300)
	require.NoError(t, err)
	require.Equal(t, 300, m.Peak())

	m.Reset()
	require.Equal(t, 0, m.Len())
	require.Equal(t, 1024, m.Cap())
	require.Equal(t, 300, m.Peak()) // survives Reset

	off, err := m.Allocate(50)
	require.NoError(t, err)
	require.Equal(t, 0, off)
	require.Equal(t, 300, m.Peak())
}

func TestLinearMemoryBacksBuffer(t *testing.T) {
	m := NewLinearMemory()

	b, err := NewBuffer(m, RenderQuantumFrames, 2)
	require.NoError(t, err)
	require.Equal(t, RenderQuantumFrames*2*4, m.Len())

	ch0, ok := b.Channel(0)
	require.True(t, ok)
	ch1, ok := b.Channel(1)
	require.True(t, ok)
	for i := range ch0 {
		ch0[i] = 1
		ch1[i] = -1
	}
	require.Equal(t, float32(1), ch0[RenderQuantumFrames-1])
	require.Equal(t, float32(-1), ch1[0])

	b.Release()
	require.Equal(t, 0, m.Len())
}
