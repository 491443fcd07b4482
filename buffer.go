// SPDX-License-Identifier: Apache-2.0

package heapbuf

import (
	"errors"
	"fmt"
	"unsafe"
)

const (
	// MaxChannels is the hard ceiling on the channel capacity of a Buffer.
	MaxChannels = 32

	// RenderQuantumFrames is the fixed block size at which real-time audio
	// pipelines typically process audio. Exposed as a sizing constant only.
	RenderQuantumFrames = 128

	sampleSize = 4 // bytes per 32-bit float sample
)

// ErrChannelConfig is returned by NewBuffer when the requested channel count
// cannot fit the configured channel capacity.
var ErrChannelConfig = errors.New("heapbuf: channel count exceeds channel capacity")

type bufferState uint8

const (
	stateConstructed bufferState = iota
	stateReleased
)

// Buffer presents one []float32 view per audio channel over a single
// contiguous allocation in a MemoryOwner's region. The allocation is sized
// once, at construction, for the full channel capacity; adapting the active
// channel count afterwards is a logical restriction and never reallocates.
//
// Buffer performs no locking. The views alias memory the external engine may
// also read and write; the surrounding pipeline is responsible for keeping
// host and engine access turn-based.
type Buffer struct {
	owner    MemoryOwner
	frames   int
	capacity int
	active   int
	base     int
	channels [][]float32
	state    bufferState
}

// BufferOption represents a configuration option for a Buffer.
type BufferOption func(*bufferConfig)

type bufferConfig struct {
	maxChannels int // 0 means unset
}

// WithMaxChannels sets the channel capacity independently of the initially
// active channel count. Capacity is clamped to MaxChannels.
func WithMaxChannels(n int) BufferOption {
	return func(c *bufferConfig) {
		c.maxChannels = n
	}
}

// NewBuffer allocates capacity*frameLength*4 bytes from owner and slices the
// allocation into per-channel views. The capacity is the WithMaxChannels
// value when given (clamped to MaxChannels), otherwise the channels argument.
// All capacity slots get a view up front; channels chooses how many of them
// start out active.
//
// Construction issues exactly one allocation. On any error no allocation is
// retained.
func NewBuffer(owner MemoryOwner, frameLength, channels int, opts ...BufferOption) (*Buffer, error) {
	if owner == nil {
		return nil, errors.New("heapbuf: nil memory owner")
	}
	if frameLength < 0 {
		return nil, fmt.Errorf("heapbuf: negative frame length %d", frameLength)
	}
	if channels < 1 {
		return nil, fmt.Errorf("heapbuf: channel count %d, need at least 1", channels)
	}
	if channels > MaxChannels {
		return nil, fmt.Errorf("%w: %d channels, capacity ceiling is %d", ErrChannelConfig, channels, MaxChannels)
	}

	var cfg bufferConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	capacity := channels
	if cfg.maxChannels > 0 {
		if cfg.maxChannels < channels {
			return nil, fmt.Errorf("%w: %d channels, capacity %d", ErrChannelConfig, channels, cfg.maxChannels)
		}
		capacity = cfg.maxChannels
		if capacity > MaxChannels {
			capacity = MaxChannels
		}
	}

	byteSize := capacity * frameLength * sampleSize
	base, err := owner.Allocate(byteSize)
	if err != nil {
		return nil, fmt.Errorf("heapbuf: allocating %d bytes: %w", byteSize, err)
	}

	b := &Buffer{
		owner:    owner,
		frames:   frameLength,
		capacity: capacity,
		active:   channels,
		base:     base,
		channels: make([][]float32, capacity),
		state:    stateConstructed,
	}

	region := owner.Bytes()
	channelBytes := frameLength * sampleSize
	for i := range b.channels {
		start := base + i*channelBytes
		b.channels[i] = float32View(region[start:start+channelBytes:start+channelBytes], frameLength)
	}
	return b, nil
}

// float32View reinterprets b as a slice of n 32-bit floats.
func float32View(b []byte, n int) []float32 {
	if n == 0 {
		return []float32{}
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// FrameLength returns the number of samples per channel.
// The second return value is false once the buffer has been released.
func (b *Buffer) FrameLength() (int, bool) {
	if b.state == stateReleased {
		return 0, false
	}
	return b.frames, true
}

// ActiveChannels returns the current active channel count.
// The second return value is false once the buffer has been released.
func (b *Buffer) ActiveChannels() (int, bool) {
	if b.state == stateReleased {
		return 0, false
	}
	return b.active, true
}

// ChannelCapacity returns the fixed channel capacity the allocation was
// sized for. The second return value is false once the buffer has been
// released.
func (b *Buffer) ChannelCapacity() (int, bool) {
	if b.state == stateReleased {
		return 0, false
	}
	return b.capacity, true
}

// BaseOffset returns the byte offset of the allocation within the owner's
// region. The second return value is false once the buffer has been released.
func (b *Buffer) BaseOffset() (int, bool) {
	if b.state == stateReleased {
		return 0, false
	}
	return b.base, true
}

// Address is equivalent to BaseOffset.
func (b *Buffer) Address() (int, bool) {
	return b.BaseOffset()
}

// AdaptChannels sets the active channel count to n when n is below the
// channel capacity. Requests at or above capacity are silently ignored: the
// allocation never grows, so there is nothing to widen into. Requests below
// 1 are ignored as well, keeping at least one channel active.
//
// Adaptation never touches the owner's memory.
func (b *Buffer) AdaptChannels(n int) {
	if b.state == stateReleased {
		return
	}
	if n < 1 || n >= b.capacity {
		return
	}
	b.active = n
}

// Channel returns the sample view for channel i. The bound is the active
// channel count, not the capacity: indexes of inactive capacity slots return
// false. The view aliases the owner's memory, it is not a copy.
func (b *Buffer) Channel(i int) ([]float32, bool) {
	if b.state == stateReleased || i < 0 || i >= b.active {
		return nil, false
	}
	return b.channels[i], true
}

// Channels returns the full capacity-length sequence of channel views,
// including inactive slots. Callers are responsible for only touching the
// first ActiveChannels entries. Returns nil once the buffer has been
// released.
func (b *Buffer) Channels() [][]float32 {
	if b.state == stateReleased {
		return nil
	}
	return b.channels
}

// Release returns the allocation to the owner and permanently invalidates
// the buffer. The owner is called exactly once; further Release calls are
// no-ops. Views handed out earlier alias freed memory afterwards and must
// not be used.
func (b *Buffer) Release() {
	if b.state == stateReleased {
		return
	}
	b.state = stateReleased
	b.channels = nil
	b.owner.Release(b.base)
}
