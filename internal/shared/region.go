// ABOUTME: Owned linear-memory analogue for cross-context shared state
// ABOUTME: Byte-addressable region with typed, offset-based accessors
package shared

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Region is an explicit owned buffer with a stable base and typed
// offsets: a byte-addressable slab of shared state instead of file-scope
// global statics. The PCM ring payload and ConfigHandshake both live
// inside one Region so the decoder worker and UI scheduler address the
// same memory directly, without copying through channels.
type Region struct {
	mem []byte
}

// NewRegion allocates a zeroed region of size bytes.
func NewRegion(size int) *Region {
	return &Region{mem: make([]byte, size)}
}

// Len returns the region's size in bytes.
func (r *Region) Len() int { return len(r.mem) }

// Int16Slice returns a []int16 view over count samples starting at the
// given byte offset. Used for the PCM ring's interleaved sample data.
func (r *Region) Int16Slice(offset, count int) []int16 {
	end := offset + count*2
	if offset < 0 || end > len(r.mem) {
		panic("shared: Int16Slice out of bounds")
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&r.mem[offset])), count)
}

// AtomicInt32At returns an *atomic.Int32 aligned at the given byte offset,
// suitable for the release/acquire protocol on the ring's size field or on
// ConfigHandshake's jsInitDone/flushRequest fields.
func (r *Region) AtomicInt32At(offset int) *atomic.Int32 {
	if offset < 0 || offset+4 > len(r.mem) || offset%4 != 0 {
		panic("shared: AtomicInt32At out of bounds or misaligned")
	}
	return (*atomic.Int32)(unsafe.Pointer(&r.mem[offset]))
}

// PutInt32At writes a plain (non-atomic) int32 at the given offset. Used
// for ConfigHandshake fields that have exactly one writer and are read by
// a different goroutine only after a synchronizing atomic store (jsInitDone).
func (r *Region) PutInt32At(offset int, v int32) {
	binary.LittleEndian.PutUint32(r.mem[offset:offset+4], uint32(v))
}

// Int32At reads a plain int32 at the given offset.
func (r *Region) Int32At(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(r.mem[offset : offset+4]))
}
