// ABOUTME: Lock-free SPSC ring of decoded PCM frames in shared memory
// ABOUTME: Decoder writes and release-publishes size; UI acquires and reads
package ring

import (
	"sync/atomic"

	"github.com/moonlight-stream/audiojitter-go/internal/shared"
)

// Ring is a fixed-capacity single-producer/single-consumer ring of PCM
// frames backed by a shared.Region. The decoder worker is the sole writer
// of data and tail, and the sole incrementer of size. The UI
// scheduler is the sole reader of data and the sole decrementer of size.
//
// A plain release/acquire protocol on size is sufficient because there is
// exactly one producer and one consumer: the decoder stores PCM then
// fetch-adds size with release ordering; the UI loads size with acquire
// ordering before reading. A transient race where the UI observes a size
// one less than actual delays one frame by one tick; it never corrupts
// memory.
type Ring struct {
	data       []int16 // view into the region, ringCap*frameElems samples
	size       *atomic.Int32
	frameElems int
	cap        int
	tail       int // decoder-private
}

// New creates a Ring of cap frames of frameElems samples each, with its
// PCM payload located at dataOffset and its size field at sizeOffset
// inside region.
func New(region *shared.Region, dataOffset, sizeOffset, cap, frameElems int) *Ring {
	return &Ring{
		data:       region.Int16Slice(dataOffset, cap*frameElems),
		size:       region.AtomicInt32At(sizeOffset),
		frameElems: frameElems,
		cap:        cap,
	}
}

// Cap returns the ring's capacity in frames.
func (r *Ring) Cap() int { return r.cap }

// FrameElems returns the number of samples per frame.
func (r *Ring) FrameElems() int { return r.frameElems }

// Size returns the number of frames currently published to the ring,
// observed with acquire ordering.
func (r *Ring) Size() int32 { return r.size.Load() }

// Full reports whether the ring has no room for another decoded frame.
// Called by the decoder worker before decoding.
func (r *Ring) Full() bool { return r.size.Load() >= int32(r.cap) }

// Write copies one frame's samples into the ring at tail, advances tail,
// and release-publishes size. frame must have exactly FrameElems samples.
// Caller (decoder worker) must have already checked Full().
func (r *Ring) Write(frame []int16) {
	dst := r.data[r.tail*r.frameElems : (r.tail+1)*r.frameElems]
	copy(dst, frame)
	r.tail = (r.tail + 1) % r.cap
	r.size.Add(1)
}

// Reset clears tail and size to zero. Called by the decoder worker as the
// second-to-last step of the flush handshake: intake clear -> tail=0 ->
// size=0 -> flushRequest=0.
func (r *Ring) Reset() {
	r.tail = 0
	r.size.Store(0)
}

// ReadInto copies frameCount frames starting at headLocal (the UI's
// private consumer index, not visible to the decoder) into dst, which
// must have room for frameCount*FrameElems samples. It does not touch
// size or headLocal; the caller (UIScheduler) advances headLocal and
// decrements size itself after a successful read.
func (r *Ring) ReadInto(dst []int16, headLocal, frameCount int) {
	for i := 0; i < frameCount; i++ {
		srcIdx := (headLocal + i) % r.cap
		src := r.data[srcIdx*r.frameElems : (srcIdx+1)*r.frameElems]
		copy(dst[i*r.frameElems:(i+1)*r.frameElems], src)
	}
}

// Consume atomically subtracts frameCount from size. Called only from the
// single UI goroutine, which is the sole decrementer.
func (r *Ring) Consume(frameCount int) {
	r.size.Add(-int32(frameCount))
}
