// ABOUTME: ConfigHandshake struct publishing ring geometry and flush signal
// ABOUTME: Ten contiguous fields, one writer per field, per spec table
package shared

// ConfigHandshake field byte offsets, one 4-byte word per field, matching the source's
// AudioInitConfig layout exactly (field order is load-bearing: it mirrors
// the original WASM struct byte-for-byte so a reader familiar with either
// can map one to the other).
const (
	OffSampleRate       = 0 * 4
	OffChannels         = 1 * 4
	OffRingDataOffset   = 2 * 4
	OffSizeAtomicOffset = 3 * 4
	OffRingCap          = 4 * 4
	OffFrameElems       = 5 * 4
	OffJitterFrames     = 6 * 4
	OffTargetMs         = 7 * 4
	OffJSInitDone       = 8 * 4
	OffFlushRequest     = 9 * 4

	ConfigHandshakeSize = 10 * 4
)

// ConfigHandshake is a thin typed view over a Region holding ten int32
// fields describing ring/intake geometry plus two handshake flags.
// JSInitDone and FlushRequest are the only two fields observed from a
// goroutine other than their writer without an accompanying atomic on a
// payload field, so they alone are atomic.
type ConfigHandshake struct {
	region *Region
	base   int
}

// NewConfigHandshake creates a ConfigHandshake backed by region at the
// given byte offset. The region must have room for ConfigHandshakeSize
// bytes starting at base.
func NewConfigHandshake(region *Region, base int) *ConfigHandshake {
	return &ConfigHandshake{region: region, base: base}
}

// Init populates every field, zeroing flushRequest, and writes jsInitDone
// last so the UI side cannot observe readiness before the geometry fields
// are valid.
func (c *ConfigHandshake) Init(sampleRate, channels, ringDataOffset, sizeAtomicOffset, ringCap, frameElems, jitterFrames, targetMs int32) {
	r, b := c.region, c.base
	r.PutInt32At(b+OffSampleRate, sampleRate)
	r.PutInt32At(b+OffChannels, channels)
	r.PutInt32At(b+OffRingDataOffset, ringDataOffset)
	r.PutInt32At(b+OffSizeAtomicOffset, sizeAtomicOffset)
	r.PutInt32At(b+OffRingCap, ringCap)
	r.PutInt32At(b+OffFrameElems, frameElems)
	r.PutInt32At(b+OffJitterFrames, jitterFrames)
	r.PutInt32At(b+OffTargetMs, targetMs)
	r.AtomicInt32At(b + OffFlushRequest).Store(0)
	r.AtomicInt32At(b + OffJSInitDone).Store(1)
}

// SampleRate, Channels, RingDataOffset, SizeAtomicOffset, RingCap,
// FrameElems, JitterFrames, and TargetMs are read-only after Init; they
// are read without atomics because the UI side only consults them after
// observing JSInitDone()==1, which itself is an acquire-ordered load that
// happens-after the release-ordered store Init performs last.
func (c *ConfigHandshake) SampleRate() int32       { return c.region.Int32At(c.base + OffSampleRate) }
func (c *ConfigHandshake) Channels() int32         { return c.region.Int32At(c.base + OffChannels) }
func (c *ConfigHandshake) RingDataOffset() int32   { return c.region.Int32At(c.base + OffRingDataOffset) }
func (c *ConfigHandshake) SizeAtomicOffset() int32 { return c.region.Int32At(c.base + OffSizeAtomicOffset) }
func (c *ConfigHandshake) RingCap() int32          { return c.region.Int32At(c.base + OffRingCap) }
func (c *ConfigHandshake) FrameElems() int32       { return c.region.Int32At(c.base + OffFrameElems) }
func (c *ConfigHandshake) JitterFrames() int32     { return c.region.Int32At(c.base + OffJitterFrames) }
func (c *ConfigHandshake) TargetMs() int32         { return c.region.Int32At(c.base + OffTargetMs) }

// JSInitDone loads the readiness flag. Acquire ordering: a load of 1
// observed here happens-after every plain store Init performed.
func (c *ConfigHandshake) JSInitDone() bool {
	return c.region.AtomicInt32At(c.base+OffJSInitDone).Load() != 0
}

// SetJSInitDone is called by teardown to store 0 first, before freeing the
// ring. Init stores 1 itself, as its last write.
func (c *ConfigHandshake) SetJSInitDone(v bool) {
	var i int32
	if v {
		i = 1
	}
	c.region.AtomicInt32At(c.base + OffJSInitDone).Store(i)
}

// FlushRequest loads the two-phase flush signal.
func (c *ConfigHandshake) FlushRequest() bool {
	return c.region.AtomicInt32At(c.base+OffFlushRequest).Load() != 0
}

// RequestFlush is called by the UI scheduler on gap detection (writes 1).
func (c *ConfigHandshake) RequestFlush() {
	c.region.AtomicInt32At(c.base + OffFlushRequest).Store(1)
}

// ClearFlush is called by the decoder worker once intake and ring are
// reset (writes 0), the last step of the flush handshake ordering.
func (c *ConfigHandshake) ClearFlush() {
	c.region.AtomicInt32At(c.base + OffFlushRequest).Store(0)
}
