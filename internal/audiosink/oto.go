// ABOUTME: oto-backed audio sink and wall-clock-based audio clock
package audiosink

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoClock is a Clock backed by wall-clock time, with a coarse suspend
// flag standing in for a host-level UI-thread freeze (e.g. a TV overlay).
// It carries no drift compensation; this clock's only job is to expose a
// position and a suspend/resume boundary.
type OtoClock struct {
	mu        sync.Mutex
	start     time.Time
	suspended bool
	suspendAt time.Time
	pausedFor time.Duration
}

// NewOtoClock creates a running clock starting at position 0.
func NewOtoClock() *OtoClock {
	return &OtoClock{start: time.Now()}
}

func (c *OtoClock) NowSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspended {
		return c.suspendAt.Sub(c.start).Seconds() - c.pausedFor.Seconds()
	}
	return time.Since(c.start).Seconds() - c.pausedFor.Seconds()
}

func (c *OtoClock) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Suspend freezes the clock's reported position, modeling a host-level
// audio-thread stall. Exposed for tests that simulate suspension.
func (c *OtoClock) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.suspended {
		c.suspended = true
		c.suspendAt = time.Now()
	}
}

func (c *OtoClock) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suspended {
		c.pausedFor += time.Since(c.suspendAt)
		c.suspended = false
	}
	return nil
}

// OtoSink plays batched PCM buffers through an oto.Context, each Submit
// call spawning one one-shot oto.Player.
type OtoSink struct {
	ctx        *oto.Context
	channels   int
	sampleRate int
}

// NewOtoSink initializes an oto context for the given format.
func NewOtoSink(sampleRate, channels int) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audiosink: failed to create oto context: %w", err)
	}
	<-readyChan

	return &OtoSink{ctx: ctx, channels: channels, sampleRate: sampleRate}, nil
}

// Submit converts float32 interleaved samples back to signed 16-bit PCM
// and plays them immediately; atSeconds is advisory here since oto has no
// native scheduled-start primitive.
func (s *OtoSink) Submit(samples []float32, channels int, atSeconds float64) (NodeHandle, error) {
	pcm := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := int16(f * 32767)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}

	player := s.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	durationSeconds := float64(len(samples)/channels) / float64(s.sampleRate)
	return NodeHandle{EndTime: atSeconds + durationSeconds}, nil
}

// Cancel is a no-op for OtoSink: once handed to oto, a buffer plays to
// completion. Gap-recovery cancellation only discards pendingNodes
// bookkeeping, which is safe since flush mutes subsequent playback anyway.
func (s *OtoSink) Cancel(NodeHandle) {}
