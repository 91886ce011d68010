// ABOUTME: Tests for the UI scheduler's per-tick algorithm
// ABOUTME: Covers cold start, jitter gate, gap recovery, suspension, and teardown
package uischeduler

import (
	"testing"

	"github.com/moonlight-stream/audiojitter-go/internal/audiosink"
	"github.com/moonlight-stream/audiojitter-go/internal/ring"
	"github.com/moonlight-stream/audiojitter-go/internal/shared"
)

const (
	testSampleRate      = 48000
	testChannels        = 2
	testSamplesPerFrame = 240 // frameDurationMs = 5ms
	testJitterFrames    = 20
	testRingCap         = 80
	testTargetMs        = 100
)

type harness struct {
	region *shared.Region
	config *shared.ConfigHandshake
	ring   *ring.Ring
	clock  *audiosink.FakeClock
	sink   *audiosink.FakeSink
	sched  *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	frameElems := testSamplesPerFrame * testChannels
	dataBytes := testRingCap * frameElems * 2
	sizeOffset := (dataBytes + 3) &^ 3
	configBase := sizeOffset + 4

	region := shared.NewRegion(configBase + shared.ConfigHandshakeSize)
	r := ring.New(region, 0, sizeOffset, testRingCap, frameElems)
	cfg := shared.NewConfigHandshake(region, configBase)

	clock := &audiosink.FakeClock{}
	sink := &audiosink.FakeSink{}
	sched := New(cfg, r, clock, sink)

	return &harness{region: region, config: cfg, ring: r, clock: clock, sink: sink, sched: sched}
}

func (h *harness) initConfig() {
	frameElems := testSamplesPerFrame * testChannels
	h.config.Init(testSampleRate, testChannels, 0, 0, testRingCap, int32(frameElems), testJitterFrames, testTargetMs)
}

func (h *harness) pushFrames(n int) {
	frame := make([]int16, testSamplesPerFrame*testChannels)
	for i := 0; i < n; i++ {
		h.ring.Write(frame)
	}
}

func TestColdStartFillsThenPlaysOneBatch(t *testing.T) {
	h := newHarness(t)
	h.initConfig()

	h.pushFrames(19)
	for i := 0; i < 10; i++ {
		h.sched.Tick()
	}
	if h.sched.State() != "Filling" {
		t.Fatalf("expected Filling after 19 frames, got %s", h.sched.State())
	}
	if len(h.sink.Submissions) != 0 {
		t.Fatalf("expected no submissions while filling, got %d", len(h.sink.Submissions))
	}

	h.pushFrames(1) // 20th frame reaches jitterFrames
	h.sched.Tick()

	if h.sched.State() != "Playing" {
		t.Fatalf("expected Playing after jitter fills, got %s", h.sched.State())
	}
	if len(h.sink.Submissions) != 1 {
		t.Fatalf("expected exactly one batched submission, got %d", len(h.sink.Submissions))
	}
	sub := h.sink.Submissions[0]
	gotFrames := len(sub.Samples) / testChannels / testSamplesPerFrame
	if gotFrames != 20 {
		t.Errorf("expected batch of 20 frames (100ms), got %d", gotFrames)
	}
}

func TestJitterGateBlocksBelowThreshold(t *testing.T) {
	h := newHarness(t)
	h.initConfig()
	h.pushFrames(5)

	h.sched.Tick()

	if h.sched.State() != "Filling" {
		t.Fatalf("expected Filling, got %s", h.sched.State())
	}
	if len(h.sink.Submissions) != 0 {
		t.Fatalf("expected no submissions below jitter threshold, got %d", len(h.sink.Submissions))
	}
}

func TestGapRecoveryTriggersFlushHandshake(t *testing.T) {
	h := newHarness(t)
	h.initConfig()
	h.pushFrames(20)

	wallMs := int64(1000)
	h.sched.nowMillis = func() int64 { return wallMs }

	h.sched.Tick() // first tick: acquires config (which zeroes lastWallMs), fills jitter and plays

	if h.sched.State() != "Playing" {
		t.Fatalf("expected Playing before gap, got %s", h.sched.State())
	}

	wallMs += 5
	h.sched.Tick() // second tick: measures no gap yet, records lastWallMs for the next one
	submissionsBeforeGap := len(h.sink.Submissions)

	wallMs += 500 // simulate a 500ms UI-thread stall, well beyond targetMs=100
	h.sched.Tick()

	if h.sched.State() != "FlushRequested" {
		t.Fatalf("expected FlushRequested after 500ms gap, got %s", h.sched.State())
	}
	if !h.config.FlushRequest() {
		t.Fatal("expected flushRequest set on gap detection")
	}
	if len(h.sink.Submissions) != submissionsBeforeGap {
		t.Error("expected no new submissions while flush is pending")
	}

	// Decoder worker's side of the handshake: reset the ring, then clear
	// flushRequest last.
	h.ring.Reset()
	h.config.ClearFlush()
	wallMs += 5
	h.pushFrames(20)
	h.sched.Tick()

	// The jitter buffer was refilled before this tick, so the scheduler
	// advances straight through Filling to Playing within the same tick.
	if h.sched.State() != "Playing" {
		t.Fatalf("expected Playing after flush ack with a full jitter buffer, got %s", h.sched.State())
	}
}

func TestUnconfiguredUntilJSInitDone(t *testing.T) {
	h := newHarness(t)
	// config left un-Init'd: JSInitDone defaults to false.
	h.sched.Tick()

	if h.sched.State() != "Unconfigured" {
		t.Fatalf("expected Unconfigured before init, got %s", h.sched.State())
	}
}

func TestLostReadinessCancelsPendingAndReturnsToUnconfigured(t *testing.T) {
	h := newHarness(t)
	h.initConfig()
	h.pushFrames(20)
	h.sched.Tick()

	if h.sched.State() != "Playing" {
		t.Fatalf("expected Playing, got %s", h.sched.State())
	}

	h.config.SetJSInitDone(false)
	h.sched.Tick()

	if h.sched.State() != "Unconfigured" {
		t.Fatalf("expected Unconfigured after jsInitDone cleared, got %s", h.sched.State())
	}
}

func TestSuspendedClockSkipsTickWithoutTouchingWallClock(t *testing.T) {
	h := newHarness(t)
	h.initConfig()
	h.clock.IsSuspend = true

	h.sched.Tick()

	if h.sched.State() != "Unconfigured" {
		t.Fatalf("expected scheduler to remain Unconfigured while suspended, got %s", h.sched.State())
	}
	if h.clock.IsSuspend {
		t.Error("expected Tick to attempt resume on a suspended clock")
	}
}
