// ABOUTME: Cooperative UI-context timer scheduling PCM into the audio sink
// ABOUTME: Maintains lookahead, detects gaps, drives the flush handshake
package uischeduler

import (
	"log"
	"math"
	"time"

	"github.com/moonlight-stream/audiojitter-go/internal/audiosink"
	"github.com/moonlight-stream/audiojitter-go/internal/ring"
	"github.com/moonlight-stream/audiojitter-go/internal/shared"
)

// TickPeriod is the scheduler's nominal cooperative timer period.
const TickPeriod = 5 * time.Millisecond

// state is the UIScheduler's position in its state machine.
type state int

const (
	stateUnconfigured state = iota
	stateFilling
	statePlaying
	stateFlushRequested
)

// pendingNode is one entry of SchedulerState.pendingNodes.
type pendingNode struct {
	handle  audiosink.NodeHandle
	endTime float64
}

// Scheduler is a cooperative UI-context timer: it reads ConfigHandshake
// and the PCM ring from shared memory, maintains a target lookahead into
// sink.Submit calls, and runs the two-phase flush handshake on gap
// recovery. It owns ringHeadLocal and pendingNodes exclusively; it never
// blocks.
type Scheduler struct {
	clock audiosink.Clock
	sink  audiosink.Sink

	config *shared.ConfigHandshake
	ring   *ring.Ring

	state state

	nextTime      float64
	ringHeadLocal int
	jitReady      bool
	pendingFlush  bool
	lastWallMs    int64
	pendingNodes  []pendingNode

	sampleRate      int
	channels        int
	frameElems      int
	jitterFrames    int
	targetMs        int
	frameDurationMs float64

	// nowMillis is the wall-clock source for gap measurement, separate
	// from the audio clock. Overridable in tests.
	nowMillis func() int64
}

// New creates a UIScheduler against the given ConfigHandshake/ring, which
// may not yet be ready (JSInitDone()==false); New never blocks waiting for
// readiness.
func New(config *shared.ConfigHandshake, pcmRing *ring.Ring, clock audiosink.Clock, sink audiosink.Sink) *Scheduler {
	return &Scheduler{
		config:    config,
		ring:      pcmRing,
		clock:     clock,
		sink:      sink,
		state:     stateUnconfigured,
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// State reports the current state-machine state, exported for tests.
func (s *Scheduler) State() string {
	switch s.state {
	case stateUnconfigured:
		return "Unconfigured"
	case stateFilling:
		return "Filling"
	case statePlaying:
		return "Playing"
	case stateFlushRequested:
		return "FlushRequested"
	default:
		return "Unknown"
	}
}

// Run ticks the scheduler every TickPeriod until stop is closed.
func (s *Scheduler) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one pass of the scheduler's per-tick algorithm. Exported
// standalone so tests can drive individual ticks deterministically.
func (s *Scheduler) Tick() {
	// Step 1: suspended clock — attempt resume, do not touch lastWallMs,
	// so the gap measured on the next running tick spans the suspension.
	if s.clock.Suspended() {
		_ = s.clock.Resume()
		return
	}

	// Step 2: wall-clock gap measurement.
	nowMs := s.nowMillis()
	var wallGapMs int64
	if s.lastWallMs > 0 {
		wallGapMs = nowMs - s.lastWallMs
	}
	s.lastWallMs = nowMs

	// Step 3: acquire config if not cached.
	if s.state == stateUnconfigured {
		if !s.config.JSInitDone() {
			return
		}
		if s.config.SampleRate() == 0 || s.config.Channels() == 0 || s.config.RingCap() == 0 ||
			s.config.FrameElems() == 0 || s.config.JitterFrames() == 0 || s.config.TargetMs() == 0 {
			return
		}
		s.acquireConfig()
		s.state = stateFilling
	}

	// Step 4: lost readiness.
	if !s.config.JSInitDone() {
		s.cancelAllPending()
		s.state = stateUnconfigured
		return
	}

	// Step 5: trim finished nodes.
	now := s.clock.NowSeconds()
	s.trimFinishedNodes(now)

	// Step 6: gap recovery.
	if wallGapMs > int64(s.targetMs) {
		s.cancelAllPending()
		s.nextTime = 0
		s.config.RequestFlush()
		s.pendingFlush = true
		s.jitReady = false
		s.state = stateFlushRequested
		log.Printf("uischeduler: gap of %dms > targetMs=%d, requesting flush", wallGapMs, s.targetMs)
	}

	// Step 7: awaiting flush ack.
	if s.pendingFlush {
		if s.config.FlushRequest() {
			return
		}
		s.pendingFlush = false
		s.ringHeadLocal = 0
		s.state = stateFilling
	}

	// Step 8: jitter gate.
	if !s.jitReady {
		if s.ring.Size() < int32(s.jitterFrames) {
			return
		}
		s.jitReady = true
		s.state = statePlaying
	}

	// Step 9: snap nextTime forward if it fell behind the clock.
	if s.nextTime < now {
		s.nextTime = now
	}

	// Step 10: batched fill.
	s.batchedFill(now)
}

// acquireConfig caches ConfigHandshake's geometry fields and resets local
// scheduling state.
func (s *Scheduler) acquireConfig() {
	s.sampleRate = int(s.config.SampleRate())
	s.channels = int(s.config.Channels())
	s.frameElems = int(s.config.FrameElems())
	s.jitterFrames = int(s.config.JitterFrames())
	s.targetMs = int(s.config.TargetMs())
	samplesPerFrame := s.frameElems / s.channels
	s.frameDurationMs = float64(samplesPerFrame) * 1000.0 / float64(s.sampleRate)

	s.nextTime = 0
	s.ringHeadLocal = 0
	s.jitReady = false
	s.pendingFlush = false
	s.lastWallMs = 0
	s.pendingNodes = nil
}

func (s *Scheduler) trimFinishedNodes(now float64) {
	kept := s.pendingNodes[:0]
	for _, n := range s.pendingNodes {
		if n.endTime > now {
			kept = append(kept, n)
		}
	}
	s.pendingNodes = kept
}

func (s *Scheduler) cancelAllPending() {
	for _, n := range s.pendingNodes {
		s.sink.Cancel(n.handle)
	}
	s.pendingNodes = nil
	s.nextTime = 0
}

// batchedFill submits one sink node per tick, sized to close the
// lookahead gap, keeping per-tick API crossings bounded.
func (s *Scheduler) batchedFill(now float64) {
	lookaheadMs := (s.nextTime - now) * 1000
	if lookaheadMs >= float64(s.targetMs) {
		return
	}

	wantFrames := int(math.Ceil((float64(s.targetMs) - lookaheadMs) / s.frameDurationMs))
	frameCount := wantFrames
	if size := int(s.ring.Size()); frameCount > size {
		frameCount = size
	}

	if frameCount <= 0 {
		if len(s.pendingNodes) == 0 {
			s.nextTime = 0
		}
		return
	}

	samplesPerFrame := s.frameElems / s.channels
	pcm := make([]int16, frameCount*s.frameElems)
	s.ring.ReadInto(pcm, s.ringHeadLocal, frameCount)

	floatSamples := deinterleaveToFloat(pcm, frameCount*samplesPerFrame*s.channels)

	handle, err := s.sink.Submit(floatSamples, s.channels, s.nextTime)
	if err != nil {
		log.Printf("uischeduler: sink submit failed: %v", err)
		return
	}

	durationMs := float64(frameCount) * s.frameDurationMs
	s.nextTime += durationMs / 1000.0
	s.pendingNodes = append(s.pendingNodes, pendingNode{handle: handle, endTime: s.nextTime})

	s.ringHeadLocal = (s.ringHeadLocal + frameCount) % s.ring.Cap()
	s.ring.Consume(frameCount)
}

// deinterleaveToFloat converts interleaved int16 PCM to float32 in
// [-1, 1] by multiplying by 1/32768. The result stays interleaved by
// channel; no channel remix is performed.
func deinterleaveToFloat(pcm []int16, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(pcm[i]) / 32768.0
	}
	return out
}
