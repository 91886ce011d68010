// ABOUTME: Lifecycle controller wiring intake, decoder worker, ring, and scheduler
// ABOUTME: Owns init/teardown ordering and the session-level config override
package pipeline

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moonlight-stream/audiojitter-go/internal/audiosink"
	"github.com/moonlight-stream/audiojitter-go/internal/codec"
	"github.com/moonlight-stream/audiojitter-go/internal/decodeworker"
	"github.com/moonlight-stream/audiojitter-go/internal/intake"
	"github.com/moonlight-stream/audiojitter-go/internal/ring"
	"github.com/moonlight-stream/audiojitter-go/internal/shared"
	"github.com/moonlight-stream/audiojitter-go/internal/uischeduler"
)

// defaultTargetMs is used when the session override is zero.
const defaultTargetMs = 100

// minRingCap and minPktCap are the floors applied to derived sizing.
const (
	minRingCap = 32
	minPktCap  = 64
)

// Config holds the session-level parameters the lifecycle controller needs
// to derive ring/intake geometry and construct the Opus decoder.
type Config struct {
	SampleRate      int
	Channels        int
	SamplesPerFrame int

	// JitterMsOverride is the session's jitter buffer target in
	// milliseconds; 0 selects defaultTargetMs, any positive value
	// overrides it.
	JitterMsOverride int
}

// geometry is the derived sizing of ring/intake capacity from session parameters.
type geometry struct {
	frameElems      int
	frameDurationMs float64
	jitterFrames    int
	ringCap         int
	pktCap          int
	targetMs        int
}

func deriveGeometry(cfg Config) geometry {
	targetMs := cfg.JitterMsOverride
	if targetMs == 0 {
		targetMs = defaultTargetMs
	}

	frameElems := cfg.SamplesPerFrame * cfg.Channels
	frameDurationMs := float64(cfg.SamplesPerFrame) * 1000.0 / float64(cfg.SampleRate)
	jitterFrames := int(math.Ceil(float64(targetMs) / frameDurationMs))

	ringCap := 4 * jitterFrames
	if ringCap < minRingCap {
		ringCap = minRingCap
	}
	pktCap := 4 * jitterFrames
	if pktCap < minPktCap {
		pktCap = minPktCap
	}

	return geometry{
		frameElems:      frameElems,
		frameDurationMs: frameDurationMs,
		jitterFrames:    jitterFrames,
		ringCap:         ringCap,
		pktCap:          pktCap,
		targetMs:        targetMs,
	}
}

// Lifecycle is the owned pipeline value tying together intake, the
// decoder worker, the PCM ring, and the UI scheduler. Its decoder worker
// and UI scheduler run concurrently; the ring and ConfigHandshake are the
// only state genuinely shared between them.
type Lifecycle struct {
	sessionID string
	geometry  geometry

	region *shared.Region
	config *shared.ConfigHandshake
	intake *intake.Intake
	ring   *ring.Ring
	dec    codec.Decoder

	worker    *decodeworker.Worker
	scheduler *uischeduler.Scheduler

	running  atomic.Bool
	stopTick chan struct{}
	eg       *errgroup.Group
}

// Start initializes the pipeline: derives geometry, allocates the shared
// region, ring, and intake, constructs the Opus decoder, populates
// ConfigHandshake (jsInitDone last), and starts the decoder worker
// goroutine and the UI scheduler's tick loop. On any failure it unwinds
// what was already allocated, in reverse order.
func Start(cfg Config, clock audiosink.Clock, sink audiosink.Sink) (*Lifecycle, error) {
	dec, err := codec.NewOpusDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create opus decoder: %w", err)
	}

	return startWithDecoder(cfg, dec, clock, sink)
}

// startWithDecoder performs the rest of init once a codec.Decoder is in
// hand, decoupled from Start so tests can substitute a fake decoder
// without a real Opus binding.
func startWithDecoder(cfg Config, dec codec.Decoder, clock audiosink.Clock, sink audiosink.Sink) (*Lifecycle, error) {
	geo := deriveGeometry(cfg)
	sessionID := uuid.New().String()

	dataBytes := geo.ringCap * geo.frameElems * 2
	sizeOffset := (dataBytes + 3) &^ 3
	configBase := sizeOffset + 4
	region := shared.NewRegion(configBase + shared.ConfigHandshakeSize)

	pcmRing := ring.New(region, 0, sizeOffset, geo.ringCap, geo.frameElems)
	cfgHandshake := shared.NewConfigHandshake(region, configBase)
	in := intake.New(geo.pktCap)

	// Populate every field (flushRequest=0), then publish readiness by
	// writing jsInitDone=1 last.
	cfgHandshake.Init(
		int32(cfg.SampleRate), int32(cfg.Channels),
		0, int32(sizeOffset),
		int32(geo.ringCap), int32(geo.frameElems),
		int32(geo.jitterFrames), int32(geo.targetMs),
	)

	l := &Lifecycle{
		sessionID: sessionID,
		geometry:  geo,
		region:    region,
		config:    cfgHandshake,
		intake:    in,
		ring:      pcmRing,
		dec:       dec,
		worker:    decodeworker.New(in, pcmRing, cfgHandshake, dec, sessionID),
		scheduler: uischeduler.New(cfgHandshake, pcmRing, clock, sink),
		stopTick:  make(chan struct{}),
	}
	l.running.Store(true)

	eg := &errgroup.Group{}
	eg.Go(func() error {
		return l.worker.Run(l.running.Load)
	})
	l.eg = eg

	go l.scheduler.Run(l.stopTick)

	return l, nil
}

// PushEncodedPacket is the network producer boundary. It is idempotent
// under shutdown: once Stop has been called, queued pushes are silently
// discarded by the underlying intake.
func (l *Lifecycle) PushEncodedPacket(data []byte) {
	l.intake.Push(data)
}

// SessionID returns the lifecycle's unique session identifier, used to
// tag diagnostic log lines.
func (l *Lifecycle) SessionID() string { return l.sessionID }

// Stop tears down the pipeline: jsInitDone <- 0, shutdown + wake the
// decoder worker, join it, stop the UI scheduler's tick loop, then release
// owned resources. Idempotent: a second Stop is a no-op.
func (l *Lifecycle) Stop() error {
	if !l.running.CompareAndSwap(true, false) {
		return nil
	}

	l.config.SetJSInitDone(false)
	l.intake.Shutdown()

	err := l.eg.Wait()

	close(l.stopTick)

	if closeErr := l.dec.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
