// ABOUTME: Dedicated decoder worker draining intake into the PCM ring
// ABOUTME: Owns the Opus decoder handle and observes flush requests
package decodeworker

import (
	"log"
	"time"

	"github.com/moonlight-stream/audiojitter-go/internal/codec"
	"github.com/moonlight-stream/audiojitter-go/internal/intake"
	"github.com/moonlight-stream/audiojitter-go/internal/ring"
	"github.com/moonlight-stream/audiojitter-go/internal/shared"
)

// popTimeout bounds each idle wait on the intake's condition variable,
// keeping shutdown latency low without busy-looping.
const popTimeout = time.Millisecond

// diagInterval is how often the worker emits an occupancy diagnostic line.
const diagInterval = 5 * time.Second

// Worker drains intake, decodes each packet through codec, and publishes
// PCM frames into ring. It is the sole writer of intake consumption, the
// ring's write side, and the Opus decoder handle for its lifetime.
type Worker struct {
	intake *intake.Intake
	ring   *ring.Ring
	config *shared.ConfigHandshake
	dec    codec.Decoder

	sessionID string

	overflowCount uint64
}

// New creates a decoder worker. The codec is requested exactly
// ring.FrameElems() samples per decode call, i.e. samplesPerFrame samples
// per channel, via the size of the buffer it decodes into.
func New(in *intake.Intake, r *ring.Ring, cfg *shared.ConfigHandshake, dec codec.Decoder, sessionID string) *Worker {
	return &Worker{
		intake:    in,
		ring:      r,
		config:    cfg,
		dec:       dec,
		sessionID: sessionID,
	}
}

// Run is the worker's main loop. It returns once running reports false;
// packets still queued at that point are not decoded. Intended to be launched as its own
// goroutine and awaited via errgroup by the lifecycle controller.
func (w *Worker) Run(running func() bool) error {
	decodeBuf := make([]int16, w.ring.FrameElems())
	lastDiag := time.Now()

	for running() {
		if time.Since(lastDiag) >= diagInterval {
			log.Printf("decodeworker[%s]: diag jsInitDone=%v ringSize=%d ringCap=%d intakeLen=%d",
				w.sessionID, w.config.JSInitDone(), w.ring.Size(), w.ring.Cap(), w.intake.Len())
			lastDiag = time.Now()
		}

		// Flush observation: this exact ordering is mandatory so the UI
		// learns the ring is reset at position 0 only after it is
		// actually quiescent.
		if w.config.FlushRequest() {
			w.intake.Clear()
			w.ring.Reset()
			w.config.ClearFlush()
			log.Printf("decodeworker[%s]: flush handshake complete", w.sessionID)
		}

		packet, shutdown := w.intake.PopBlocking(popTimeout)
		if packet == nil {
			if shutdown && !running() {
				return nil
			}
			continue
		}

		if w.ring.Full() {
			w.overflowCount++
			if w.overflowCount <= 3 || w.overflowCount%100 == 0 {
				log.Printf("decodeworker[%s]: PCM ring overflow #%d, dropping packet", w.sessionID, w.overflowCount)
			}
			continue
		}

		n, err := w.dec.Decode(packet, decodeBuf)
		if err != nil || n <= 0 {
			log.Printf("decodeworker[%s]: opus decode failed: %v", w.sessionID, err)
			continue
		}

		w.ring.Write(decodeBuf[:w.ring.FrameElems()])
	}

	return nil
}
