// ABOUTME: Entry point for the audio jitter pipeline demo
// ABOUTME: Parses CLI flags and streams synthetic placeholder packets through it
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moonlight-stream/audiojitter-go/internal/audiosink"
	"github.com/moonlight-stream/audiojitter-go/internal/pipeline"
)

var (
	sampleRate      = flag.Int("sample-rate", 48000, "PCM sample rate")
	channels        = flag.Int("channels", 2, "PCM channel count")
	samplesPerFrame = flag.Int("samples-per-frame", 240, "Opus samples per channel per frame")
	jitterMs        = flag.Int("jitter-ms", 0, "jitter buffer target in milliseconds (0 selects the default)")
	packetHz        = flag.Int("packet-rate", 200, "synthetic packets pushed per second")
)

func main() {
	flag.Parse()

	log.Printf("starting audiojitter-demo: sampleRate=%d channels=%d samplesPerFrame=%d jitterMs=%d",
		*sampleRate, *channels, *samplesPerFrame, *jitterMs)

	clock := audiosink.NewOtoClock()
	sink, err := audiosink.NewOtoSink(*sampleRate, *channels)
	if err != nil {
		log.Fatalf("failed to create audio sink: %v", err)
	}

	cfg := pipeline.Config{
		SampleRate:       *sampleRate,
		Channels:         *channels,
		SamplesPerFrame:  *samplesPerFrame,
		JitterMsOverride: *jitterMs,
	}

	l, err := pipeline.Start(cfg, clock, sink)
	if err != nil {
		log.Fatalf("failed to start pipeline: %v", err)
	}
	log.Printf("pipeline started: session=%s", l.SessionID())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stopFeed := make(chan struct{})
	go feedSyntheticPackets(l, *packetHz, stopFeed)

	sig := <-sigChan
	log.Printf("received %v signal, shutting down gracefully...", sig)
	close(stopFeed)

	if err := l.Stop(); err != nil {
		log.Fatalf("pipeline shutdown error: %v", err)
	}
	log.Printf("pipeline stopped")
}

// feedSyntheticPackets stands in for the network receive loop that is out
// of scope here: it pushes fixed-size packets at a steady rate to exercise
// intake and decode-worker throughput. The payload is not valid Opus, so
// in practice this mostly demonstrates the decode-failure drop path; point
// a real decoder at real packets to hear audio.
func feedSyntheticPackets(l *pipeline.Lifecycle, hz int, stop <-chan struct{}) {
	packet := make([]byte, 64)
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.PushEncodedPacket(packet)
		}
	}
}
