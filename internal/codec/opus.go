// ABOUTME: Black-box streaming Opus decoder boundary
// ABOUTME: One encoded packet in, one fixed-size PCM frame out
package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Decoder is a black-box streaming decoder: it consumes one encoded
// packet and emits one fixed-size PCM frame. The decoder worker is the
// sole owner of any Decoder it creates for its lifetime.
type Decoder interface {
	// Decode consumes one encoded packet and writes up to samplesPerFrame
	// samples per channel into pcmOut (interleaved by channel). It returns
	// the number of samples per channel actually decoded, or a non-positive
	// value and an error on failure.
	Decode(packet []byte, pcmOut []int16) (samplesPerChannel int, err error)

	// Close releases the underlying codec handle.
	Close() error
}

// opusDecoder wraps gopkg.in/hraban/opus.v2.
type opusDecoder struct {
	dec *opus.Decoder
}

// NewOpusDecoder creates a streaming Opus decoder for the given sample
// rate and channel count.
func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Decode(packet []byte, pcmOut []int16) (int, error) {
	n, err := d.dec.Decode(packet, pcmOut)
	if err != nil {
		return 0, fmt.Errorf("codec: opus decode failed: %w", err)
	}
	return n, nil
}

func (d *opusDecoder) Close() error { return nil }
