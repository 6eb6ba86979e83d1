package audio

import "sync/atomic"

// FrameSink receives encoded microphone frames. Implementations must not
// block: SendEncodedAudio is called from the input device callback and has
// to return immediately whether or not the frame was accepted.
type FrameSink interface {
	// Ready reports whether the sink can currently accept frames.
	Ready() bool

	// SendEncodedAudio hands off one base64-encoded PCM16 frame. It
	// returns false when the frame was discarded (sink saturated).
	SendEncodedAudio(b64 string) bool
}

// CaptureStats is a point-in-time snapshot of capture accounting.
type CaptureStats struct {
	// SamplesCaptured counts samples delivered by the input device.
	SamplesCaptured uint64

	// FramesSent counts frames accepted by the sink.
	FramesSent uint64

	// FramesDropped counts frames discarded because the sink was not
	// ready or refused the frame.
	FramesDropped uint64
}

// Capture converts microphone blocks to the wire format and forwards them
// to a FrameSink. Process runs on the input device callback and must never
// block or allocate in steady state, so the conversion scratch is owned by
// the Capture and sized once from the expected block size.
type Capture struct {
	sink FrameSink

	pcm []byte
	b64 []byte

	captured atomic.Uint64
	sent     atomic.Uint64
	dropped  atomic.Uint64
}

// NewCapture creates a Capture forwarding to sink. blockSamples is the
// expected device block size in samples; larger blocks are still handled,
// in passes over the fixed scratch.
func NewCapture(sink FrameSink, blockSamples int) *Capture {
	if blockSamples <= 0 {
		blockSamples = DefaultSampleRate / 100 // 10 ms
	}
	pcmBytes := blockSamples * 2
	return &Capture{
		sink: sink,
		pcm:  make([]byte, pcmBytes),
		b64:  make([]byte, 0, base64Len(pcmBytes)),
	}
}

// Process converts one block of captured samples to little-endian PCM16,
// base64-encodes it and forwards the frame to the sink. When the sink is
// not ready, or refuses the frame, the block is dropped and counted;
// capture never exerts backpressure on the device.
//
// Blocks larger than the scratch are processed in scratch-sized passes, so
// an oversized device callback degrades to multiple frames rather than an
// allocation.
func (c *Capture) Process(block []float32) {
	c.captured.Add(uint64(len(block)))

	if !c.sink.Ready() {
		c.dropped.Add(1)
		return
	}

	maxSamples := len(c.pcm) / 2
	for len(block) > 0 {
		n := min(len(block), maxSamples)
		written := FloatsToPCM16LE(c.pcm, block[:n])
		c.b64 = EncodeBase64Chunked(c.b64[:0], c.pcm[:written], EncodeChunkSize)
		if c.sink.SendEncodedAudio(string(c.b64)) {
			c.sent.Add(1)
		} else {
			c.dropped.Add(1)
		}
		block = block[n:]
	}
}

// Stats returns a snapshot of the capture counters.
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		SamplesCaptured: c.captured.Load(),
		FramesSent:      c.sent.Load(),
		FramesDropped:   c.dropped.Load(),
	}
}

func base64Len(n int) int { return (n + 2) / 3 * 4 }
