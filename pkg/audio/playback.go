package audio

import "sync/atomic"

const (
	// DefaultSampleRate is the fixed pipeline sample rate in Hz.
	DefaultSampleRate = 24000

	// DefaultPreBufferSamples is the playback pre-buffer threshold: the
	// scheduler emits silence until this many samples are queued (~100 ms
	// at 24 kHz), absorbing network jitter before the first audible sample.
	DefaultPreBufferSamples = 2400

	// DefaultBufferSeconds sizes the playback ring buffer.
	DefaultBufferSeconds = 10
)

// SchedulerStats is a point-in-time snapshot of playback accounting.
// All values are cumulative since construction except Buffered.
type SchedulerStats struct {
	// SamplesReceived counts samples offered via Enqueue, accepted or not.
	SamplesReceived uint64

	// SamplesDropped counts samples rejected because the ring was full.
	SamplesDropped uint64

	// SamplesPlayed counts real (non-silence) samples delivered to ticks.
	SamplesPlayed uint64

	// Underruns counts ticks that demanded more samples than were buffered.
	Underruns uint64

	// Buffered is the number of samples currently queued for playback.
	Buffered int

	// Buffering reports whether the pre-buffer gate is still closed.
	Buffering bool
}

// Scheduler decouples the bursty arrival of decoded network audio from the
// steady demand of the output device. The inbound message handler is the
// producer (Enqueue); the output device callback is the consumer (Tick).
//
// Playback starts gated: ticks emit silence until the ring holds at least
// the pre-buffer threshold, and the gate opens on the tick *after* the
// threshold is reached. The gate is armed once per Stop/start cycle; a
// mid-stream underrun drains to silence but does not re-arm it, trading
// glitch recovery for latency (re-buffering would delay every subsequent
// sample by the threshold).
//
// Underrun and overflow are counted, never fatal: underrun plays silence,
// overflow drops the newest samples that exceed capacity.
type Scheduler struct {
	ring      *Ring
	preBuffer int

	buffering atomic.Bool

	received atomic.Uint64
	dropped  atomic.Uint64
	played   atomic.Uint64
	underrun atomic.Uint64
}

// NewScheduler creates a Scheduler with a ring of ringCapacity samples and
// the given pre-buffer threshold. Non-positive arguments fall back to
// DefaultSampleRate*DefaultBufferSeconds and DefaultPreBufferSamples.
func NewScheduler(ringCapacity, preBufferSamples int) *Scheduler {
	if ringCapacity <= 0 {
		ringCapacity = DefaultSampleRate * DefaultBufferSeconds
	}
	if preBufferSamples <= 0 {
		preBufferSamples = DefaultPreBufferSamples
	}
	s := &Scheduler{
		ring:      NewRing(ringCapacity),
		preBuffer: preBufferSamples,
	}
	s.buffering.Store(true)
	return s
}

// Tick fills out with the next block of playback audio. Called once per
// output-device callback, on the device's clock. Never blocks, never
// allocates.
//
// While the pre-buffer gate is closed the block is all silence; the gate
// opens for the following tick once enough samples are queued. After the
// gate opens, a short pull is zero-filled by the ring and counted as an
// underrun.
func (s *Scheduler) Tick(out []float32) {
	if s.buffering.Load() {
		for i := range out {
			out[i] = 0
		}
		if s.ring.Len() >= s.preBuffer {
			s.buffering.Store(false)
		}
		return
	}

	n := s.ring.Pull(out)
	s.played.Add(uint64(n))
	if n < len(out) {
		s.underrun.Add(1)
	}
}

// Enqueue pushes decoded samples into the playback ring and returns the
// number accepted. Called from the inbound message handler. Samples that
// exceed the ring's free space are dropped and counted.
func (s *Scheduler) Enqueue(samples []float32) int {
	s.received.Add(uint64(len(samples)))
	n := s.ring.Push(samples)
	if n < len(samples) {
		s.dropped.Add(uint64(len(samples) - n))
	}
	return n
}

// Stop clears the ring and re-arms the pre-buffer gate for the next
// playback run. The output device callback must be halted before Stop is
// called; Clear is not safe against a concurrent Tick.
func (s *Scheduler) Stop() {
	s.buffering.Store(true)
	s.ring.Clear()
}

// Buffered returns the number of samples currently queued.
func (s *Scheduler) Buffered() int { return s.ring.Len() }

// Buffering reports whether the pre-buffer gate is still closed.
func (s *Scheduler) Buffering() bool { return s.buffering.Load() }

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		SamplesReceived: s.received.Load(),
		SamplesDropped:  s.dropped.Load(),
		SamplesPlayed:   s.played.Load(),
		Underruns:       s.underrun.Load(),
		Buffered:        s.ring.Len(),
		Buffering:       s.buffering.Load(),
	}
}
