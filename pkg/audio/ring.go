// Package audio provides the real-time audio pipeline primitives for
// voicewire: a single-producer/single-consumer ring buffer, float32↔PCM16
// sample conversion, a pre-buffering playback scheduler, a capture stage,
// and a malgo-backed device layer.
//
// The package is split along the ownership boundary between the two
// real-time device callbacks and the network-handling goroutines. The
// [Ring] is the only structure shared between those contexts and is safe
// for exactly one concurrent producer and one concurrent consumer without
// locks. Everything that runs inside a device callback is allocation-free
// after construction.
package audio

import "sync/atomic"

// Ring is a fixed-capacity circular buffer of float32 samples for exactly
// one producer goroutine and one consumer goroutine. Cursors are monotonic
// and only reduced modulo the capacity when indexing, so the used count is
// always w-r. One slot is permanently reserved to distinguish full from
// empty: a Ring of capacity N holds at most N-1 samples.
//
// Push never blocks and never overwrites unread samples; Pull never blocks
// and zero-fills any shortfall. Clear may only be called while the consumer
// is halted.
type Ring struct {
	buf []float32
	w   atomic.Uint64 // written samples, producer-owned
	r   atomic.Uint64 // read samples, consumer-owned
}

// NewRing creates a Ring with the given capacity in samples. The usable
// capacity is capacity-1. Panics if capacity < 2.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		panic("audio: ring capacity must be at least 2")
	}
	return &Ring{buf: make([]float32, capacity)}
}

// Cap returns the total capacity in samples, including the reserved slot.
func (rb *Ring) Cap() int { return len(rb.buf) }

// Len returns the number of samples currently buffered.
func (rb *Ring) Len() int {
	return int(rb.w.Load() - rb.r.Load())
}

// Free returns the number of samples that can be pushed without dropping.
func (rb *Ring) Free() int {
	return len(rb.buf) - rb.Len() - 1
}

// Push copies as many samples from src into the buffer as fit and returns
// the number accepted. Samples beyond the free space are dropped; the
// caller detects the overflow from the return value. Safe to call
// concurrently with Pull, from a single producer.
func (rb *Ring) Push(src []float32) int {
	w := rb.w.Load()
	free := len(rb.buf) - int(w-rb.r.Load()) - 1
	n := len(src)
	if n > free {
		n = free
	}
	if n <= 0 {
		return 0
	}
	idx := int(w % uint64(len(rb.buf)))
	first := copy(rb.buf[idx:], src[:n])
	if first < n {
		copy(rb.buf, src[first:n])
	}
	rb.w.Store(w + uint64(n))
	return n
}

// Pull copies up to len(out) buffered samples into out and returns the
// number of real samples delivered. The remainder of out, if any, is
// filled with silence so the caller can always hand the full block to the
// output device. Safe to call concurrently with Push, from a single
// consumer.
func (rb *Ring) Pull(out []float32) int {
	r := rb.r.Load()
	used := int(rb.w.Load() - r)
	n := len(out)
	if n > used {
		n = used
	}
	if n > 0 {
		idx := int(r % uint64(len(rb.buf)))
		first := copy(out[:n], rb.buf[idx:])
		if first < n {
			copy(out[first:n], rb.buf)
		}
		rb.r.Store(r + uint64(n))
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return n
}

// Clear resets both cursors, discarding all buffered samples. The consumer
// must be halted for the duration of the call; Clear is not safe against a
// concurrent Pull.
func (rb *Ring) Clear() {
	rb.r.Store(0)
	rb.w.Store(0)
}
