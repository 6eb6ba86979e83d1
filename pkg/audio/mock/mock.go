// Package mock provides in-memory mock implementations of the [audio.Opener],
// [audio.Stream], and [audio.FrameSink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	opener := &mock.Opener{}
//	stream, err := opener.OpenInput(audio.StreamConfig{}, capture.Process)
//	opener.DriveInput([]float32{0.5, -0.5}) // runs capture.Process
package mock

import (
	"sync"

	"github.com/MrWong99/voicewire/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream].
type Stream struct {
	mu sync.Mutex

	// StopError is returned by [Stream.Stop].
	StopError error

	// CloseError is returned by [Stream.Close].
	CloseError error

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Stop implements [audio.Stream]. Returns StopError.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
	return s.StopError
}

// Close implements [audio.Stream]. Returns CloseError.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// Stopped reports whether Stop has been called at least once.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStop > 0
}

// ─── Opener ───────────────────────────────────────────────────────────────────

// OpenCall records the arguments of a single OpenInput or OpenOutput invocation.
type OpenCall struct {
	// Config is the StreamConfig passed to the call.
	Config audio.StreamConfig
}

// Opener is a mock implementation of [audio.Opener]. It captures the device
// callbacks so tests can drive them directly with DriveInput and DriveOutput.
type Opener struct {
	mu sync.Mutex

	// OpenInputError is returned by [Opener.OpenInput].
	OpenInputError error

	// OpenOutputError is returned by [Opener.OpenOutput].
	OpenOutputError error

	// InputStream is returned by OpenInput. Defaults to a fresh [Stream].
	InputStream *Stream

	// OutputStream is returned by OpenOutput. Defaults to a fresh [Stream].
	OutputStream *Stream

	// OpenInputCalls records all OpenInput invocations.
	OpenInputCalls []OpenCall

	// OpenOutputCalls records all OpenOutput invocations.
	OpenOutputCalls []OpenCall

	inputCB  func([]float32)
	outputCB func([]float32)
}

// OpenInput implements [audio.Opener]. Records the call, captures cb for
// DriveInput and returns InputStream / OpenInputError.
func (o *Opener) OpenInput(cfg audio.StreamConfig, cb func([]float32)) (audio.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.OpenInputCalls = append(o.OpenInputCalls, OpenCall{Config: cfg})
	if o.OpenInputError != nil {
		return nil, o.OpenInputError
	}
	o.inputCB = cb
	if o.InputStream == nil {
		o.InputStream = &Stream{}
	}
	return o.InputStream, nil
}

// OpenOutput implements [audio.Opener]. Records the call, captures cb for
// DriveOutput and returns OutputStream / OpenOutputError.
func (o *Opener) OpenOutput(cfg audio.StreamConfig, cb func([]float32)) (audio.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.OpenOutputCalls = append(o.OpenOutputCalls, OpenCall{Config: cfg})
	if o.OpenOutputError != nil {
		return nil, o.OpenOutputError
	}
	o.outputCB = cb
	if o.OutputStream == nil {
		o.OutputStream = &Stream{}
	}
	return o.OutputStream, nil
}

// DriveInput invokes the captured input callback with block, simulating one
// microphone device callback. It panics if OpenInput was never called.
func (o *Opener) DriveInput(block []float32) {
	o.mu.Lock()
	cb := o.inputCB
	o.mu.Unlock()
	if cb == nil {
		panic("mock: DriveInput before OpenInput")
	}
	cb(block)
}

// DriveOutput invokes the captured output callback with a fresh block of n
// samples, simulating one speaker device callback, and returns the block the
// callback filled. It panics if OpenOutput was never called.
func (o *Opener) DriveOutput(n int) []float32 {
	o.mu.Lock()
	cb := o.outputCB
	o.mu.Unlock()
	if cb == nil {
		panic("mock: DriveOutput before OpenOutput")
	}
	out := make([]float32, n)
	cb(out)
	return out
}

// ─── FrameSink ────────────────────────────────────────────────────────────────

// FrameSink is a mock implementation of [audio.FrameSink].
type FrameSink struct {
	mu sync.Mutex

	// ReadyResult is returned by [FrameSink.Ready]. Defaults to false;
	// set it to true to accept frames.
	ReadyResult bool

	// SendResult is returned by [FrameSink.SendEncodedAudio].
	SendResult bool

	// Frames records every base64 frame passed to SendEncodedAudio.
	Frames []string

	// CallCountReady records how many times Ready was called.
	CallCountReady int
}

// Ready implements [audio.FrameSink]. Returns ReadyResult.
func (f *FrameSink) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCountReady++
	return f.ReadyResult
}

// SendEncodedAudio implements [audio.FrameSink]. Records the frame and
// returns SendResult.
func (f *FrameSink) SendEncodedAudio(b64 string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = append(f.Frames, b64)
	return f.SendResult
}

// SentFrames returns a copy of the recorded frames.
func (f *FrameSink) SentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Frames))
	copy(out, f.Frames)
	return out
}
