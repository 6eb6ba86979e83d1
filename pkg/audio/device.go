package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// StreamConfig describes a mono device stream.
type StreamConfig struct {
	// SampleRate in Hz. Defaults to DefaultSampleRate.
	SampleRate int

	// PeriodMillis is the device callback period. Defaults to 10 ms.
	PeriodMillis int
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.PeriodMillis <= 0 {
		c.PeriodMillis = 10
	}
	return c
}

// BlockSamples returns the expected samples per device callback.
func (c StreamConfig) BlockSamples() int {
	c = c.withDefaults()
	return c.SampleRate * c.PeriodMillis / 1000
}

// Stream is a started device stream. Stop halts the callback; Close
// releases the device. Both are safe to call more than once.
type Stream interface {
	Stop() error
	Close() error
}

// Opener abstracts the audio backend so the session layer can be tested
// without real hardware.
type Opener interface {
	// OpenInput starts a capture stream. cb runs on the device thread
	// with each block of mono float32 samples and must not block.
	OpenInput(cfg StreamConfig, cb func(block []float32)) (Stream, error)

	// OpenOutput starts a playback stream. cb runs on the device thread
	// and must fill out with the next block of mono float32 samples.
	OpenOutput(cfg StreamConfig, cb func(out []float32)) (Stream, error)
}

// Engine is the miniaudio-backed Opener. One Engine owns the backend
// context; streams opened from it must be closed before Close.
type Engine struct {
	ctx *malgo.AllocatedContext
}

// NewEngine initializes the audio backend with realtime thread priority.
func NewEngine() (*Engine, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Engine{ctx: ctx}, nil
}

// Close tears down the backend context.
func (e *Engine) Close() error {
	if e.ctx == nil {
		return nil
	}
	err := e.ctx.Uninit()
	e.ctx.Free()
	e.ctx = nil
	if err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	return nil
}

// OpenInput implements Opener.
func (e *Engine) OpenInput(cfg StreamConfig, cb func([]float32)) (Stream, error) {
	cfg = cfg.withDefaults()

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatF32
	dc.Capture.Channels = 1
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = uint32(cfg.PeriodMillis)

	// Scratch sized to the configured period; oversized callbacks are
	// handled in passes so the device thread never allocates.
	scratch := make([]float32, cfg.BlockSamples())

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			for len(in) >= 4 {
				n := min(len(in)/4, len(scratch))
				bytesToFloats(scratch[:n], in)
				cb(scratch[:n])
				in = in[n*4:]
			}
		},
	}

	dev, err := malgo.InitDevice(e.ctx.Context, dc, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	return &deviceStream{dev: dev}, nil
}

// OpenOutput implements Opener.
func (e *Engine) OpenOutput(cfg StreamConfig, cb func([]float32)) (Stream, error) {
	cfg = cfg.withDefaults()

	dc := malgo.DefaultDeviceConfig(malgo.Playback)
	dc.Playback.Format = malgo.FormatF32
	dc.Playback.Channels = 1
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = uint32(cfg.PeriodMillis)

	scratch := make([]float32, cfg.BlockSamples())

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			for len(out) >= 4 {
				n := min(len(out)/4, len(scratch))
				block := scratch[:n]
				cb(block)
				floatsToBytes(out, block)
				out = out[n*4:]
			}
		},
	}

	dev, err := malgo.InitDevice(e.ctx.Context, dc, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	return &deviceStream{dev: dev}, nil
}

type deviceStream struct {
	dev     *malgo.Device
	stopped bool
	closed  bool
}

func (s *deviceStream) Stop() error {
	if s.stopped || s.closed {
		return nil
	}
	s.stopped = true
	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("stop device: %w", err)
	}
	return nil
}

func (s *deviceStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dev.Uninit()
	return nil
}

func bytesToFloats(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

func floatsToBytes(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
