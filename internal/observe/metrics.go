// Package observe provides application-wide observability primitives for
// voicewire: OpenTelemetry metrics, tracing, trace-enriched logging, and
// HTTP middleware for the telemetry endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint.
//
// The audio pipeline never records instruments from its device callbacks:
// hot-path components keep plain atomic counters and expose them through
// snapshot functions. [RegisterPipeline] bridges those snapshots into
// observable instruments that are polled at scrape time, so the realtime
// threads stay free of instrumentation work.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicewire metrics.
const meterName = "github.com/MrWong99/voicewire"

// Metrics holds the synchronous metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation. None of these are recorded from audio device
// callbacks.
type Metrics struct {
	// SessionConnects counts session connect attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	SessionConnects metric.Int64Counter

	// SessionDisconnects counts session teardowns. Use with attribute:
	//   attribute.String("cause", "requested"|"failed")
	SessionDisconnects metric.Int64Counter

	// ToolCalls counts tool-call events forwarded to the consumer. Use with
	// attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// TranscriptEntries counts recorded transcript entries. Use with
	// attribute:
	//   attribute.String("role", "user"|"assistant")
	TranscriptEntries metric.Int64Counter

	// TextDeltas counts streamed response text fragments.
	TextDeltas metric.Int64Counter

	// HTTPRequestDuration tracks telemetry-endpoint request time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionConnects, err = m.Int64Counter("voicewire.session.connects",
		metric.WithDescription("Total session connect attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.SessionDisconnects, err = m.Int64Counter("voicewire.session.disconnects",
		metric.WithDescription("Total session teardowns by cause."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("voicewire.tool.calls",
		metric.WithDescription("Total tool-call events by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEntries, err = m.Int64Counter("voicewire.transcript.entries",
		metric.WithDescription("Total transcript entries by role."),
	); err != nil {
		return nil, err
	}
	if met.TextDeltas, err = m.Int64Counter("voicewire.text.deltas",
		metric.WithDescription("Total streamed response text fragments."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicewire.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// WithStatus returns a measurement option carrying a status attribute.
func WithStatus(status string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("status", status))
}

// WithCause returns a measurement option carrying a cause attribute.
func WithCause(cause string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("cause", cause))
}

// RecordToolCall records a tool-call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordTranscriptEntry records a transcript-entry counter increment.
func (m *Metrics) RecordTranscriptEntry(ctx context.Context, role string) {
	m.TranscriptEntries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}

// PipelineSnapshot is one polled view of the audio pipeline's hot-path
// counters. The session layer fills it from its atomic stats; the observe
// layer never touches the pipeline directly.
type PipelineSnapshot struct {
	SamplesCaptured   uint64
	FramesSent        uint64
	FramesDropped     uint64
	SamplesReceived   uint64
	SamplesDropped    uint64
	SamplesPlayed     uint64
	Underruns         uint64
	AudioDeltas       uint64
	MalformedMessages uint64
	ServerErrors      uint64

	BufferedSamples int64
	Connected       bool
}

// RegisterPipeline registers observable instruments for the audio pipeline
// on mp. snapshot is invoked once per metric collection; it must be cheap
// and safe to call concurrently (atomic loads). The returned unregister
// function stops collection.
func RegisterPipeline(mp metric.MeterProvider, snapshot func() PipelineSnapshot) (unregister func() error, err error) {
	m := mp.Meter(meterName)

	captured, err := m.Int64ObservableCounter("voicewire.capture.samples",
		metric.WithDescription("Samples delivered by the input device."))
	if err != nil {
		return nil, err
	}
	framesSent, err := m.Int64ObservableCounter("voicewire.capture.frames_sent",
		metric.WithDescription("Encoded microphone frames accepted for transmission."))
	if err != nil {
		return nil, err
	}
	framesDropped, err := m.Int64ObservableCounter("voicewire.capture.frames_dropped",
		metric.WithDescription("Encoded microphone frames dropped before transmission."))
	if err != nil {
		return nil, err
	}
	received, err := m.Int64ObservableCounter("voicewire.playback.samples_received",
		metric.WithDescription("Decoded samples offered to the playback ring."))
	if err != nil {
		return nil, err
	}
	dropped, err := m.Int64ObservableCounter("voicewire.playback.samples_dropped",
		metric.WithDescription("Decoded samples dropped on ring overflow."))
	if err != nil {
		return nil, err
	}
	played, err := m.Int64ObservableCounter("voicewire.playback.samples_played",
		metric.WithDescription("Samples delivered to the output device."))
	if err != nil {
		return nil, err
	}
	underruns, err := m.Int64ObservableCounter("voicewire.playback.underruns",
		metric.WithDescription("Output ticks that drained the ring short."))
	if err != nil {
		return nil, err
	}
	deltas, err := m.Int64ObservableCounter("voicewire.session.audio_deltas",
		metric.WithDescription("Inbound audio delta messages enqueued to playback."))
	if err != nil {
		return nil, err
	}
	malformed, err := m.Int64ObservableCounter("voicewire.session.malformed_messages",
		metric.WithDescription("Inbound messages dropped as unparseable."))
	if err != nil {
		return nil, err
	}
	serverErrors, err := m.Int64ObservableCounter("voicewire.session.server_errors",
		metric.WithDescription("Inbound error events from the remote service."))
	if err != nil {
		return nil, err
	}
	buffered, err := m.Int64ObservableGauge("voicewire.playback.buffered_samples",
		metric.WithDescription("Samples currently queued for playback."))
	if err != nil {
		return nil, err
	}
	connected, err := m.Int64ObservableGauge("voicewire.session.connected",
		metric.WithDescription("1 while the session is open, 0 otherwise."))
	if err != nil {
		return nil, err
	}

	reg, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snapshot()
		o.ObserveInt64(captured, int64(s.SamplesCaptured))
		o.ObserveInt64(framesSent, int64(s.FramesSent))
		o.ObserveInt64(framesDropped, int64(s.FramesDropped))
		o.ObserveInt64(received, int64(s.SamplesReceived))
		o.ObserveInt64(dropped, int64(s.SamplesDropped))
		o.ObserveInt64(played, int64(s.SamplesPlayed))
		o.ObserveInt64(underruns, int64(s.Underruns))
		o.ObserveInt64(deltas, int64(s.AudioDeltas))
		o.ObserveInt64(malformed, int64(s.MalformedMessages))
		o.ObserveInt64(serverErrors, int64(s.ServerErrors))
		o.ObserveInt64(buffered, s.BufferedSamples)
		if s.Connected {
			o.ObserveInt64(connected, 1)
		} else {
			o.ObserveInt64(connected, 0)
		}
		return nil
	}, captured, framesSent, framesDropped, received, dropped, played,
		underruns, deltas, malformed, serverErrors, buffered, connected)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}
