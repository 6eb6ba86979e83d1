package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestSessionConnectsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionConnects.Add(ctx, 1, WithStatus("ok"))
	m.SessionConnects.Add(ctx, 1, WithStatus("ok"))
	m.SessionConnects.Add(ctx, 1, WithStatus("error"))

	rm := collect(t, reader)
	met := findMetric(rm, "voicewire.session.connects")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	// The status=ok series carries two increments.
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "status" && kv.Value.AsString() == "ok" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with status=ok not found")
}

func TestToolCallsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "generate_image", "forwarded")
	m.RecordToolCall(ctx, "generate_image", "error")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "voicewire.tool.calls"); got != 2 {
		t.Errorf("tool calls total = %d, want 2", got)
	}
}

func TestTranscriptEntriesCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscriptEntry(ctx, "user")
	m.RecordTranscriptEntry(ctx, "assistant")
	m.RecordTranscriptEntry(ctx, "assistant")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "voicewire.transcript.entries"); got != 3 {
		t.Errorf("transcript entries total = %d, want 3", got)
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.123)
	m.HTTPRequestDuration.Record(ctx, 0.456)

	rm := collect(t, reader)
	met := findMetric(rm, "voicewire.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("histogram has no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestRegisterPipeline_ObservesSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	snap := PipelineSnapshot{
		SamplesCaptured: 48000,
		FramesSent:      100,
		FramesDropped:   3,
		SamplesReceived: 24000,
		SamplesPlayed:   23000,
		Underruns:       2,
		AudioDeltas:     50,
		BufferedSamples: 1000,
		Connected:       true,
	}
	unregister, err := RegisterPipeline(mp, func() PipelineSnapshot { return snap })
	if err != nil {
		t.Fatalf("RegisterPipeline: %v", err)
	}

	rm := collect(t, reader)
	checks := map[string]int64{
		"voicewire.capture.samples":           48000,
		"voicewire.capture.frames_sent":       100,
		"voicewire.capture.frames_dropped":    3,
		"voicewire.playback.samples_received": 24000,
		"voicewire.playback.samples_played":   23000,
		"voicewire.playback.underruns":        2,
		"voicewire.session.audio_deltas":      50,
	}
	for name, want := range checks {
		if got := sumValue(t, rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}

	for name, want := range map[string]int64{
		"voicewire.playback.buffered_samples": 1000,
		"voicewire.session.connected":         1,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		gauge, ok := met.Data.(metricdata.Gauge[int64])
		if !ok {
			t.Fatalf("metric %q is not a gauge", name)
		}
		if len(gauge.DataPoints) == 0 || gauge.DataPoints[0].Value != want {
			t.Errorf("%s = %+v, want %d", name, gauge.DataPoints, want)
		}
	}

	if err := unregister(); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}
