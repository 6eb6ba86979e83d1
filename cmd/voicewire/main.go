// Command voicewire connects the local microphone and speaker to a remote
// conversational speech service and streams the conversation until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicewire/internal/config"
	"github.com/MrWong99/voicewire/internal/health"
	"github.com/MrWong99/voicewire/internal/observe"
	"github.com/MrWong99/voicewire/pkg/audio"
	"github.com/MrWong99/voicewire/pkg/realtime"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicewire: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicewire: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicewire starting",
		"config", *configPath,
		"model", cfg.Session.Model,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voicewire",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Audio engine ──────────────────────────────────────────────────────────
	engine, err := audio.NewEngine()
	if err != nil {
		slog.Error("failed to initialise audio engine", "err", err)
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("audio engine close error", "err", err)
		}
	}()

	// ── Session ───────────────────────────────────────────────────────────────
	session, err := realtime.New(sessionConfig(cfg, engine))
	if err != nil {
		slog.Error("failed to build session", "err", err)
		return 1
	}

	unregister, err := observe.RegisterPipeline(otel.GetMeterProvider(), func() observe.PipelineSnapshot {
		return pipelineSnapshot(session.Stats())
	})
	if err != nil {
		slog.Error("failed to register pipeline metrics", "err", err)
		return 1
	}
	defer func() {
		if err := unregister(); err != nil {
			slog.Warn("metrics unregister error", "err", err)
		}
	}()

	printStartupSummary(cfg)

	if err := session.Connect(ctx); err != nil {
		metrics.SessionConnects.Add(ctx, 1, observe.WithStatus("error"))
		slog.Error("connect failed", "err", err)
		return 1
	}
	metrics.SessionConnects.Add(ctx, 1, observe.WithStatus("ok"))

	slog.Info("session ready, speak into the microphone; press Ctrl+C to quit")

	// ── Run loops ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumeEvents(gctx, session, metrics)
	})

	var srv *http.Server
	if cfg.Server.MetricsAddr != "" {
		srv = telemetryServer(cfg.Server.MetricsAddr, metrics, session)
		g.Go(func() error {
			slog.Info("telemetry endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telemetry server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	runErr := g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down…")
	cause := "requested"
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		cause = "failed"
	}
	if err := session.Disconnect(); err != nil {
		slog.Warn("disconnect error", "err", err)
	}
	metrics.SessionDisconnects.Add(context.Background(), 1, observe.WithCause(cause))

	printTranscript(session.Transcript().Entries())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// consumeEvents drains the session's event stream, printing conversation
// output and recording metrics. It returns when ctx is cancelled or the
// session reports an unplanned disconnect.
func consumeEvents(ctx context.Context, session *realtime.Session, metrics *observe.Metrics) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-session.Events():
			switch e := ev.(type) {
			case realtime.TextDeltaEvent:
				fmt.Print(e.Text)
				metrics.TextDeltas.Add(ctx, 1)

			case realtime.TranscriptEvent:
				fmt.Printf("\n[%s] %s\n", e.Entry.Role, e.Entry.Text)
				metrics.RecordTranscriptEntry(ctx, string(e.Entry.Role))

			case realtime.ToolCallEvent:
				// No tool execution here: the call is surfaced for an
				// external orchestrator and logged.
				slog.Info("tool call requested",
					"tool", e.Call.Name,
					"call_id", e.Call.CallID,
					"arguments", e.Call.RawArguments,
				)
				metrics.RecordToolCall(ctx, e.Call.Name, "forwarded")

			case realtime.StatusEvent:
				if e.Connected {
					slog.Info("connection established")
					continue
				}
				if e.Err != nil {
					return fmt.Errorf("session lost: %w", e.Err)
				}
				return nil
			}
		}
	}
}

// telemetryServer builds the /metrics, /healthz and /readyz endpoint server.
func telemetryServer(addr string, metrics *observe.Metrics, session *realtime.Session) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(health.Probe{
		Name: "session",
		Check: func(context.Context) error {
			if st := session.State(); st != realtime.StateOpen {
				return fmt.Errorf("session is %s", st)
			}
			return nil
		},
	})
	h.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// sessionConfig maps the YAML config onto the session configuration.
func sessionConfig(cfg *config.Config, engine *audio.Engine) realtime.Config {
	stream := audio.StreamConfig{
		SampleRate:   cfg.Audio.SampleRate,
		PeriodMillis: cfg.Audio.PeriodMs,
	}
	sampleRate := stream.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	sc := realtime.Config{
		BaseURL:            cfg.Session.BaseURL,
		Model:              cfg.Session.Model,
		Voice:              cfg.Session.Voice,
		Instructions:       cfg.Session.Instructions,
		TranscriptionModel: cfg.Session.TranscriptionModel,
		TurnDetection:      cfg.Session.TurnDetection,
		Modalities:         cfg.Session.Modalities,
		Opener:             engine,
		Stream:             stream,
		BufferSeconds:      cfg.Audio.BufferSeconds,
	}
	if cfg.Session.APIKeyEnv != "" {
		sc.APIKey = os.Getenv(cfg.Session.APIKeyEnv)
	}
	if cfg.Audio.PreBufferMs > 0 {
		sc.PreBufferSamples = sampleRate * cfg.Audio.PreBufferMs / 1000
	}
	for _, t := range cfg.Tools {
		sc.Tools = append(sc.Tools, realtime.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return sc
}

// pipelineSnapshot adapts session stats to the observe polling shape.
func pipelineSnapshot(st realtime.SessionStats) observe.PipelineSnapshot {
	return observe.PipelineSnapshot{
		SamplesCaptured:   st.Capture.SamplesCaptured,
		FramesSent:        st.Capture.FramesSent,
		FramesDropped:     st.Capture.FramesDropped,
		SamplesReceived:   st.Playback.SamplesReceived,
		SamplesDropped:    st.Playback.SamplesDropped,
		SamplesPlayed:     st.Playback.SamplesPlayed,
		Underruns:         st.Playback.Underruns,
		AudioDeltas:       st.AudioDeltas,
		MalformedMessages: st.MalformedMessages,
		ServerErrors:      st.ServerErrors,
		BufferedSamples:   int64(st.Playback.Buffered),
		Connected:         st.State == realtime.StateOpen,
	}
}

// printTranscript writes the session transcript to stdout after shutdown.
func printTranscript(entries []realtime.TranscriptEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Println("\n── transcript ─────────────────────────────")
	for _, e := range entries {
		fmt.Printf("%s  %-9s  %s\n", e.Timestamp.Format("15:04:05"), e.Role, e.Text)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       voicewire startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Model", cfg.Session.Model)
	printField("Voice", cfg.Session.Voice)
	printField("Turn detection", cfg.Session.TurnDetection)
	printField("Transcription", cfg.Session.TranscriptionModel)
	fmt.Printf("║  Tools configured : %-18d ║\n", len(cfg.Tools))
	if cfg.Server.MetricsAddr != "" {
		printField("Metrics addr", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(default)"
	}
	if len(value) > 18 {
		value = value[:15] + "…"
	}
	fmt.Printf("║  %-16s : %-18s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
