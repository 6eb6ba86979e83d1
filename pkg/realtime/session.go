package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/voicewire/pkg/audio"
)

// Compile-time assertion that Session feeds the capture stage.
var _ audio.FrameSink = (*Session)(nil)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	// Inbound audio deltas routinely exceed the transport's default read
	// limit, so the session raises it at connect time.
	readLimit = 1 << 23

	// outboundQueueSize bounds the capture-to-writer handoff. The capture
	// callback never blocks on the network: frames beyond this are dropped.
	outboundQueueSize = 64

	// eventQueueSize buffers the consumer-facing event channel.
	eventQueueSize = 64
)

// ── ConnectionState ────────────────────────────────────────────────────────────

// ConnectionState tracks the session lifecycle. It governs which operations
// are legal: Connect only from StateDisconnected, audio frames are accepted
// only in StateOpen.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateFailed
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ── Config ─────────────────────────────────────────────────────────────────────

// Config carries the immutable per-session configuration. It is sent to the
// remote service exactly once per connection, immediately after the channel
// opens.
type Config struct {
	// BaseURL is the WebSocket endpoint. Defaults to the hosted service;
	// tests point it at a local mock server.
	BaseURL string

	// Model selects the remote model.
	Model string

	// APIKey authenticates the connection. May be empty against servers
	// that do not check it.
	APIKey string

	// Voice selects the model's voice identity.
	Voice string

	// Instructions are the natural-language system instructions.
	Instructions string

	// TranscriptionModel enables user-speech transcription when set.
	TranscriptionModel string

	// TurnDetection selects the turn-detection mode (e.g. "server_vad").
	// Empty leaves the server default.
	TurnDetection string

	// Modalities enabled for responses. Defaults to text and audio.
	Modalities []string

	// Tools is the catalog of externally-implemented actions announced to
	// the model. The session never executes them.
	Tools []ToolDefinition

	// Opener provides the audio device backend.
	Opener audio.Opener

	// Stream configures the device streams (sample rate, period).
	Stream audio.StreamConfig

	// PreBufferSamples is the playback pre-buffer threshold. Defaults to
	// audio.DefaultPreBufferSamples.
	PreBufferSamples int

	// BufferSeconds sizes the playback ring. Defaults to
	// audio.DefaultBufferSeconds.
	BufferSeconds int

	// Logger for session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if len(c.Modalities) == 0 {
		c.Modalities = []string{"text", "audio"}
	}
	if c.PreBufferSamples <= 0 {
		c.PreBufferSamples = audio.DefaultPreBufferSamples
	}
	if c.BufferSeconds <= 0 {
		c.BufferSeconds = audio.DefaultBufferSeconds
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ── Session ────────────────────────────────────────────────────────────────────

// SessionStats is a point-in-time snapshot of session accounting.
type SessionStats struct {
	State ConnectionState

	// AudioDeltas counts inbound audio delta messages enqueued to playback.
	AudioDeltas uint64

	// ResponsesDone counts response-complete markers.
	ResponsesDone uint64

	// MalformedMessages counts inbound messages dropped as unparseable.
	MalformedMessages uint64

	// ToolCallErrors counts function-call events dropped per-call.
	ToolCallErrors uint64

	// ToolCalls counts function-call events forwarded to the consumer.
	ToolCalls uint64

	// ServerErrors counts inbound error events.
	ServerErrors uint64

	Capture  audio.CaptureStats
	Playback audio.SchedulerStats
}

// Session owns one duplex channel to the remote speech service together
// with the local capture and playback pipeline. It is created disconnected;
// Connect opens the devices and the channel, Disconnect tears everything
// down. A disconnected Session may be connected again.
//
// Consumers read typed events from Events and the running transcript from
// Transcript. Inbound audio never appears on the event channel; it is
// enqueued directly to the playback scheduler.
type Session struct {
	cfg Config
	log *slog.Logger

	sched    *audio.Scheduler
	capture  *audio.Capture
	recorder Recorder

	events chan Event
	state  atomic.Int32
	link   atomic.Pointer[link]

	// mu serializes Connect and Disconnect against each other.
	mu sync.Mutex

	audioDeltas    atomic.Uint64
	responsesDone  atomic.Uint64
	malformed      atomic.Uint64
	toolCallErrors atomic.Uint64
	toolCalls      atomic.Uint64
	serverErrors   atomic.Uint64
}

// link holds the per-connection resources. A fresh link is built on every
// Connect so that a torn-down session can connect again cleanly.
type link struct {
	conn     *websocket.Conn
	in, out  audio.Stream
	outbound chan string
	decoder  audio.Decoder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a disconnected Session.
func New(cfg Config) (*Session, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("realtime: config: Opener is required")
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:    cfg,
		log:    cfg.Logger,
		events: make(chan Event, eventQueueSize),
	}
	stream := cfg.Stream
	if stream.SampleRate <= 0 {
		stream.SampleRate = audio.DefaultSampleRate
	}
	s.cfg.Stream = stream
	s.sched = audio.NewScheduler(stream.SampleRate*cfg.BufferSeconds, cfg.PreBufferSamples)
	s.capture = audio.NewCapture(s, stream.BlockSamples())
	return s, nil
}

// Events returns the session's event stream. The channel is never closed;
// a StatusEvent with Connected false marks the end of a connection. That
// terminal event is never dropped: when the queue is full at teardown the
// oldest pending event is discarded to make room for it.
func (s *Session) Events() <-chan Event { return s.events }

// Transcript returns the session's transcript recorder.
func (s *Session) Transcript() *Recorder { return &s.recorder }

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Stats returns a snapshot of the session's counters, including the capture
// and playback pipeline stages.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		State:             s.State(),
		AudioDeltas:       s.audioDeltas.Load(),
		ResponsesDone:     s.responsesDone.Load(),
		MalformedMessages: s.malformed.Load(),
		ToolCallErrors:    s.toolCallErrors.Load(),
		ToolCalls:         s.toolCalls.Load(),
		ServerErrors:      s.serverErrors.Load(),
		Capture:           s.capture.Stats(),
		Playback:          s.sched.Stats(),
	}
}

// ── Connect / Disconnect ───────────────────────────────────────────────────────

// Connect opens the audio devices and the duplex channel, sends the
// configuration handshake and starts the streaming loops. Legal only from
// StateDisconnected; it either returns nil with the session Open, or an
// error with every partial resource released and the session back in
// StateDisconnected.
//
// Devices are opened before the channel is dialed so that a missing or
// denied audio device fails fast without any network traffic.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("realtime: connect from %s: session must be disconnected", s.State())
	}

	// A transport failure tears down without waiting for the loops. Reap
	// that link here so the scheduler is cleared only once its last
	// producer has exited.
	if old := s.link.Load(); old != nil {
		old.wg.Wait()
		s.sched.Stop()
		s.link.Store(nil)
	}

	l, err := s.open(ctx)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return err
	}

	s.link.Store(l)
	s.state.Store(int32(StateOpen))
	s.emit(l, StatusEvent{Connected: true})

	l.wg.Add(2)
	go s.readLoop(l)
	go s.writeLoop(l)

	s.log.Info("session connected", "model", s.cfg.Model, "voice", s.cfg.Voice)
	return nil
}

// open acquires the per-connection resources in fail-fast order: output
// device, input device, channel, handshake. Any failure releases what was
// already acquired.
func (s *Session) open(ctx context.Context) (*link, error) {
	out, err := s.cfg.Opener.OpenOutput(s.cfg.Stream, s.sched.Tick)
	if err != nil {
		return nil, fmt.Errorf("realtime: open playback: %w", err)
	}
	in, err := s.cfg.Opener.OpenInput(s.cfg.Stream, s.capture.Process)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("realtime: open capture: %w", err)
	}

	wsURL := fmt.Sprintf("%s?model=%s", s.cfg.BaseURL, s.cfg.Model)
	header := http.Header{"OpenAI-Beta": []string{"realtime=v1"}}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		in.Close()
		out.Close()
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	linkCtx, cancel := context.WithCancel(context.Background())
	l := &link{
		conn:     conn,
		in:       in,
		out:      out,
		outbound: make(chan string, outboundQueueSize),
		ctx:      linkCtx,
		cancel:   cancel,
	}

	if err := l.writeJSON(ctx, s.sessionUpdate()); err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		in.Close()
		out.Close()
		return nil, fmt.Errorf("realtime: session update: %w", err)
	}
	return l, nil
}

// sessionUpdate builds the one-time configuration handshake.
func (s *Session) sessionUpdate() sessionUpdateMessage {
	params := sessionParams{
		Modalities:        s.cfg.Modalities,
		Voice:             s.cfg.Voice,
		Instructions:      s.cfg.Instructions,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Tools:             toWireTools(s.cfg.Tools),
	}
	if s.cfg.TranscriptionModel != "" {
		params.InputAudioTx = &transcriptionParam{Model: s.cfg.TranscriptionModel}
	}
	if s.cfg.TurnDetection != "" {
		params.TurnDetection = &turnDetectionParam{Type: s.cfg.TurnDetection}
	}
	return sessionUpdateMessage{
		EventID: uuid.NewString(),
		Type:    "session.update",
		Session: params,
	}
}

// Disconnect tears the session down: channel first, then capture, then
// playback. Idempotent and legal from any state; it waits for the
// streaming loops to exit before clearing the playback ring, so a route
// dispatch still enqueuing a late audio delta can never race the clear.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.link.Load()
	if l == nil {
		return nil
	}
	s.teardown(l, nil)
	l.wg.Wait()
	s.sched.Stop()
	s.link.Store(nil)
	return nil
}

// teardown releases a link's resources exactly once. cause is nil for an
// orderly disconnect and the transport error otherwise. It does not wait
// for the loops, so it is safe to call from the read loop itself; for the
// same reason it must not clear the playback scheduler, because a route
// dispatch already in flight may still be pushing into the ring. The clear
// happens in Disconnect (or the next Connect) once the loops have exited.
func (s *Session) teardown(l *link, cause error) {
	l.once.Do(func() {
		if cause != nil {
			s.state.Store(int32(StateFailed))
			s.log.Error("session failed", "error", cause)
		} else {
			s.state.Store(int32(StateClosing))
		}

		l.cancel()
		l.conn.Close(websocket.StatusNormalClosure, "session closed")
		if err := l.in.Stop(); err != nil {
			s.log.Warn("stop capture", "error", err)
		}
		l.in.Close()
		if err := l.out.Stop(); err != nil {
			s.log.Warn("stop playback", "error", err)
		}
		l.out.Close()

		s.state.Store(int32(StateDisconnected))

		// The terminal status event must not be lost: when the queue is
		// full (consumer stalled or gone), discard the oldest pending
		// event to make room for it.
		select {
		case s.events <- StatusEvent{Connected: false, Err: cause}:
		default:
			select {
			case <-s.events:
			default:
			}
			select {
			case s.events <- StatusEvent{Connected: false, Err: cause}:
			default:
			}
		}
		s.log.Info("session disconnected")
	})
}

// fail tears the session down after a transport error. Called from the
// streaming loops.
func (s *Session) fail(l *link, err error) {
	s.teardown(l, err)
}

// ── FrameSink (capture hot path) ───────────────────────────────────────────────

// Ready implements [audio.FrameSink]. Frames are accepted only while the
// session is open.
func (s *Session) Ready() bool {
	return s.state.Load() == int32(StateOpen)
}

// SendEncodedAudio implements [audio.FrameSink]. It runs on the capture
// device callback: the frame is handed to the write loop without blocking
// and dropped when the outbound queue is full.
func (s *Session) SendEncodedAudio(b64 string) bool {
	l := s.link.Load()
	if l == nil {
		return false
	}
	select {
	case l.outbound <- b64:
		return true
	default:
		return false
	}
}

// ── Streaming loops ────────────────────────────────────────────────────────────

// writeLoop drains the outbound queue onto the channel. One frame per
// input_audio_buffer.append message.
func (s *Session) writeLoop(l *link) {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case frame := <-l.outbound:
			msg := appendAudioMessage{
				EventID: uuid.NewString(),
				Type:    "input_audio_buffer.append",
				Audio:   frame,
			}
			if err := l.writeJSON(l.ctx, msg); err != nil {
				if l.ctx.Err() == nil {
					s.fail(l, fmt.Errorf("realtime: write audio: %w", err))
				}
				return
			}
		}
	}
}

// readLoop reads inbound messages and routes them in arrival order.
func (s *Session) readLoop(l *link) {
	defer l.wg.Done()

	// Accumulates response.audio_transcript.delta fragments until the
	// matching done event.
	var assistantTx strings.Builder

	for {
		_, data, err := l.conn.Read(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				s.fail(l, fmt.Errorf("realtime: read: %w", err))
			}
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			s.malformed.Add(1)
			s.log.Warn("dropping unparseable message", "error", err)
			continue
		}
		s.route(l, &evt, &assistantTx)
	}
}

// route dispatches one inbound event. Malformed payloads are counted and
// dropped; they never terminate the session.
func (s *Session) route(l *link, evt *serverEvent, assistantTx *strings.Builder) {
	switch evt.Type {
	case "response.audio.delta":
		if evt.Delta == "" {
			return
		}
		samples, err := l.decoder.Decode(evt.Delta)
		if err != nil {
			s.malformed.Add(1)
			s.log.Warn("dropping audio delta", "error", err)
			return
		}
		s.sched.Enqueue(samples)
		s.audioDeltas.Add(1)

	case "response.text.delta":
		if evt.Delta == "" {
			return
		}
		s.emit(l, TextDeltaEvent{Text: evt.Delta})

	case "response.done":
		s.responsesDone.Add(1)
		s.log.Debug("response complete")

	case "conversation.item.input_audio_transcription.completed":
		if evt.Transcript == "" {
			return
		}
		entry := s.recorder.append(RoleUser, evt.Transcript)
		s.emit(l, TranscriptEvent{Entry: entry})

	case "response.output_item.added":
		text := itemText(evt.Item)
		if text == "" {
			return
		}
		entry := s.recorder.append(RoleAssistant, text)
		s.emit(l, TranscriptEvent{Entry: entry})

	case "response.audio_transcript.delta":
		assistantTx.WriteString(evt.Delta)

	case "response.audio_transcript.done":
		text := evt.Transcript
		if text == "" {
			text = assistantTx.String()
		}
		assistantTx.Reset()
		if text == "" {
			return
		}
		entry := s.recorder.append(RoleAssistant, text)
		s.emit(l, TranscriptEvent{Entry: entry})

	case "response.function_call_arguments.done":
		call, err := parseToolCall(evt)
		if err != nil {
			s.toolCallErrors.Add(1)
			s.log.Error("dropping tool call", "error", err)
			return
		}
		s.toolCalls.Add(1)
		s.emit(l, ToolCallEvent{Call: call})

	case "error":
		s.serverErrors.Add(1)
		if evt.Error != nil {
			s.log.Warn("server error event", "code", evt.Error.Code, "message", evt.Error.Message)
		} else {
			s.log.Warn("server error event without detail")
		}

	default:
		s.log.Debug("ignoring message", "type", evt.Type)
	}
}

// itemText concatenates the text fragments of an output item's content.
func itemText(item *serverItem) string {
	if item == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range item.Content {
		if part.Text != "" {
			b.WriteString(part.Text)
		} else if part.Transcript != "" {
			b.WriteString(part.Transcript)
		}
	}
	return b.String()
}

// emit delivers one event, blocking until the consumer accepts it or the
// connection ends. Emission order is preserved: route runs on the single
// read-loop goroutine.
func (s *Session) emit(l *link, ev Event) {
	select {
	case s.events <- ev:
	case <-l.ctx.Done():
	}
}

// writeJSON marshals v and writes it as a text message.
func (l *link) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return l.conn.Write(ctx, websocket.MessageText, data)
}
