// Package realtime implements the client side of a bidirectional realtime
// speech protocol over a persistent WebSocket channel.
//
// A [Session] connects the local audio pipeline to the remote service: it
// performs the session.update configuration handshake, streams captured
// microphone audio as base64-encoded PCM16 frames, and routes inbound
// messages to the playback scheduler (audio deltas) and to a typed event
// channel (text deltas, tool calls, transcripts, connection status).
package realtime

// ── Wire messages (outbound) ───────────────────────────────────────────────────

type sessionUpdateMessage struct {
	EventID string        `json:"event_id,omitempty"`
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities        []string            `json:"modalities,omitempty"`
	Voice             string              `json:"voice,omitempty"`
	Instructions      string              `json:"instructions,omitempty"`
	InputAudioFormat  string              `json:"input_audio_format"`
	OutputAudioFormat string              `json:"output_audio_format"`
	InputAudioTx      *transcriptionParam `json:"input_audio_transcription,omitempty"`
	TurnDetection     *turnDetectionParam `json:"turn_detection,omitempty"`
	Tools             []wireTool          `json:"tools,omitempty"`
}

type transcriptionParam struct {
	Model string `json:"model"`
}

type turnDetectionParam struct {
	Type string `json:"type"`
}

type wireTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type appendAudioMessage struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
	Audio   string `json:"audio"` // base64-encoded PCM16
}

// ── Wire messages (inbound) ────────────────────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// response.audio.delta / response.text.delta /
	// response.audio_transcript.delta
	Delta string `json:"delta,omitempty"`

	// conversation.item.input_audio_transcription.completed /
	// response.audio_transcript.done (field name differs per event)
	Transcript string `json:"transcript,omitempty"`

	// response.function_call_arguments.done
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// response.output_item.added
	Item *serverItem `json:"item,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

type serverItem struct {
	Type    string              `json:"type,omitempty"`
	Role    string              `json:"role,omitempty"`
	Content []serverContentPart `json:"content,omitempty"`
}

type serverContentPart struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// serverErrorDetail is the nested error object of an inbound error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
