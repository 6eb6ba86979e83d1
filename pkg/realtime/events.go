package realtime

import "time"

// Event is one item on the session's event stream. Consumers receive
// events from [Session.Events] in the order the session emitted them and
// switch on the concrete type.
//
// Audio is not delivered as events: inbound audio deltas go straight to
// the playback scheduler.
type Event interface {
	isEvent()
}

// TextDeltaEvent carries one UTF-8 text fragment of the model's streaming
// response.
type TextDeltaEvent struct {
	// Text is the fragment. Fragments concatenate in event order to form
	// the full response text.
	Text string
}

// StatusEvent signals a connection state change.
type StatusEvent struct {
	// Connected is true once the session is open and false when it has
	// been torn down, whether by Disconnect or by a transport failure.
	Connected bool

	// Err carries the failure that caused an unplanned disconnect.
	// Nil for a connect or an orderly Disconnect.
	Err error
}

// ToolCallEvent carries a completed function-call request from the model.
// The session does not execute tools; acting on the call is the
// consumer's responsibility.
type ToolCallEvent struct {
	Call ToolCall
}

// TranscriptEvent carries one finished transcript entry. The same entry is
// also appended to the session's [Recorder].
type TranscriptEvent struct {
	Entry TranscriptEntry
}

func (TextDeltaEvent) isEvent()  {}
func (StatusEvent) isEvent()     {}
func (ToolCallEvent) isEvent()   {}
func (TranscriptEvent) isEvent() {}

// TranscriptEntry is one turn of recognized or generated text.
type TranscriptEntry struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
