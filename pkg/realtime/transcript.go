package realtime

import (
	"sync"
	"time"
)

// Recorder is the session-scoped, append-only transcript log. The session
// appends entries as transcription and response events arrive; consumers
// read snapshots with Entries. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

// append adds one entry stamped with the current time and returns it.
// Only the session calls this.
func (r *Recorder) append(role Role, text string) TranscriptEntry {
	entry := TranscriptEntry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry
}

// Entries returns a copy of the transcript in append order.
func (r *Recorder) Entries() []TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TranscriptEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear discards all recorded entries.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.entries = r.entries[:0]
	r.mu.Unlock()
}
