package realtime

import (
	"sync"
	"testing"
)

func TestRecorder_AppendOrderAndSnapshot(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.append(RoleUser, "hello")
	r.append(RoleAssistant, "hi there")
	r.append(RoleUser, "what time is it?")

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries = %d; want 3", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Text != "hello" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Role != RoleAssistant {
		t.Errorf("entries[1].Role = %q; want assistant", entries[1].Role)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entries must be timestamped")
	}

	// The snapshot is a copy: mutating it does not affect the recorder.
	entries[0].Text = "mutated"
	if got := r.Entries()[0].Text; got != "hello" {
		t.Errorf("recorder entry changed to %q after snapshot mutation", got)
	}
}

func TestRecorder_Clear(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.append(RoleUser, "one")
	r.append(RoleAssistant, "two")
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d; want 0", r.Len())
	}
	if got := r.Entries(); len(got) != 0 {
		t.Errorf("Entries after Clear = %d; want 0", len(got))
	}
}

func TestRecorder_ConcurrentAppendAndRead(t *testing.T) {
	t.Parallel()

	var r Recorder
	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 50 {
				r.append(RoleAssistant, "x")
				_ = r.Entries()
			}
		})
	}
	wg.Wait()

	if r.Len() != 200 {
		t.Errorf("Len = %d; want 200", r.Len())
	}
}
