package segment

import (
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording, got %v", lc.State())
	}
	if lc.SegmentId() != "seg-1" {
		t.Errorf("expected seg-1, got %v", lc.SegmentId())
	}
	if !lc.CanAccept() {
		t.Error("expected CanAccept to be true")
	}
	if lc.IsDiscarded() {
		t.Error("expected IsDiscarded to be false")
	}
}

func TestLifecycle_FlushThenDeliver(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if err := lc.BeginFlush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateFlushing {
		t.Errorf("expected StateFlushing, got %v", lc.State())
	}
	if !lc.CanAccept() {
		t.Error("expected queued chunks to be accepted while flushing")
	}

	if err := lc.Deliver(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateDelivered {
		t.Errorf("expected StateDelivered, got %v", lc.State())
	}
	if lc.CanAccept() {
		t.Error("expected CanAccept to be false after delivery")
	}
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Lifecycle)
		op    func(*Lifecycle) error
		want  error
	}{
		{"deliver while recording", func(*Lifecycle) {}, (*Lifecycle).Deliver, ErrNotFlushing},
		{"flush twice", func(l *Lifecycle) { l.BeginFlush() }, (*Lifecycle).BeginFlush, ErrNotRecording},
		{"flush after discard", func(l *Lifecycle) { l.Discard() }, (*Lifecycle).BeginFlush, ErrSegmentDiscarded},
		{"deliver after discard", func(l *Lifecycle) { l.BeginFlush(); l.Discard() }, (*Lifecycle).Deliver, ErrSegmentDiscarded},
		{"deliver twice", func(l *Lifecycle) { l.BeginFlush(); l.Deliver() }, (*Lifecycle).Deliver, ErrAlreadyDelivered},
		{"flush after delivery", func(l *Lifecycle) { l.BeginFlush(); l.Deliver() }, (*Lifecycle).BeginFlush, ErrAlreadyDelivered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle("seg-1")
			tt.setup(lc)
			if err := tt.op(lc); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLifecycle_Discard(t *testing.T) {
	lc := NewLifecycle("seg-1")

	if !lc.Discard() {
		t.Error("expected first discard to succeed")
	}
	if lc.Discard() {
		t.Error("expected second discard to be a no-op")
	}
	if !lc.IsDiscarded() {
		t.Error("expected IsDiscarded to be true")
	}
	if lc.CanAccept() {
		t.Error("expected discarded segment to reject chunks")
	}
}

func TestLifecycle_DiscardAfterDelivery(t *testing.T) {
	lc := NewLifecycle("seg-1")
	lc.BeginFlush()
	lc.Deliver()

	if lc.Discard() {
		t.Error("expected discard of a delivered segment to fail")
	}
	if lc.State() != StateDelivered {
		t.Errorf("expected StateDelivered, got %v", lc.State())
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle("seg-1")
	lc.Discard()

	lc.Reset("seg-2")

	if lc.SegmentId() != "seg-2" {
		t.Errorf("expected seg-2, got %s", lc.SegmentId())
	}
	if lc.State() != StateRecording {
		t.Errorf("expected StateRecording after reset, got %v", lc.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRecording, "RECORDING"},
		{StateFlushing, "FLUSHING"},
		{StateDelivered, "DELIVERED"},
		{StateDiscarded, "DISCARDED"},
		{State(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_ConcurrentDiscardAndDeliver(t *testing.T) {
	for i := 0; i < 100; i++ {
		lc := NewLifecycle("seg")
		lc.BeginFlush()

		var wg sync.WaitGroup
		var delivered, discarded bool
		wg.Add(2)
		go func() { defer wg.Done(); delivered = lc.Deliver() == nil }()
		go func() { defer wg.Done(); discarded = lc.Discard() }()
		wg.Wait()

		if delivered == discarded {
			t.Fatalf("expected exactly one of deliver/discard to win, got delivered=%v discarded=%v", delivered, discarded)
		}
	}
}
