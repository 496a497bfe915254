// Package segment provides answer segment ID generation and lifecycle management.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an answer segment.
type State int

const (
	// StateRecording - Segment is capturing chunks.
	StateRecording State = iota
	// StateFlushing - Stop requested, chunks already queued are being drained.
	StateFlushing
	// StateDelivered - The blob was handed to the caller.
	StateDelivered
	// StateDiscarded - Segment was abandoned; its data is never delivered.
	StateDiscarded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateRecording:
		return "RECORDING"
	case StateFlushing:
		return "FLUSHING"
	case StateDelivered:
		return "DELIVERED"
	case StateDiscarded:
		return "DISCARDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (DELIVERED or DISCARDED).
func (s State) IsTerminal() bool {
	return s == StateDelivered || s == StateDiscarded
}

// Errors for invalid state transitions.
var (
	ErrNotRecording     = errors.New("segment is not recording")
	ErrNotFlushing      = errors.New("segment is not flushing")
	ErrSegmentDiscarded = errors.New("segment was discarded")
	ErrAlreadyDelivered = errors.New("segment already delivered")
)

// Lifecycle manages the state machine for a single answer segment.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	RECORDING → FLUSHING → DELIVERED
//	    │           │
//	    └───────────┴──→ DISCARDED
//
// Rules:
//   - RECORDING: accepts chunks, can start flushing (once)
//   - FLUSHING: accepts the chunks still queued, can be delivered (once)
//   - DELIVERED, DISCARDED: accept nothing
type Lifecycle struct {
	mu        sync.RWMutex
	segmentId string
	state     State
}

// NewLifecycle creates a new segment lifecycle in RECORDING state.
func NewLifecycle(segmentId string) *Lifecycle {
	return &Lifecycle{
		segmentId: segmentId,
		state:     StateRecording,
	}
}

// SegmentId returns the segment ID.
func (l *Lifecycle) SegmentId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segmentId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanAccept returns true if chunks may still be appended.
func (l *Lifecycle) CanAccept() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording || l.state == StateFlushing
}

// IsDiscarded returns true if the segment was abandoned.
func (l *Lifecycle) IsDiscarded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDiscarded
}

// BeginFlush transitions RECORDING to FLUSHING.
func (l *Lifecycle) BeginFlush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		l.state = StateFlushing
		return nil
	case StateFlushing:
		return ErrNotRecording
	case StateDiscarded:
		return ErrSegmentDiscarded
	case StateDelivered:
		return ErrAlreadyDelivered
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Deliver transitions FLUSHING to DELIVERED. It fails when the segment was
// discarded while flushing, so abandoned data is never handed out late.
func (l *Lifecycle) Deliver() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateFlushing:
		l.state = StateDelivered
		return nil
	case StateRecording:
		return ErrNotFlushing
	case StateDiscarded:
		return ErrSegmentDiscarded
	case StateDelivered:
		return ErrAlreadyDelivered
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Discard transitions the segment to DISCARDED.
// Returns true if the segment was discarded, false if already in a terminal state.
func (l *Lifecycle) Discard() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDiscarded
	return true
}

// Reset resets the lifecycle to RECORDING with a new segment ID.
func (l *Lifecycle) Reset(newSegmentId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segmentId = newSegmentId
	l.state = StateRecording
}
