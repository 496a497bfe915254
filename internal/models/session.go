// Package models defines the data structures of an interview session.
package models

import (
	"fmt"
	"strings"
)

// SessionStatus is the backend-owned status of an interview session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "NOT_STARTED"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
)

// ParseSessionStatus normalises a status reported by the backend.
// Freshly created sessions are reported as PENDING.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PENDING", string(StatusNotStarted):
		return StatusNotStarted, nil
	case string(StatusInProgress):
		return StatusInProgress, nil
	case string(StatusCompleted):
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown session status %q", s)
	}
}

// Session is the client's read-through copy of the backend session.
type Session struct {
	ID             string        `json:"id" validate:"required"`
	JobID          string        `json:"job_id" validate:"required"`
	Status         SessionStatus `json:"status"`
	LastQuestionID *string       `json:"last_question_id,omitempty"`
}

// ResumeCursor returns the last answered question id, or "" for a fresh session.
func (s Session) ResumeCursor() string {
	if s.LastQuestionID == nil {
		return ""
	}
	return *s.LastQuestionID
}

// Question is one server-issued interview question.
type Question struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"question_text" validate:"required"`
	// Audio is the synthesized prompt, base64 or data URL, opaque to the controller.
	Audio string `json:"-"`
}

// QuestionResult is the answer of the question service.
type QuestionResult struct {
	Done     bool      `json:"done"`
	Question *Question `json:"question,omitempty" validate:"required_if=Done false"`
	Audio    string    `json:"audio_base64,omitempty"`
}

// Blob is an in-memory binary artifact together with its upload name.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (b Blob) Size() int { return len(b.Data) }

// AnswerSegment is the recorded media of one candidate answer.
// It only lives between the end of recording and the upload attempt.
type AnswerSegment struct {
	SegmentID  string
	QuestionID string
	Audio      Blob
}
