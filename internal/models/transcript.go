package models

// Role identifies who spoke a transcript entry.
type Role string

const (
	RoleAI        Role = "AI"
	RoleCandidate Role = "Candidate"
)

// Label returns the heading printed above the entry.
func (r Role) Label() string {
	if r == RoleAI {
		return "AI Interviewer"
	}
	return "Candidate"
}

// TranscriptEntry is one line of the interview history.
type TranscriptEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// TranscriptPartial represents an interim transcript result.
type TranscriptPartial struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Text       string `json:"text"`
}

// TranscriptFinal represents finalized transcript text with confidence score.
type TranscriptFinal struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	QuestionID string  `json:"questionId,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// SessionLifecycle is published on every controller state change.
type SessionLifecycle struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId,omitempty"`
	JobID      string `json:"jobId,omitempty"`
	From       string `json:"from"`
	To         string `json:"to"`
	QuestionID string `json:"questionId,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

const (
	EventTranscriptPartial = "interview.transcript.partial"
	EventTranscriptFinal   = "interview.transcript.final"
	EventSessionLifecycle  = "interview.session.lifecycle"
)
