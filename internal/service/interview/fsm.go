// Package interview drives one candidate through one interview session.
//
// The session is an explicit state machine. Transition is a pure function
// from the current Snapshot and an Event to the next Snapshot and the
// Effects to run; the Controller owns the single state value, runs the
// effects and feeds their results back as events.
//
// State transitions:
//
//	LOADING ──→ PERMISSIONS ──→ GREETING ──→ QUESTIONS ──→ UPLOADING ──→ COMPLETED
//	   │                                         ▲
//	   ├──────────── resume ─────────────────────┘
//	   └──→ COMPLETED (already finished)
//
//	any non-terminal state ──→ ERROR
package interview

import (
	"errors"
	"fmt"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
)

// State is the phase of the interview.
type State string

const (
	StateLoading     State = "LOADING"
	StatePermissions State = "PERMISSIONS"
	StateGreeting    State = "GREETING"
	StateQuestions   State = "QUESTIONS"
	StateUploading   State = "UPLOADING"
	StateCompleted   State = "COMPLETED"
	StateError       State = "ERROR"
)

// IsTerminal returns true for COMPLETED and ERROR.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

var (
	// ErrBusy rejects a request while a fetch or submission is in flight.
	ErrBusy = errors.New("interview: busy")
	// ErrInvalidTransition rejects an event the current state does not accept.
	ErrInvalidTransition = errors.New("interview: invalid transition")
)

// Snapshot is the complete state of the session.
type Snapshot struct {
	State     State
	SessionID string
	JobID     string
	// Question is the question awaiting an answer.
	Question *models.Question
	// Cursor is the id of the last answered question.
	Cursor  string
	Resumed bool
	// Busy locks the candidate out between a request and its outcome.
	Busy bool
	Err  error
}

// Message returns the candidate-facing error text.
func (s Snapshot) Message() string {
	return faults.Message(s.Err)
}

// Event is an input to the state machine.
type Event interface {
	event() string
}

// Candidate actions.
type (
	Begin            struct{}
	CheckPermissions struct{}
	StartInterview   struct{}
	SubmitAnswer     struct{}
)

// Effect results.
type (
	Validated          struct{ Session models.Session }
	ValidationFailed   struct{ Err error }
	PermissionsGranted struct{}
	PermissionsDenied  struct{ Err error }
	MediaReady         struct{}
	MediaFailed        struct{ Err error }
	QuestionFetched    struct{ Result models.QuestionResult }
	FetchFailed        struct{ Err error }
	AnswerSubmitted    struct{ QuestionID string }
	Completed          struct{}
	CompletionFailed   struct{ Err error }
)

func (Begin) event() string              { return "begin" }
func (CheckPermissions) event() string   { return "check_permissions" }
func (StartInterview) event() string     { return "start_interview" }
func (SubmitAnswer) event() string       { return "submit_answer" }
func (Validated) event() string          { return "validated" }
func (ValidationFailed) event() string   { return "validation_failed" }
func (PermissionsGranted) event() string { return "permissions_granted" }
func (PermissionsDenied) event() string  { return "permissions_denied" }
func (MediaReady) event() string         { return "media_ready" }
func (MediaFailed) event() string        { return "media_failed" }
func (QuestionFetched) event() string    { return "question_fetched" }
func (FetchFailed) event() string        { return "fetch_failed" }
func (AnswerSubmitted) event() string    { return "answer_submitted" }
func (Completed) event() string          { return "completed" }
func (CompletionFailed) event() string   { return "completion_failed" }

// Effect is work requested by a transition.
type Effect interface {
	effect() string
}

type (
	// ValidateSession resolves the interview token.
	ValidateSession struct{}
	// ProbePermissions opens and releases both devices.
	ProbePermissions struct{}
	// AcquireMedia opens the devices and starts the session recorder and
	// the transcriber.
	AcquireMedia struct {
		SessionID string
		Resume    bool
	}
	// FetchQuestion asks for the question after After; nil asks for the first.
	FetchQuestion struct {
		JobID string
		After *string
	}
	// PresentQuestion records, plays and starts capturing the answer to Question.
	PresentQuestion struct{ Question models.Question }
	// CaptureAnswer flushes the answer segment and uploads it best-effort.
	CaptureAnswer struct {
		SessionID  string
		QuestionID string
	}
	// Finish flushes the session recording, renders the transcript and
	// issues the three completion calls.
	Finish struct{ SessionID string }
	// ReleaseMedia stops every recorder and releases the devices.
	ReleaseMedia struct{}
)

func (ValidateSession) effect() string  { return "validate_session" }
func (ProbePermissions) effect() string { return "probe_permissions" }
func (AcquireMedia) effect() string     { return "acquire_media" }
func (FetchQuestion) effect() string    { return "fetch_question" }
func (PresentQuestion) effect() string  { return "present_question" }
func (CaptureAnswer) effect() string    { return "capture_answer" }
func (Finish) effect() string           { return "finish" }
func (ReleaseMedia) effect() string     { return "release_media" }

// Transition computes the next snapshot and the effects to run. It never
// mutates s. A rejected event returns s unchanged with ErrBusy or
// ErrInvalidTransition.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect, error) {
	if s.State.IsTerminal() {
		return s, nil, invalid(s, ev)
	}

	// Failures end the session from any state.
	switch e := ev.(type) {
	case ValidationFailed:
		if s.State == StateLoading {
			return fail(s, e.Err)
		}
	case PermissionsDenied:
		if s.State == StatePermissions {
			return fail(s, e.Err)
		}
	case MediaFailed:
		if s.State == StateGreeting || s.State == StateQuestions {
			return fail(s, e.Err)
		}
	case FetchFailed:
		if s.State == StateQuestions {
			return fail(s, e.Err)
		}
	case CompletionFailed:
		if s.State == StateUploading {
			return fail(s, e.Err)
		}
	}

	next := s
	switch s.State {
	case StateLoading:
		switch e := ev.(type) {
		case Begin:
			if s.Busy {
				return s, nil, ErrBusy
			}
			next.Busy = true
			return next, []Effect{ValidateSession{}}, nil
		case Validated:
			next.Busy = false
			next.SessionID = e.Session.ID
			next.JobID = e.Session.JobID
			if e.Session.Status == models.StatusCompleted {
				next.State = StateCompleted
				return next, nil, nil
			}
			if cursor := e.Session.ResumeCursor(); cursor != "" {
				next.State = StateQuestions
				next.Cursor = cursor
				next.Resumed = true
				next.Busy = true
				return next, []Effect{AcquireMedia{SessionID: next.SessionID, Resume: true}}, nil
			}
			next.State = StatePermissions
			return next, nil, nil
		}

	case StatePermissions:
		switch ev.(type) {
		case CheckPermissions:
			if s.Busy {
				return s, nil, ErrBusy
			}
			next.Busy = true
			return next, []Effect{ProbePermissions{}}, nil
		case PermissionsGranted:
			next.State = StateGreeting
			next.Busy = false
			return next, nil, nil
		}

	case StateGreeting:
		switch ev.(type) {
		case StartInterview:
			if s.Busy {
				return s, nil, ErrBusy
			}
			next.Busy = true
			return next, []Effect{AcquireMedia{SessionID: s.SessionID}}, nil
		case MediaReady:
			next.State = StateQuestions
			return next, []Effect{FetchQuestion{JobID: s.JobID}}, nil
		}

	case StateQuestions:
		switch e := ev.(type) {
		case MediaReady:
			if !s.Resumed || s.Question != nil {
				break
			}
			return next, []Effect{FetchQuestion{JobID: s.JobID, After: cursorRef(s.Cursor)}}, nil
		case QuestionFetched:
			if e.Result.Done {
				next.State = StateUploading
				next.Question = nil
				next.Busy = true
				return next, []Effect{Finish{SessionID: s.SessionID}}, nil
			}
			if e.Result.Question == nil {
				return fail(s, faults.New(faults.NetworkFailure, "interview.question", errors.New("question missing")))
			}
			q := *e.Result.Question
			next.Question = &q
			next.Busy = false
			return next, []Effect{PresentQuestion{Question: q}}, nil
		case SubmitAnswer:
			if s.Busy {
				return s, nil, ErrBusy
			}
			if s.Question == nil {
				return s, nil, invalid(s, ev)
			}
			next.Busy = true
			return next, []Effect{CaptureAnswer{SessionID: s.SessionID, QuestionID: s.Question.ID}}, nil
		case AnswerSubmitted:
			next.Cursor = e.QuestionID
			next.Question = nil
			return next, []Effect{FetchQuestion{JobID: s.JobID, After: cursorRef(e.QuestionID)}}, nil
		}

	case StateUploading:
		if _, ok := ev.(Completed); ok {
			next.State = StateCompleted
			next.Busy = false
			return next, []Effect{ReleaseMedia{}}, nil
		}
	}
	return s, nil, invalid(s, ev)
}

func fail(s Snapshot, err error) (Snapshot, []Effect, error) {
	if err == nil {
		err = faults.New(faults.Internal, "interview", nil)
	}
	next := s
	next.State = StateError
	next.Busy = false
	next.Err = err
	return next, []Effect{ReleaseMedia{}}, nil
}

func invalid(s Snapshot, ev Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.event(), s.State)
}

func cursorRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
