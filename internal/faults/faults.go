// Package faults defines the error taxonomy of the interview capture pipeline.
//
// Every failure that can end a session is classified into a Kind. Components
// wrap their underlying errors with New so that the controller can decide
// between local recovery and the terminal ERROR state, and so that the
// candidate sees a human-readable message instead of a transport error.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	PermissionDenied       Kind = "PERMISSION_DENIED"
	DeviceUnavailable      Kind = "DEVICE_UNAVAILABLE"
	InvalidToken           Kind = "INVALID_TOKEN"
	ExpiredToken           Kind = "EXPIRED_TOKEN"
	NetworkFailure         Kind = "NETWORK_FAILURE"
	UploadFailure          Kind = "UPLOAD_FAILURE"
	RecognitionUnavailable Kind = "RECOGNITION_UNAVAILABLE"
	Internal               Kind = "INTERNAL"
)

// Sentinels usable with errors.Is.
var (
	ErrPermissionDenied       = &Error{Kind: PermissionDenied}
	ErrDeviceUnavailable      = &Error{Kind: DeviceUnavailable}
	ErrInvalidToken           = &Error{Kind: InvalidToken}
	ErrExpiredToken           = &Error{Kind: ExpiredToken}
	ErrNetworkFailure         = &Error{Kind: NetworkFailure}
	ErrUploadFailure          = &Error{Kind: UploadFailure}
	ErrRecognitionUnavailable = &Error{Kind: RecognitionUnavailable}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or Internal when err is not classified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Retryable reports whether reloading the interview link may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case NetworkFailure, UploadFailure, DeviceUnavailable:
		return true
	default:
		return false
	}
}

// Message returns the candidate-facing description of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case PermissionDenied:
		return "Microphone and camera access are required to take the interview."
	case DeviceUnavailable:
		return "No camera or microphone could be found. Connect a device and reload the interview link."
	case InvalidToken:
		return "Invalid interview link."
	case ExpiredToken:
		return "This interview link has expired."
	case NetworkFailure:
		return "The connection to the interview service was lost. Reload the interview link to continue where you left off."
	case UploadFailure:
		return "Failed to upload. Please contact support."
	case RecognitionUnavailable:
		return "Speech recognition is not available on this device."
	default:
		return "Something went wrong during the interview. Reload the interview link to continue."
	}
}
