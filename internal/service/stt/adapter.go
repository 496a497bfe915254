// Package stt defines the interface for Speech-to-Text adapters.
package stt

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a Factory when no recogniser is available.
var ErrUnsupported = errors.New("stt: speech recognition not supported")

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim/partial transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called when an error occurs during transcription.
	OnError(err error)

	// OnEnd is called when the provider ends the session on its own,
	// e.g. after a silence window or the maximum stream duration.
	OnEnd()
}

// Adapter defines the interface for STT providers (Google, mock, ...).
// An adapter serves one recognition session; a restart needs a new one.
type Adapter interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Factory creates a fresh adapter for every recognition session.
type Factory func(ctx context.Context) (Adapter, error)

// Unsupported is the Factory used when recognition is disabled.
func Unsupported(context.Context) (Adapter, error) {
	return nil, ErrUnsupported
}
