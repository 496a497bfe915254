// Package mock provides a scripted STT adapter for tests and demos without
// cloud credentials. Every audio frame advances the script by one step:
// the partials of the current utterance, then its final.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-interview-capture-service/internal/service/stt"
)

// ErrClosed is returned by SendAudio after Close.
var ErrClosed = errors.New("mock stt: adapter closed")

// Utterance represents a mock utterance with progressive transcripts.
type Utterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample candidate answers for simulation.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"I have", "I have five years", "I have five years of experience"},
		Final:      "I have five years of experience building backend services",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"In my last", "In my last role I"},
		Final:      "In my last role I led the migration to Kubernetes",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"I would", "I would start by"},
		Final:      "I would start by measuring where the latency comes from",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you for the opportunity",
		Confidence: 0.98,
	},
}

// Config scripts the behaviour of an adapter.
type Config struct {
	Utterances []Utterance
	// Delay defers every callback by this amount; zero emits synchronously
	// from SendAudio, which keeps tests deterministic.
	Delay time.Duration
	// EndAfter ends the session (OnEnd) after this many finals; zero never ends.
	EndAfter int
	// StartErr makes Start fail.
	StartErr error
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	cfg Config

	mu            sync.Mutex
	cb            stt.Callback
	audioReceived int
	utterance     int // index into cfg.Utterances
	partialIndex  int // next partial to send
	finals        int
	ended         bool
	closed        bool
}

// utteranceCounter rotates the default script between adapters.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates an adapter that starts at the next default utterance.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	utts := append([]Utterance{}, DefaultUtterances[idx:]...)
	utts = append(utts, DefaultUtterances[:idx]...)
	return NewWithConfig(Config{Utterances: utts})
}

// NewWithConfig creates a scripted adapter.
func NewWithConfig(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// Factory returns an stt.Factory producing adapters for cfg.
// A nil script rotates through DefaultUtterances.
func Factory(cfg Config) stt.Factory {
	return func(ctx context.Context) (stt.Adapter, error) {
		if len(cfg.Utterances) == 0 {
			a := New()
			a.cfg.Delay = cfg.Delay
			a.cfg.EndAfter = cfg.EndAfter
			return a, nil
		}
		return NewWithConfig(cfg), nil
	}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	if a.cfg.StartErr != nil {
		return a.cfg.StartErr
	}
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()
	return nil
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.cb == nil || a.ended || a.utterance >= len(a.cfg.Utterances) {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++

	cb := a.cb
	utt := a.cfg.Utterances[a.utterance]
	var emit func()
	if a.partialIndex < len(utt.Partials) {
		text := utt.Partials[a.partialIndex]
		a.partialIndex++
		emit = func() { cb.OnPartial(text) }
	} else {
		a.utterance++
		a.partialIndex = 0
		a.finals++
		end := a.cfg.EndAfter > 0 && a.finals >= a.cfg.EndAfter
		a.ended = end
		emit = func() {
			cb.OnFinal(utt.Final, utt.Confidence)
			if end {
				cb.OnEnd()
			}
		}
	}
	a.mu.Unlock()

	a.dispatch(emit)
	return nil
}

// dispatch runs fn outside the lock, optionally after the configured delay.
func (a *Adapter) dispatch(fn func()) {
	if a.cfg.Delay <= 0 {
		fn()
		return
	}
	go func() {
		time.Sleep(a.cfg.Delay)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			fn()
		}
	}()
}

// Close ends the mock session. Pending interim text is not finalized.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// AudioReceived returns the number of frames sent so far.
func (a *Adapter) AudioReceived() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audioReceived
}
