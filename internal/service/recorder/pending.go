// Package recorder captures answer segments and the full session span from
// the combined media stream. Stopping a recorder returns a Pending that
// resolves only once every chunk already delivered to it has been drained.
package recorder

import (
	"context"
	"errors"

	"ai-interview-capture-service/internal/models"
)

var (
	// ErrDiscarded is returned for a capture abandoned before delivery.
	ErrDiscarded = errors.New("recorder: capture discarded")
	// ErrNotStarted is returned by End without a preceding Begin.
	ErrNotStarted = errors.New("recorder: not started")
	// ErrAlreadyStarted is returned by a second SessionRecorder.Begin.
	ErrAlreadyStarted = errors.New("recorder: already started")
)

// Pending is the deferred result of End.
type Pending struct {
	// ID identifies the capture (the segment ID for answer segments).
	ID string

	done chan struct{}
	blob models.Blob
	err  error
}

func newPending(id string) *Pending {
	return &Pending{ID: id, done: make(chan struct{})}
}

func failed(id string, err error) *Pending {
	p := newPending(id)
	p.resolve(models.Blob{}, err)
	return p
}

func (p *Pending) resolve(blob models.Blob, err error) {
	p.blob, p.err = blob, err
	close(p.done)
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Resolved reports whether the result is available.
func (p *Pending) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the capture is flushed or ctx ends.
func (p *Pending) Wait(ctx context.Context) (models.Blob, error) {
	select {
	case <-ctx.Done():
		return models.Blob{}, ctx.Err()
	case <-p.done:
		return p.blob, p.err
	}
}
