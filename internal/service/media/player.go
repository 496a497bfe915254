package media

import (
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Player plays question audio. Its samples are pulled by the microphone
// clock and mixed into the recorded track; the speaker sink, if any,
// receives each prompt exactly once.
type Player struct {
	mu      sync.Mutex
	pending []int16
	speaker io.Writer
	played  int
	idle    chan struct{}
}

// NewPlayer creates a player. speaker may be nil.
func NewPlayer(speaker io.Writer) *Player {
	idle := make(chan struct{})
	close(idle)
	return &Player{speaker: speaker, idle: idle}
}

// Play replaces whatever is playing with pcm (mono 16-bit, microphone rate).
func (p *Player) Play(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = samples(pcm)
	p.played++
	if len(p.pending) > 0 {
		p.markBusy()
	}
	if p.speaker != nil && len(pcm) > 0 {
		if _, err := p.speaker.Write(pcm); err != nil {
			log.Warn().Err(err).Msg("Speaker write failed")
		}
	}
}

// Stop discards the rest of the current prompt.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	p.markIdle()
}

// Remaining returns the number of samples still to be mixed.
func (p *Player) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Played returns the number of prompts started.
func (p *Player) Played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

// Idle returns a channel closed once the current prompt has been mixed out.
func (p *Player) Idle() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// pull removes up to n samples; the result is shorter when the prompt ends.
func (p *Player) pull(n int) []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	if n > len(p.pending) {
		n = len(p.pending)
	}
	out := p.pending[:n]
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.markIdle()
	}
	return out
}

func (p *Player) markBusy() {
	select {
	case <-p.idle:
		p.idle = make(chan struct{})
	default:
	}
}

func (p *Player) markIdle() {
	select {
	case <-p.idle:
	default:
		close(p.idle)
	}
}

// mixFrame returns the microphone frame with question audio added.
func (p *Player) mixFrame(mic []byte) []byte {
	if p == nil {
		return mic
	}
	mixed := samples(mic)
	q := p.pull(len(mixed))
	if len(q) == 0 {
		return mic
	}
	mix(mixed, q)
	return pcmBytes(mixed)
}
