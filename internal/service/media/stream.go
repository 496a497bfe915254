// Package media owns the capture devices and exposes them as one combined
// stream: a video track and a microphone track with question audio mixed in.
package media

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-interview-capture-service/internal/observability/metrics"
)

// Track identifies the kind of media in a chunk.
type Track string

const (
	TrackAudio Track = "audio"
	TrackVideo Track = "video"
)

// AudioFormat describes the PCM layout of the audio track.
type AudioFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BytesPerSecond returns the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Chunk is one timeslice of one track.
type Chunk struct {
	Track Track
	Seq   int64
	// At is the offset from the start of the stream.
	At   time.Duration
	Data []byte
}

const subscriptionBuffer = 256

// Stream is the combined media stream. Its identity is fixed for its
// lifetime; consumers only read from it.
type Stream struct {
	id     string
	format AudioFormat
	start  time.Time

	mu       sync.RWMutex
	subs     []*Subscription
	released bool
	done     chan struct{}
	halted   sync.Once

	metrics *metrics.Metrics
}

func newStream(format AudioFormat, m *metrics.Metrics) *Stream {
	return &Stream{
		id:      uuid.NewString(),
		format:  format,
		start:   time.Now(),
		done:    make(chan struct{}),
		metrics: m,
	}
}

// NewStream creates a free-standing stream fed through Broadcast.
func NewStream(format AudioFormat) *Stream {
	return newStream(format, metrics.DefaultMetrics)
}

// ID returns the stable identity of the stream.
func (s *Stream) ID() string { return s.id }

// AudioFormat returns the format of the audio track.
func (s *Stream) AudioFormat() AudioFormat { return s.format }

// Done is closed when the stream is released.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Released reports whether the stream has been released.
func (s *Stream) Released() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Subscription is one consumer's view of the stream.
type Subscription struct {
	name     string
	lossless bool
	ch       chan Chunk
	done     chan struct{}
	once     sync.Once
	stream   *Stream
}

// C delivers the chunks. It is closed once the subscription is closed or
// the stream released, after every chunk already delivered has been queued.
func (sub *Subscription) C() <-chan Chunk { return sub.ch }

// Close stops delivery. Chunks already queued remain readable from C.
func (sub *Subscription) Close() {
	sub.once.Do(func() { close(sub.done) })
	sub.stream.remove(sub)
}

func (sub *Subscription) deliver(c Chunk, stop <-chan struct{}, m *metrics.Metrics) {
	if sub.lossless {
		select {
		case sub.ch <- c:
		case <-sub.done:
		case <-stop:
		}
		return
	}
	select {
	case sub.ch <- c:
	case <-sub.done:
	case <-stop:
	default:
		m.RecordChunkDropped(string(c.Track))
	}
}

// Subscribe registers a consumer. Lossless subscribers apply backpressure to
// the capture pumps; lossy ones (previews) drop chunks they cannot keep up with.
// Subscribing to a released stream returns an already closed subscription.
func (s *Stream) Subscribe(name string, lossless bool) *Subscription {
	sub := &Subscription{
		name:     name,
		lossless: lossless,
		ch:       make(chan Chunk, subscriptionBuffer),
		done:     make(chan struct{}),
		stream:   s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		sub.once.Do(func() { close(sub.done) })
		close(sub.ch)
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

// Broadcast delivers c to every subscriber.
func (s *Stream) Broadcast(c Chunk) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released || s.Released() {
		return
	}
	if c.At == 0 {
		c.At = time.Since(s.start)
	}
	for _, sub := range s.subs {
		sub.deliver(c, s.done, s.metrics)
	}
}

func (s *Stream) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.subs {
		if x == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// halt makes Broadcast a no-op and unblocks pending deliveries.
func (s *Stream) halt() {
	s.halted.Do(func() { close(s.done) })
}

// release closes every subscription.
func (s *Stream) release() {
	s.halt()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	for _, sub := range s.subs {
		sub.once.Do(func() { close(sub.done) })
		close(sub.ch)
	}
	s.subs = nil
}

// Release closes a free-standing stream. Streams from a Manager are released
// through the Manager.
func (s *Stream) Release() {
	s.release()
}
