package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/media"
	"ai-interview-capture-service/internal/service/segment"
)

const segmentContentType = "audio/wav"

// SegmentConfig configures a SegmentRecorder.
type SegmentConfig struct {
	SessionID string
	// MaxBytes caps the PCM kept per segment; zero is unlimited.
	MaxBytes  int64
	Generator *segment.Generator
	Metrics   *metrics.Metrics
}

// SegmentRecorder records one answer at a time from the audio track.
// At most one capture is active; Begin abandons any capture not yet delivered.
type SegmentRecorder struct {
	cfg SegmentConfig

	mu  sync.Mutex
	cur *segmentCapture
}

type segmentCapture struct {
	lifecycle  *segment.Lifecycle
	questionID string
	format     media.AudioFormat
	sub        *media.Subscription
	drained    chan struct{}
	pending    *Pending
	log        zerolog.Logger

	buf      bytes.Buffer
	overflow bool
}

// NewSegmentRecorder creates a recorder.
func NewSegmentRecorder(cfg SegmentConfig) *SegmentRecorder {
	if cfg.Generator == nil {
		cfg.Generator = segment.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	return &SegmentRecorder{cfg: cfg}
}

// Begin starts capturing the answer to questionID and returns the segment ID.
func (r *SegmentRecorder) Begin(stream *media.Stream, questionID string) string {
	id := r.cfg.Generator.Next(r.cfg.SessionID)
	c := &segmentCapture{
		lifecycle:  segment.NewLifecycle(id),
		questionID: questionID,
		format:     stream.AudioFormat(),
		drained:    make(chan struct{}),
		log:        logging.WithSegment(r.cfg.SessionID, questionID, id),
	}

	c.sub = stream.Subscribe("segment:"+id, true)
	go r.run(c)

	r.mu.Lock()
	prev := r.cur
	r.cur = c
	r.mu.Unlock()

	if prev != nil {
		r.discard(prev, "superseded by "+id)
	}

	r.cfg.Metrics.RecordSegmentCreated()
	c.log.Debug().Str("streamId", stream.ID()).Msg("Segment recording started")
	return id
}

func (r *SegmentRecorder) run(c *segmentCapture) {
	defer close(c.drained)
	for chunk := range c.sub.C() {
		if chunk.Track != media.TrackAudio || !c.lifecycle.CanAccept() {
			continue
		}
		if r.cfg.MaxBytes > 0 && int64(c.buf.Len()+len(chunk.Data)) > r.cfg.MaxBytes {
			if !c.overflow {
				c.overflow = true
				r.cfg.Metrics.RecordLimitExceeded("segment")
				c.log.Warn().Int64("maxBytes", r.cfg.MaxBytes).Msg("Segment byte limit exceeded, truncating")
			}
			continue
		}
		c.buf.Write(chunk.Data)
		r.cfg.Metrics.RecordRecorded("segment", len(chunk.Data))
	}
}

// End stops the current capture. The returned Pending resolves with a WAV
// blob of every chunk delivered before End; with no chunks the blob is a
// valid empty WAV file. If a later Begin discards the capture first, the
// Pending fails with ErrDiscarded.
func (r *SegmentRecorder) End() *Pending {
	r.mu.Lock()
	c := r.cur
	r.mu.Unlock()
	if c == nil {
		return failed("", ErrNotStarted)
	}

	id := c.lifecycle.SegmentId()
	if err := c.lifecycle.BeginFlush(); err != nil {
		r.mu.Lock()
		p := c.pending
		r.mu.Unlock()
		if p != nil {
			return p
		}
		return failed(id, mapLifecycleErr(err))
	}

	p := newPending(id)
	r.mu.Lock()
	c.pending = p
	r.mu.Unlock()

	c.sub.Close()
	go func() {
		<-c.drained
		if err := c.lifecycle.Deliver(); err != nil {
			p.resolve(models.Blob{}, mapLifecycleErr(err))
			return
		}
		blob := models.Blob{
			Name:        fmt.Sprintf("answer-%s.wav", c.questionID),
			ContentType: segmentContentType,
			Data:        media.EncodeWAV(c.buf.Bytes(), c.format),
		}
		r.cfg.Metrics.RecordSegmentDelivered(blob.Size())
		c.log.Info().Int("bytes", blob.Size()).Bool("truncated", c.overflow).Msg("Segment delivered")
		p.resolve(blob, nil)
	}()
	return p
}

// Discard abandons the current capture, if any.
func (r *SegmentRecorder) Discard() {
	r.mu.Lock()
	c := r.cur
	r.cur = nil
	r.mu.Unlock()
	if c != nil {
		r.discard(c, "discarded")
	}
}

func (r *SegmentRecorder) discard(c *segmentCapture, reason string) {
	if c.lifecycle.Discard() {
		r.cfg.Metrics.RecordSegmentDiscarded()
		c.log.Info().Str("reason", reason).Msg("Segment discarded")
	}
	if c.sub != nil {
		c.sub.Close()
	}
}

// Active returns the ID of the capture in progress, or "".
func (r *SegmentRecorder) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.cur.lifecycle.State() != segment.StateRecording {
		return ""
	}
	return r.cur.lifecycle.SegmentId()
}

func mapLifecycleErr(err error) error {
	if errors.Is(err, segment.ErrSegmentDiscarded) {
		return ErrDiscarded
	}
	return err
}
