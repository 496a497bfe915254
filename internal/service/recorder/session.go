package recorder

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/media"
)

// ErrAborted resolves the Pending of a session recording cancelled by Abort.
var ErrAborted = errors.New("recorder: session recording aborted")

// SessionConfig configures a SessionRecorder.
type SessionConfig struct {
	SessionID string
	// MaxBytes caps the container size; zero is unlimited.
	MaxBytes int64
	Metrics  *metrics.Metrics
}

// SessionRecorder records both tracks for the whole interview span.
// It is begun once and ended once, independently of answer segments.
type SessionRecorder struct {
	cfg SessionConfig
	log zerolog.Logger

	mu      sync.Mutex
	started bool
	aborted bool
	sub     *media.Subscription
	drained chan struct{}
	pending *Pending

	data     []byte
	overflow bool
}

// NewSessionRecorder creates a recorder.
func NewSessionRecorder(cfg SessionConfig) *SessionRecorder {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	return &SessionRecorder{
		cfg: cfg,
		log: logging.WithSession(cfg.SessionID, "").With().Str("recorder", "session").Logger(),
	}
}

// Begin starts recording stream. It fails if the recorder was already begun.
func (r *SessionRecorder) Begin(stream *media.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.data = appendHeader(nil, stream.AudioFormat())
	r.drained = make(chan struct{})
	r.sub = stream.Subscribe("session", true)
	go r.run(r.sub, r.drained)

	r.log.Info().Str("streamId", stream.ID()).Msg("Session recording started")
	return nil
}

func (r *SessionRecorder) run(sub *media.Subscription, drained chan struct{}) {
	defer close(drained)
	for chunk := range sub.C() {
		if r.cfg.MaxBytes > 0 && int64(len(r.data)+recordSize(chunk)) > r.cfg.MaxBytes {
			if !r.overflow {
				r.overflow = true
				r.cfg.Metrics.RecordLimitExceeded("session")
				r.log.Warn().Int64("maxBytes", r.cfg.MaxBytes).Msg("Session recording byte limit exceeded, truncating")
			}
			continue
		}
		r.data = appendRecord(r.data, chunk)
		r.cfg.Metrics.RecordRecorded("session", len(chunk.Data))
	}
}

// End stops recording. The Pending resolves with the whole container once
// every chunk delivered before End has been appended. Calling End again
// returns the same Pending.
func (r *SessionRecorder) End() *Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return failed("", ErrNotStarted)
	}
	if r.pending != nil {
		return r.pending
	}

	p := newPending(r.cfg.SessionID)
	r.pending = p
	r.sub.Close()
	drained := r.drained
	go func() {
		<-drained
		r.mu.Lock()
		aborted := r.aborted
		r.mu.Unlock()
		if aborted {
			p.resolve(models.Blob{}, ErrAborted)
			return
		}
		blob := models.Blob{
			Name:        "interview-recording.irec",
			ContentType: SessionContentType,
			Data:        r.data,
		}
		r.log.Info().Int("bytes", blob.Size()).Bool("truncated", r.overflow).Msg("Session recording flushed")
		p.resolve(blob, nil)
	}()
	return p
}

// Abort stops recording and drops the data. A pending End fails with
// ErrAborted. Abort after the recording flushed is a no-op.
func (r *SessionRecorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.aborted || (r.pending != nil && r.pending.Resolved()) {
		return
	}
	r.aborted = true
	r.sub.Close()
	r.log.Info().Msg("Session recording aborted")
}
