// Package transcription runs continuous speech recognition over the audio
// track of the combined stream and keeps the candidate's answer text.
package transcription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/events"
	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/media"
	"ai-interview-capture-service/internal/service/stt"
)

// Placeholder is the answer text used when nothing was recognised.
const Placeholder = "(Processing speech...)"

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("transcription: already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("transcription: stopped")
)

// Snapshot is the transcript state of the current answer.
type Snapshot struct {
	Finalized string `json:"finalized"`
	Interim   string `json:"interim"`
}

// Text returns finalized and interim text joined.
func (s Snapshot) Text() string {
	return strings.TrimSpace(s.Finalized + " " + s.Interim)
}

// Listener observes every transcript update.
type Listener func(Snapshot)

// Config configures a Transcriber.
type Config struct {
	SessionID string
	// Provider labels logs and metrics.
	Provider string
	// MaxRestartFailures bounds consecutive failed restarts before recognition is given up.
	MaxRestartFailures int
	// RestartBackoff delays a retry after a failed restart.
	RestartBackoff time.Duration
	Publisher      *events.Publisher
	Metrics        *metrics.Metrics
}

// Transcriber keeps a finalized and an interim buffer for the current answer.
// Recognition sessions ended by the provider are replaced transparently
// until Stop is called.
type Transcriber struct {
	cfg     Config
	factory stt.Factory
	log     zerolog.Logger

	mu         sync.Mutex
	started    bool
	stopping   bool
	stopped    bool
	degraded   bool
	ctx        context.Context
	cancel     context.CancelFunc
	adapter    stt.Adapter
	generation int
	failures   int
	sub        *media.Subscription
	fed        chan struct{}
	finalized  string
	interim    string
	questionID string
	listeners  []Listener
}

// New creates a Transcriber that obtains recognition sessions from factory.
func New(factory stt.Factory, cfg Config) *Transcriber {
	if factory == nil {
		factory = stt.Unsupported
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.New(nil)
	}
	if cfg.MaxRestartFailures <= 0 {
		cfg.MaxRestartFailures = 3
	}
	if cfg.Provider == "" {
		cfg.Provider = "unknown"
	}
	return &Transcriber{
		cfg:     cfg,
		factory: factory,
		log:     logging.WithRecognizer(cfg.SessionID, "", cfg.Provider),
	}
}

// Subscribe registers a listener for transcript updates.
func (t *Transcriber) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Start opens a recognition session and feeds it the audio track of stream.
// A missing or failing recogniser is reported as RecognitionUnavailable.
func (t *Transcriber) Start(ctx context.Context, stream *media.Stream) error {
	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return ErrStopped
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.generation = 1
	t.log = logging.WithRecognizer(t.cfg.SessionID, stream.ID(), t.cfg.Provider)
	rctx := t.ctx
	t.mu.Unlock()

	adapter, err := t.open(rctx, 1)
	if err != nil {
		t.mu.Lock()
		t.degraded = true
		t.mu.Unlock()
		return faults.New(faults.RecognitionUnavailable, "transcription.start", err)
	}

	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		adapter.Close()
		return ErrStopped
	}
	t.adapter = adapter
	t.sub = stream.Subscribe("transcriber", true)
	t.fed = make(chan struct{})
	go t.feed(t.sub, t.fed)
	t.mu.Unlock()

	t.log.Info().Msg("Continuous transcription started")
	return nil
}

func (t *Transcriber) open(ctx context.Context, gen int) (stt.Adapter, error) {
	adapter, err := t.factory(ctx)
	if err != nil {
		return nil, err
	}
	if err := adapter.Start(ctx, &session{t: t, gen: gen}); err != nil {
		adapter.Close()
		return nil, err
	}
	return adapter, nil
}

func (t *Transcriber) feed(sub *media.Subscription, fed chan struct{}) {
	defer close(fed)
	for chunk := range sub.C() {
		if chunk.Track != media.TrackAudio {
			continue
		}
		t.mu.Lock()
		adapter, ctx := t.adapter, t.ctx
		t.mu.Unlock()
		if adapter == nil {
			continue
		}
		if err := adapter.SendAudio(ctx, chunk.Data); err != nil {
			t.log.Debug().Err(err).Msg("Audio not forwarded to recogniser")
		}
	}
}

// restart replaces the recognition session of generation gen.
func (t *Transcriber) restart(gen int, cause error) {
	t.mu.Lock()
	if t.stopping || gen != t.generation {
		t.mu.Unlock()
		return
	}
	old := t.adapter
	t.adapter = nil
	ctx := t.ctx
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}

	for {
		t.mu.Lock()
		if t.stopping || gen != t.generation {
			t.mu.Unlock()
			return
		}
		t.generation++
		next := t.generation
		t.mu.Unlock()

		adapter, err := t.open(ctx, next)
		t.cfg.Metrics.RecordRecognizerRestart(err)

		t.mu.Lock()
		if t.stopping || next != t.generation {
			t.mu.Unlock()
			if adapter != nil {
				adapter.Close()
			}
			return
		}
		if err == nil {
			t.adapter = adapter
			t.failures = 0
			t.mu.Unlock()
			t.log.Info().Int("generation", next).AnErr("cause", cause).Msg("Recognition restarted")
			return
		}
		t.failures++
		if t.failures >= t.cfg.MaxRestartFailures {
			t.degraded = true
			failures := t.failures
			t.mu.Unlock()
			t.log.Error().Err(err).Int("failures", failures).Msg("Recognition restart failed, giving up")
			return
		}
		gen = next
		t.mu.Unlock()

		t.log.Warn().Err(err).Int("generation", next).Msg("Recognition restart failed, retrying")
		if t.cfg.RestartBackoff > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.cfg.RestartBackoff):
			}
		}
	}
}

// Stop ends recognition for good. Audio already delivered to the transcriber
// is forwarded to the recogniser first, then interim text still pending is
// promoted to the finalized buffer exactly once. Calling Stop again is a no-op.
func (t *Transcriber) Stop() {
	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return
	}
	t.stopping = true
	sub, fed := t.sub, t.fed
	t.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if fed != nil {
		<-fed
	}

	t.mu.Lock()
	t.stopped = true
	promoted := t.interim
	if promoted != "" {
		t.finalized = join(t.finalized, promoted)
		t.interim = ""
	}
	adapter, cancel := t.adapter, t.cancel
	t.adapter = nil
	snap := t.snapshotLocked()
	qid := t.questionID
	t.mu.Unlock()

	if adapter != nil {
		adapter.Close()
	}
	if cancel != nil {
		cancel()
	}

	if promoted != "" {
		t.publishFinal(qid, promoted, 0)
		t.notify(snap)
	}
	t.log.Info().Msg("Continuous transcription stopped")
}

// ResetBuffers clears both buffers for a new question.
func (t *Transcriber) ResetBuffers(questionID string) {
	t.mu.Lock()
	t.finalized = ""
	t.interim = ""
	t.questionID = questionID
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// Snapshot returns the current buffers.
func (t *Transcriber) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transcriber) snapshotLocked() Snapshot {
	return Snapshot{Finalized: t.finalized, Interim: t.interim}
}

// FallbackText returns the recognised answer text, or Placeholder.
func (t *Transcriber) FallbackText() string {
	if text := t.Snapshot().Text(); text != "" {
		return text
	}
	return Placeholder
}

// Degraded reports whether recognition is unavailable.
func (t *Transcriber) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Generation returns the number of the current recognition session.
func (t *Transcriber) Generation() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *Transcriber) notify(s Snapshot) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()
	for _, l := range listeners {
		l(s)
	}
}

func (t *Transcriber) publishPartial(qid, text string) {
	ev := models.TranscriptPartial{
		EventType:  models.EventTranscriptPartial,
		SessionID:  t.cfg.SessionID,
		QuestionID: qid,
		Timestamp:  time.Now().UnixMilli(),
		Text:       text,
	}
	if err := t.cfg.Publisher.PublishPartial(context.Background(), t.cfg.SessionID, ev); err != nil {
		t.log.Warn().Err(err).Msg("Failed to publish partial transcript")
	}
}

func (t *Transcriber) publishFinal(qid, text string, confidence float64) {
	ev := models.TranscriptFinal{
		EventType:  models.EventTranscriptFinal,
		SessionID:  t.cfg.SessionID,
		QuestionID: qid,
		Timestamp:  time.Now().UnixMilli(),
		Text:       text,
		Confidence: confidence,
	}
	if err := t.cfg.Publisher.PublishFinal(context.Background(), t.cfg.SessionID, ev); err != nil {
		t.log.Warn().Err(err).Msg("Failed to publish final transcript")
	}
}

func join(a, b string) string {
	b = strings.TrimSpace(b)
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// session receives the callbacks of one recognition session.
// Callbacks from a replaced or stopped session are ignored.
type session struct {
	t   *Transcriber
	gen int
}

func (s *session) current() bool {
	return !s.t.stopped && s.gen == s.t.generation
}

func (s *session) OnPartial(text string) {
	t := s.t
	t.mu.Lock()
	if !s.current() {
		t.mu.Unlock()
		return
	}
	t.interim = text
	t.failures = 0
	snap, qid := t.snapshotLocked(), t.questionID
	t.mu.Unlock()

	t.cfg.Metrics.RecordPartialTranscript()
	t.publishPartial(qid, text)
	t.notify(snap)
}

func (s *session) OnFinal(text string, confidence float64) {
	t := s.t
	t.mu.Lock()
	if !s.current() {
		t.mu.Unlock()
		return
	}
	t.finalized = join(t.finalized, text)
	t.interim = ""
	t.failures = 0
	snap, qid := t.snapshotLocked(), t.questionID
	t.mu.Unlock()

	t.cfg.Metrics.RecordFinalTranscript()
	t.publishFinal(qid, text, confidence)
	t.notify(snap)
}

func (s *session) OnError(err error) {
	t := s.t
	t.mu.Lock()
	if !s.current() {
		t.mu.Unlock()
		return
	}
	t.failures++
	t.mu.Unlock()

	t.log.Warn().Err(err).Int("generation", s.gen).Msg("Recognition error, restarting")
	go t.restart(s.gen, err)
}

func (s *session) OnEnd() {
	t := s.t
	t.mu.Lock()
	ok := s.current()
	t.mu.Unlock()
	if !ok {
		return
	}
	t.log.Debug().Int("generation", s.gen).Msg("Recognition session ended by provider")
	go t.restart(s.gen, nil)
}
