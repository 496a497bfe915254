package interview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/events"
	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/media"
	"ai-interview-capture-service/internal/service/recorder"
	"ai-interview-capture-service/internal/service/segment"
	"ai-interview-capture-service/internal/service/stt"
	"ai-interview-capture-service/internal/service/transcript"
	"ai-interview-capture-service/internal/service/transcription"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("interview: controller closed")

// Backend is the recruitment backend as seen by the controller.
type Backend interface {
	ValidateSession(ctx context.Context, token string) (models.Session, error)
	NextQuestion(ctx context.Context, jobID string, lastQuestionID *string) (models.QuestionResult, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID string, audio models.Blob) error
	UploadFullVideo(ctx context.Context, sessionID string, video models.Blob) error
	UploadTranscript(ctx context.Context, sessionID string, doc models.Blob) error
	CompleteSession(ctx context.Context, sessionID string) error
}

// Capture owns the media devices.
type Capture interface {
	CheckPermissions(ctx context.Context) error
	Acquire(ctx context.Context) (*media.Stream, error)
	PlayQuestion(payload string) error
	Release()
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Backend Backend
	Capture Capture
	// STT creates recognition sessions; nil means recognition is unavailable.
	STT         stt.Factory
	STTProvider string
	// STTRequired fails the interview when recognition cannot start.
	// Otherwise answers fall back to a placeholder text.
	STTRequired        bool
	MaxRestartFailures int
	MaxSegmentBytes    int64
	MaxSessionBytes    int64
	Generator          *segment.Generator
	Publisher          *events.Publisher
	Metrics            *metrics.Metrics
}

type envelope struct {
	ev    Event
	reply chan error
}

// Controller runs one interview session. Every state change happens on a
// single loop goroutine; blocking effects run on their own goroutines and
// report back through events.
type Controller struct {
	token string
	deps  Deps
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan envelope
	quit   chan struct{}
	loop   sync.WaitGroup
	work   sync.WaitGroup
	once   sync.Once

	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}

	history   *transcript.Log
	listeners []transcription.Listener

	rmu         sync.Mutex
	stream      *media.Stream
	segments    *recorder.SegmentRecorder
	session     *recorder.SessionRecorder
	transcriber *transcription.Transcriber
}

// New creates a controller for the interview behind token.
func New(token string, deps Deps) *Controller {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Publisher == nil {
		deps.Publisher = events.New(nil)
	}
	if deps.Generator == nil {
		deps.Generator = segment.New()
	}
	if deps.STT == nil {
		deps.STT = stt.Unsupported
	}
	return &Controller{
		token:   token,
		deps:    deps,
		log:     logging.WithComponent("interview"),
		inbox:   make(chan envelope),
		quit:    make(chan struct{}),
		snap:    Snapshot{State: StateLoading},
		changed: make(chan struct{}),
		history: transcript.NewLog(),
	}
}

// Start runs the session loop and validates the token.
func (c *Controller) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.loop.Add(1)
	go c.run()
	return c.Dispatch(Begin{})
}

// OnTranscript registers a listener for live transcript updates.
// Must be called before Start.
func (c *Controller) OnTranscript(l transcription.Listener) {
	c.listeners = append(c.listeners, l)
}

// Dispatch applies ev and returns once the transition has been taken.
// Rejected events return ErrBusy or ErrInvalidTransition.
func (c *Controller) Dispatch(ev Event) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- envelope{ev: ev, reply: reply}:
	case <-c.quit:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.quit:
		return ErrClosed
	}
}

// post delivers an effect result to the loop.
func (c *Controller) post(ev Event) {
	select {
	case c.inbox <- envelope{ev: ev}:
	case <-c.quit:
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Await blocks until pred holds for the current state or ctx ends.
func (c *Controller) Await(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.RLock()
		s, changed := c.snap, c.changed
		c.mu.RUnlock()
		if pred(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-changed:
		}
	}
}

// Transcript returns the interview history recorded so far.
func (c *Controller) Transcript() []models.TranscriptEntry {
	return c.history.Entries()
}

// Close cancels the session: recorders and the recogniser are stopped and
// the devices released. Nothing is uploaded afterwards. Idempotent.
func (c *Controller) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.quit)
		c.loop.Wait()
		c.work.Wait()
		c.releaseMedia()
		c.log.Info().Str("state", string(c.Snapshot().State)).Msg("Interview controller closed")
	})
}

func (c *Controller) run() {
	defer c.loop.Done()
	for {
		select {
		case <-c.quit:
			return
		case env := <-c.inbox:
			err := c.apply(env.ev)
			if env.reply != nil {
				env.reply <- err
			}
		}
	}
}

func (c *Controller) apply(ev Event) error {
	prev := c.Snapshot()
	next, effects, err := Transition(prev, ev)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			c.deps.Metrics.RecordSubmitRejected()
		}
		c.log.Debug().Err(err).Str("event", ev.event()).Str("state", string(prev.State)).Msg("Event rejected")
		return err
	}

	c.mu.Lock()
	c.snap = next
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	if next.State != prev.State {
		c.transitioned(prev, next)
	}
	for _, eff := range effects {
		c.execute(eff)
	}
	return nil
}

func (c *Controller) transitioned(prev, next Snapshot) {
	from, to := string(prev.State), string(next.State)
	c.deps.Metrics.RecordTransition(from, to)
	switch next.State {
	case StateCompleted:
		c.deps.Metrics.RecordSessionEnd(true, "")
	case StateError:
		c.deps.Metrics.RecordSessionEnd(false, string(faults.KindOf(next.Err)))
	}

	logger := logging.WithSession(next.SessionID, next.JobID)
	evt := logger.Info()
	if next.Err != nil {
		evt = logger.Error().Err(next.Err)
	}
	evt.Str("from", from).Str("to", to).Msg("Interview state changed")

	lc := models.SessionLifecycle{
		EventType: models.EventSessionLifecycle,
		SessionID: next.SessionID,
		JobID:     next.JobID,
		From:      from,
		To:        to,
		Timestamp: time.Now().UnixMilli(),
	}
	if next.Question != nil {
		lc.QuestionID = next.Question.ID
	}
	if next.Err != nil {
		lc.Reason = next.Err.Error()
	}
	c.goWork(func() {
		key := next.SessionID
		if key == "" {
			key = c.token
		}
		if err := c.deps.Publisher.PublishLifecycle(context.Background(), key, lc); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish lifecycle event")
		}
	})
}

// goWork runs fn on a tracked goroutine.
func (c *Controller) goWork(fn func()) {
	c.work.Add(1)
	go func() {
		defer c.work.Done()
		fn()
	}()
}
