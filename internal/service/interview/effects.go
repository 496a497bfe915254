package interview

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/service/media"
	"ai-interview-capture-service/internal/service/recorder"
	"ai-interview-capture-service/internal/service/transcript"
	"ai-interview-capture-service/internal/service/transcription"
)

// execute runs one effect. It is called on the loop goroutine; anything
// that blocks runs on a tracked goroutine and reports back with post.
func (c *Controller) execute(eff Effect) {
	switch e := eff.(type) {
	case ValidateSession:
		c.goWork(c.validate)
	case ProbePermissions:
		c.goWork(c.probe)
	case AcquireMedia:
		c.acquire(e)
	case FetchQuestion:
		c.goWork(func() { c.fetch(e) })
	case PresentQuestion:
		c.present(e.Question)
	case CaptureAnswer:
		c.capture(e)
	case Finish:
		c.finish(e.SessionID)
	case ReleaseMedia:
		c.releaseMedia()
	default:
		c.log.Error().Str("effect", eff.effect()).Msg("Unknown effect")
	}
}

func (c *Controller) validate() {
	s, err := c.deps.Backend.ValidateSession(c.ctx, c.token)
	if err != nil {
		c.post(ValidationFailed{Err: err})
		return
	}
	c.post(Validated{Session: s})
}

func (c *Controller) probe() {
	if err := c.deps.Capture.CheckPermissions(c.ctx); err != nil {
		c.post(PermissionsDenied{Err: err})
		return
	}
	c.post(PermissionsGranted{})
}

// acquire builds the recorders and the transcriber for the session and
// opens the devices in the background.
func (c *Controller) acquire(e AcquireMedia) {
	segments := recorder.NewSegmentRecorder(recorder.SegmentConfig{
		SessionID: e.SessionID,
		MaxBytes:  c.deps.MaxSegmentBytes,
		Generator: c.deps.Generator,
		Metrics:   c.deps.Metrics,
	})
	session := recorder.NewSessionRecorder(recorder.SessionConfig{
		SessionID: e.SessionID,
		MaxBytes:  c.deps.MaxSessionBytes,
		Metrics:   c.deps.Metrics,
	})
	tr := transcription.New(c.deps.STT, transcription.Config{
		SessionID:          e.SessionID,
		Provider:           c.deps.STTProvider,
		MaxRestartFailures: c.deps.MaxRestartFailures,
		Publisher:          c.deps.Publisher,
		Metrics:            c.deps.Metrics,
	})
	for _, l := range c.listeners {
		tr.Subscribe(l)
	}

	c.rmu.Lock()
	c.segments, c.session, c.transcriber = segments, session, tr
	c.rmu.Unlock()

	c.goWork(func() {
		stream, err := c.deps.Capture.Acquire(c.ctx)
		if err != nil {
			c.post(MediaFailed{Err: err})
			return
		}
		c.rmu.Lock()
		c.stream = stream
		c.rmu.Unlock()

		if err := session.Begin(stream); err != nil {
			c.post(MediaFailed{Err: faults.New(faults.Internal, "interview.record", err)})
			return
		}
		if err := tr.Start(c.ctx, stream); err != nil {
			if c.deps.STTRequired {
				c.post(MediaFailed{Err: err})
				return
			}
			c.log.Warn().Err(err).Str("sessionId", e.SessionID).Msg("Speech recognition unavailable, answers fall back to placeholder text")
		}
		c.deps.Metrics.RecordSessionStarted(e.Resume)
		c.post(MediaReady{})
	})
}

func (c *Controller) fetch(e FetchQuestion) {
	res, err := c.deps.Backend.NextQuestion(c.ctx, e.JobID, e.After)
	if err != nil {
		c.post(FetchFailed{Err: err})
		return
	}
	c.post(QuestionFetched{Result: res})
}

// present records the question, plays it and starts capturing the answer.
func (c *Controller) present(q models.Question) {
	c.history.Append(models.RoleAI, q.Text)

	c.rmu.Lock()
	stream, segments, tr := c.stream, c.segments, c.transcriber
	c.rmu.Unlock()

	tr.ResetBuffers(q.ID)
	if err := c.deps.Capture.PlayQuestion(q.Audio); err != nil {
		c.log.Warn().Err(err).Str("questionId", q.ID).Msg("Question audio could not be played")
	}
	segments.Begin(stream, q.ID)
	c.deps.Metrics.RecordQuestionPresented()
}

// capture closes the answer. The transcript entry is recorded immediately;
// the audio upload is best-effort and never blocks the next question.
func (c *Controller) capture(e CaptureAnswer) {
	c.rmu.Lock()
	segments, tr := c.segments, c.transcriber
	c.rmu.Unlock()

	pending := segments.End()
	c.history.Append(models.RoleCandidate, tr.FallbackText())

	c.goWork(func() {
		blob, err := pending.Wait(c.ctx)
		if err == nil {
			err = c.deps.Backend.SubmitAnswer(c.ctx, e.SessionID, e.QuestionID, blob)
		}
		c.deps.Metrics.RecordAnswerSubmitted(err)
		if err != nil {
			c.log.Warn().Err(err).Str("sessionId", e.SessionID).Str("questionId", e.QuestionID).Msg("Answer upload failed, continuing")
		}
		c.post(AnswerSubmitted{QuestionID: e.QuestionID})
	})
}

// finish flushes the session recording, renders the transcript and sends
// the three completion calls concurrently. Any failure fails the session.
func (c *Controller) finish(sessionID string) {
	c.rmu.Lock()
	session, tr := c.session, c.transcriber
	c.rmu.Unlock()

	pending := session.End()
	tr.Stop()
	entries := c.history.Entries()

	c.goWork(func() {
		video, err := pending.Wait(c.ctx)
		c.deps.Capture.Release()
		if err != nil {
			c.post(CompletionFailed{Err: faults.New(faults.UploadFailure, "interview.recording", err)})
			return
		}
		doc, err := transcript.Render(entries)
		if err != nil {
			c.post(CompletionFailed{Err: faults.New(faults.UploadFailure, "interview.transcript", err)})
			return
		}

		var g errgroup.Group
		g.Go(func() error {
			err := c.deps.Backend.UploadFullVideo(c.ctx, sessionID, video)
			c.deps.Metrics.RecordCompletionUpload("video", err)
			return err
		})
		g.Go(func() error {
			err := c.deps.Backend.UploadTranscript(c.ctx, sessionID, doc)
			c.deps.Metrics.RecordCompletionUpload("transcript", err)
			return err
		})
		g.Go(func() error {
			err := c.deps.Backend.CompleteSession(c.ctx, sessionID)
			c.deps.Metrics.RecordCompletionUpload("complete", err)
			return err
		})
		if err := g.Wait(); err != nil {
			var fe *faults.Error
			if !errors.As(err, &fe) {
				err = faults.New(faults.UploadFailure, "interview.complete", err)
			}
			c.post(CompletionFailed{Err: fmt.Errorf("completing session %s: %w", sessionID, err)})
			return
		}
		c.post(Completed{})
	})
}

// releaseMedia stops every consumer and releases the devices. Idempotent.
func (c *Controller) releaseMedia() {
	c.rmu.Lock()
	segments, session, tr := c.segments, c.session, c.transcriber
	c.stream = nil
	c.rmu.Unlock()

	if segments != nil {
		segments.Discard()
	}
	if session != nil {
		session.Abort()
	}
	if tr != nil {
		tr.Stop()
	}
	c.deps.Capture.Release()
}

// Stream returns the live media stream, or nil.
func (c *Controller) Stream() *media.Stream {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	return c.stream
}

// Live returns the transcript of the answer in progress.
func (c *Controller) Live() transcription.Snapshot {
	c.rmu.Lock()
	tr := c.transcriber
	c.rmu.Unlock()
	if tr == nil {
		return transcription.Snapshot{}
	}
	return tr.Snapshot()
}

// Document renders the transcript of the session so far.
func (c *Controller) Document() (models.Blob, error) {
	return transcript.Render(c.history.Entries())
}
