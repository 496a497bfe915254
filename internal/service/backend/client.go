// Package backend is the HTTP client of the recruitment backend: session
// validation, the question service and the upload endpoints.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/schema"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout of zero disables client-side timeouts.
	Timeout time.Duration
	// Principal is sent as the X-Service-Principal header.
	Principal string
	Metrics   *metrics.Metrics
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the interview endpoints of the backend.
type Client struct {
	http      *resty.Client
	validator *schema.Validator
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// apiError is the error body of the backend.
type apiError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (e *apiError) message() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}

// ack is the body of the upload endpoints.
type ack struct {
	Success *bool  `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// New creates a client.
func New(cfg Config) *Client {
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	rc := resty.New()
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Principal != "" {
		rc.SetHeader("X-Service-Principal", cfg.Principal)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{
		http:      rc,
		validator: schema.New(),
		metrics:   m,
		log:       logging.WithComponent("backend"),
	}
}

// ValidateSession resolves an interview link token to its session.
func (c *Client) ValidateSession(ctx context.Context, token string) (models.Session, error) {
	const op = "validate"
	var s models.Session
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetResult(&s).
		SetError(&apiErr).
		Get("/interview/validate/{token}")
	if err != nil {
		return models.Session{}, c.fail(op, faults.NetworkFailure, start, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return models.Session{}, c.fail(op, faults.InvalidToken, start, errors.New(orDefault(apiErr.message(), "invalid interview link")))
	case code == http.StatusGone:
		return models.Session{}, c.fail(op, faults.ExpiredToken, start, errors.New(orDefault(apiErr.message(), "interview link expired")))
	case code == http.StatusBadRequest, code == http.StatusUnauthorized, code == http.StatusForbidden:
		return models.Session{}, c.fail(op, faults.InvalidToken, start, httpError(resp, &apiErr))
	case resp.IsError():
		return models.Session{}, c.fail(op, faults.NetworkFailure, start, httpError(resp, &apiErr))
	}

	status, err := models.ParseSessionStatus(string(s.Status))
	if err != nil {
		c.log.Warn().Err(err).Str("sessionId", s.ID).Msg("Unknown session status, treating session as not started")
		status = models.StatusNotStarted
	}
	s.Status = status
	// A completed session only shows the completed view; nothing else is read.
	if status == models.StatusCompleted {
		c.ok(op, start)
		return s, nil
	}
	if err := c.validator.Validate(s); err != nil {
		return models.Session{}, c.fail(op, faults.Internal, start, err)
	}
	c.ok(op, start)
	return s, nil
}

func (c *Client) fail(op string, kind faults.Kind, start time.Time, err error) error {
	if isTimeout(err) {
		err = fmt.Errorf("request timed out: %w", err)
	}
	c.metrics.RecordBackendCall(op, string(kind), time.Since(start).Seconds())
	c.log.Warn().Err(err).Str("op", op).Str("kind", string(kind)).Msg("Backend call failed")
	return faults.New(kind, "backend."+op, err)
}

func (c *Client) ok(op string, start time.Time) {
	c.metrics.RecordBackendCall(op, "", time.Since(start).Seconds())
}

type questionRequest struct {
	JobID          string  `json:"job_id"`
	LastQuestionID *string `json:"last_question_id"`
}

// NextQuestion asks for the question after lastQuestionID; nil asks for the first.
func (c *Client) NextQuestion(ctx context.Context, jobID string, lastQuestionID *string) (models.QuestionResult, error) {
	const op = "question"
	var res models.QuestionResult
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(questionRequest{JobID: jobID, LastQuestionID: lastQuestionID}).
		SetResult(&res).
		SetError(&apiErr).
		Post("/interview/question")
	if err != nil {
		return models.QuestionResult{}, c.fail(op, faults.NetworkFailure, start, err)
	}
	if resp.IsError() {
		return models.QuestionResult{}, c.fail(op, faults.NetworkFailure, start, httpError(resp, &apiErr))
	}
	if err := c.validator.Validate(res); err != nil {
		return models.QuestionResult{}, c.fail(op, faults.NetworkFailure, start, err)
	}
	if res.Question != nil {
		res.Question.Audio = res.Audio
	}
	c.ok(op, start)
	return res, nil
}

// SubmitAnswer uploads the recording of one answer.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, audio models.Blob) error {
	return c.upload(ctx, "answer", faults.NetworkFailure, "/interview/answer",
		map[string]string{"session_id": sessionID, "question_id": questionID},
		"audio_chunk", audio)
}

// UploadFullVideo uploads the whole session recording.
func (c *Client) UploadFullVideo(ctx context.Context, sessionID string, video models.Blob) error {
	return c.upload(ctx, "upload_video", faults.UploadFailure, "/interview/upload-full-video",
		map[string]string{"session_id": sessionID}, "video", video)
}

// UploadTranscript uploads the transcript document.
func (c *Client) UploadTranscript(ctx context.Context, sessionID string, doc models.Blob) error {
	return c.upload(ctx, "upload_transcript", faults.UploadFailure, "/interview/upload-transcript",
		map[string]string{"session_id": sessionID}, "file", doc)
}

// CompleteSession marks the session finished. Grading errors reported in
// the body do not fail the call; the session is completed regardless.
func (c *Client) CompleteSession(ctx context.Context, sessionID string) error {
	const op = "complete"
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"session_id": sessionID}).
		SetError(&apiErr).
		Post("/interview/complete")
	if err != nil {
		return c.fail(op, faults.UploadFailure, start, err)
	}
	if resp.IsError() {
		return c.fail(op, faults.UploadFailure, start, httpError(resp, &apiErr))
	}
	c.ok(op, start)
	return nil
}

func (c *Client) upload(ctx context.Context, op string, kind faults.Kind, path string, fields map[string]string, field string, blob models.Blob) error {
	var body ack
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(fields).
		SetMultipartField(field, blob.Name, orDefault(blob.ContentType, "application/octet-stream"), bytes.NewReader(blob.Data)).
		SetResult(&body).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return c.fail(op, kind, start, err)
	}
	if resp.IsError() {
		return c.fail(op, kind, start, httpError(resp, &apiErr))
	}
	if body.Success != nil && !*body.Success {
		return c.fail(op, kind, start, fmt.Errorf("%s rejected: %s", path, orDefault(body.Error, "success=false")))
	}
	c.ok(op, start)
	c.log.Debug().Str("op", op).Int("bytes", blob.Size()).Str("url", body.URL).Msg("Upload acknowledged")
	return nil
}

func httpError(resp *resty.Response, apiErr *apiError) error {
	if msg := apiErr.message(); msg != "" {
		return fmt.Errorf("%s %s: %d: %s", resp.Request.Method, resp.Request.URL, resp.StatusCode(), msg)
	}
	return fmt.Errorf("%s %s: %d", resp.Request.Method, resp.Request.URL, resp.StatusCode())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
