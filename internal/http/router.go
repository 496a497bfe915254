// Package http is the local control surface of the agent: the candidate's
// browser drives the interview and follows the live subtitles through it.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-interview-capture-service/internal/app"
	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/service/interview"
	"ai-interview-capture-service/internal/service/transcription"
)

// Interview is the session the router controls.
type Interview interface {
	Snapshot() interview.Snapshot
	Dispatch(ev interview.Event) error
	Live() transcription.Snapshot
	Document() (models.Blob, error)
}

// NewRouter constructs the HTTP router for the agent. The hub is
// subscribed to the session's transcript; call it before starting the session.
func NewRouter(application *app.Application, hub *Hub) http.Handler {
	application.Interview.OnTranscript(hub.Publish)
	return newRouter(application.Interview, hub)
}

func newRouter(iv Interview, hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{iv: iv}
	r.Route("/v1/interview", func(r chi.Router) {
		r.Get("/", h.state)
		r.Post("/permissions", h.dispatch(interview.CheckPermissions{}))
		r.Post("/start", h.dispatch(interview.StartInterview{}))
		r.Post("/answer", h.dispatch(interview.SubmitAnswer{}))
		r.Get("/transcript.pdf", h.transcript)
		r.Get("/subtitles", hub.serveWS)
	})

	return r
}

type handlers struct {
	iv Interview
}

type questionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type errorView struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type liveView struct {
	Finalized string `json:"finalized"`
	Interim   string `json:"interim"`
}

type stateView struct {
	State     string        `json:"state"`
	SessionID string        `json:"sessionId,omitempty"`
	JobID     string        `json:"jobId,omitempty"`
	Question  *questionView `json:"question,omitempty"`
	Busy      bool          `json:"busy"`
	Resumed   bool          `json:"resumed"`
	Error     *errorView    `json:"error,omitempty"`
	Live      *liveView     `json:"live,omitempty"`
}

func (h *handlers) view() stateView {
	s := h.iv.Snapshot()
	v := stateView{
		State:     string(s.State),
		SessionID: s.SessionID,
		JobID:     s.JobID,
		Busy:      s.Busy,
		Resumed:   s.Resumed,
	}
	if s.Question != nil {
		v.Question = &questionView{ID: s.Question.ID, Text: s.Question.Text}
		live := h.iv.Live()
		v.Live = &liveView{Finalized: live.Finalized, Interim: live.Interim}
	}
	if s.Err != nil {
		v.Error = &errorView{
			Kind:      string(faults.KindOf(s.Err)),
			Message:   s.Message(),
			Retryable: faults.Retryable(s.Err),
		}
	}
	return v
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

func (h *handlers) dispatch(ev interview.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.iv.Dispatch(ev)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, h.view())
		case errors.Is(err, interview.ErrBusy), errors.Is(err, interview.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, interview.ErrClosed):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Str("path", r.URL.Path).Msg("Dispatch failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}
}

func (h *handlers) transcript(w http.ResponseWriter, r *http.Request) {
	if s := h.iv.Snapshot(); s.State != interview.StateCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "interview not completed"})
		return
	}
	doc, err := h.iv.Document()
	if err != nil {
		log.Error().Err(err).Msg("Transcript render failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(doc.Size()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
