package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/metrics"
)

func newTestClient(t *testing.T, h http.Handler, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:   srv.URL + "/api",
		Timeout:   timeout,
		Principal: "svc-test",
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     any
		wantKind faults.Kind
		want     models.Session
	}{
		{
			name: "in progress with cursor",
			code: http.StatusOK,
			body: map[string]any{"id": "s1", "job_id": "j1", "status": "IN_PROGRESS", "last_question_id": "q3"},
			want: models.Session{ID: "s1", JobID: "j1", Status: models.StatusInProgress, LastQuestionID: strPtr("q3")},
		},
		{
			name: "pending is not started",
			code: http.StatusOK,
			body: map[string]any{"id": "s1", "job_id": "j1", "status": "PENDING"},
			want: models.Session{ID: "s1", JobID: "j1", Status: models.StatusNotStarted},
		},
		{
			name:     "unknown token",
			code:     http.StatusNotFound,
			body:     map[string]any{"detail": "Invalid interview link"},
			wantKind: faults.InvalidToken,
		},
		{
			name:     "expired token",
			code:     http.StatusGone,
			body:     map[string]any{"detail": "expired"},
			wantKind: faults.ExpiredToken,
		},
		{
			name:     "server error",
			code:     http.StatusInternalServerError,
			body:     map[string]any{"detail": "boom"},
			wantKind: faults.NetworkFailure,
		},
		{
			name: "unknown status proceeds as not started",
			code: http.StatusOK,
			body: map[string]any{"id": "s1", "job_id": "j1", "status": "EXPIRED"},
			want: models.Session{ID: "s1", JobID: "j1", Status: models.StatusNotStarted},
		},
		{
			name: "completed without job",
			code: http.StatusOK,
			body: map[string]any{"id": "s1", "job_id": nil, "status": "COMPLETED"},
			want: models.Session{ID: "s1", Status: models.StatusCompleted},
		},
		{
			name: "completed status only",
			code: http.StatusOK,
			body: map[string]any{"status": "COMPLETED"},
			want: models.Session{Status: models.StatusCompleted},
		},
		{
			name:     "missing job",
			code:     http.StatusOK,
			body:     map[string]any{"id": "s1", "status": "IN_PROGRESS"},
			wantKind: faults.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/interview/validate/tok-1", r.URL.Path)
				assert.Equal(t, "svc-test", r.Header.Get("X-Service-Principal"))
				writeJSON(w, tt.code, tt.body)
			}), 0)

			got, err := c.ValidateSession(context.Background(), "tok-1")
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, faults.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextQuestion(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interview/question", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		if body["last_question_id"] == "q2" {
			writeJSON(w, http.StatusOK, map[string]any{"question": nil, "done": true})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"done":         false,
			"question":     map[string]any{"id": "q2", "question_text": "Why Go?", "question_order": 2},
			"audio_base64": "UklGRg==",
		})
	}), 0)

	res, err := c.NextQuestion(context.Background(), "j1", nil)
	require.NoError(t, err)
	assert.False(t, res.Done)
	require.NotNil(t, res.Question)
	assert.Equal(t, models.Question{ID: "q2", Text: "Why Go?", Audio: "UklGRg=="}, *res.Question)

	res, err = c.NextQuestion(context.Background(), "j1", strPtr("q2"))
	require.NoError(t, err)
	assert.True(t, res.Done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"job_id": "j1", "last_question_id": nil}, bodies[0])
	assert.Equal(t, "q2", bodies[1]["last_question_id"])
}

func TestNextQuestion_Failures(t *testing.T) {
	tests := []struct {
		name string
		code int
		body any
	}{
		{"server error", http.StatusInternalServerError, map[string]any{"detail": "down"}},
		{"missing question", http.StatusOK, map[string]any{"done": false}},
		{"question without text", http.StatusOK, map[string]any{"done": false, "question": map[string]any{"id": "q1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.code, tt.body)
			}), 0)
			_, err := c.NextQuestion(context.Background(), "j1", nil)
			require.Error(t, err)
			assert.Equal(t, faults.NetworkFailure, faults.KindOf(err))
		})
	}
}

func TestSubmitAnswer_Multipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interview/answer", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "s1", r.FormValue("session_id"))
		assert.Equal(t, "q1", r.FormValue("question_id"))

		f, hdr, err := r.FormFile("audio_chunk")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "answer-q1.wav", hdr.Filename)
		assert.Equal(t, "audio/wav", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("RIFF"), data)
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transcript": "hi"})
	}), 0)

	err := c.SubmitAnswer(context.Background(), "s1", "q1", models.Blob{Name: "answer-q1.wav", ContentType: "audio/wav", Data: []byte("RIFF")})
	assert.NoError(t, err)
}

func TestUploads(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     any
		wantKind faults.Kind
	}{
		{name: "created", code: http.StatusCreated, body: map[string]any{"success": true, "url": "https://cdn/x"}},
		{name: "rejected in body", code: http.StatusCreated, body: map[string]any{"success": false, "error": "bucket"}, wantKind: faults.UploadFailure},
		{name: "server error", code: http.StatusInternalServerError, body: map[string]any{"detail": "Failed to upload"}, wantKind: faults.UploadFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var paths []string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				paths = append(paths, r.URL.Path)
				mu.Unlock()
				writeJSON(w, tt.code, tt.body)
			}), 0)

			errVideo := c.UploadFullVideo(context.Background(), "s1", models.Blob{Name: "v.irec", Data: []byte{1}})
			errDoc := c.UploadTranscript(context.Background(), "s1", models.Blob{Name: "t.pdf", ContentType: "application/pdf", Data: []byte{2}})

			mu.Lock()
			assert.Equal(t, []string{"/api/interview/upload-full-video", "/api/interview/upload-transcript"}, paths)
			mu.Unlock()
			if tt.wantKind == "" {
				assert.NoError(t, errVideo)
				assert.NoError(t, errDoc)
				return
			}
			assert.Equal(t, tt.wantKind, faults.KindOf(errVideo))
			assert.Equal(t, tt.wantKind, faults.KindOf(errDoc))
		})
	}
}

func TestCompleteSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s1", body["session_id"])
		// Grading failures do not undo completion.
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "grading_error": "model down"})
	}), 0)
	assert.NoError(t, c.CompleteSession(context.Background(), "s1"))

	failing := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "session_id required"})
	}), 0)
	err := failing.CompleteSession(context.Background(), "")
	assert.Equal(t, faults.UploadFailure, faults.KindOf(err))
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 50*time.Millisecond)
	defer close(release)

	_, err := c.NextQuestion(context.Background(), "j1", nil)
	require.Error(t, err)
	assert.Equal(t, faults.NetworkFailure, faults.KindOf(err))
	assert.True(t, faults.Retryable(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Metrics: metrics.NewMetrics(prometheus.NewRegistry())})
	_, err := c.ValidateSession(context.Background(), "tok")
	assert.Equal(t, faults.NetworkFailure, faults.KindOf(err))
}

func strPtr(s string) *string { return &s }
