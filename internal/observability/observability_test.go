package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-interview-capture-service/internal/observability/metrics"
)

type fakeClientStream struct {
	grpc.ClientStream
	errs []error
}

func (f *fakeClientStream) RecvMsg(interface{}) error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func TestStreamClientInterceptor_RecordsOnce(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	icpt := StreamClientInterceptor(m)

	fake := &fakeClientStream{errs: []error{nil, io.EOF, io.EOF}}
	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return fake, nil
	}

	cs, err := icpt(context.Background(), &grpc.StreamDesc{}, nil, "/speech/Recognize", streamer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		_ = cs.RecvMsg(nil)
	}

	if got := testutil.ToFloat64(m.STTStreams.WithLabelValues("/speech/Recognize", "OK")); got != 1 {
		t.Errorf("expected stream recorded once with OK, got %v", got)
	}
}

func TestStreamClientInterceptor_OpenFailure(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	icpt := StreamClientInterceptor(m)

	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return nil, status.Error(codes.Unavailable, "down")
	}

	_, err := icpt(context.Background(), &grpc.StreamDesc{}, nil, "/speech/Recognize", streamer)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(m.STTStreams.WithLabelValues("/speech/Recognize", "Unavailable")); got != 1 {
		t.Errorf("expected Unavailable stream recorded, got %v", got)
	}
}

func TestUnaryClientInterceptor_PassesError(t *testing.T) {
	want := errors.New("boom")
	icpt := UnaryClientInterceptor()
	err := icpt(context.Background(), "/m", nil, nil, nil,
		func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			return want
		})
	if !errors.Is(err, want) {
		t.Errorf("expected invoker error, got %v", err)
	}
}

func TestServer_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordSessionStarted(false)

	srv := NewServer(":0", reg, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ai_interview_capture_sessions_started_total 1") {
		t.Errorf("expected sessions counter in output")
	}
}

func TestServer_Readiness(t *testing.T) {
	var failure error
	srv := NewServer(":0", prometheus.NewRegistry(), func() error { return failure })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	failure = errors.New("interview failed")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
