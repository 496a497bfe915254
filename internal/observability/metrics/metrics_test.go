package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSessionLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStarted(false)
	m.RecordSessionStarted(true)
	m.RecordSessionEnd(true, "")
	m.RecordSessionEnd(false, "UPLOAD_FAILURE")

	if got := testutil.ToFloat64(m.SessionsStarted); got != 1 {
		t.Errorf("expected 1 started session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsResumed); got != 1 {
		t.Errorf("expected 1 resumed session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsCompleted); got != 1 {
		t.Errorf("expected 1 completed session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsFailed.WithLabelValues("UPLOAD_FAILURE")); got != 1 {
		t.Errorf("expected 1 failed session, got %v", got)
	}
}

func TestRecordAnswerSubmitted_Result(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAnswerSubmitted(nil)
	m.RecordAnswerSubmitted(errors.New("503"))
	m.RecordAnswerSubmitted(errors.New("503"))

	if got := testutil.ToFloat64(m.AnswersSubmitted.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnswersSubmitted.WithLabelValues("error")); got != 2 {
		t.Errorf("expected 2 failed submissions, got %v", got)
	}
}

func TestStreamGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStreamAcquired()
	m.RecordStreamAcquired()
	m.RecordStreamReleased()

	if got := testutil.ToFloat64(m.StreamsActive); got != 1 {
		t.Errorf("expected 1 active stream, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamsAcquired); got != 2 {
		t.Errorf("expected 2 acquired streams, got %v", got)
	}
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice against the same registerer would panic.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
