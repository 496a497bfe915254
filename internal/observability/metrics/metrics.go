// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_interview_capture"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsResumed   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	StateTransitions  *prometheus.CounterVec

	// Question / answer metrics
	QuestionsPresented prometheus.Counter
	AnswersSubmitted   *prometheus.CounterVec
	SubmitRejected     prometheus.Counter

	// Recorder metrics
	SegmentsCreated   prometheus.Counter
	SegmentsDelivered prometheus.Counter
	SegmentsDiscarded prometheus.Counter
	SegmentBytes      prometheus.Histogram
	RecordingBytes    *prometheus.CounterVec
	LimitExceeded     *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Media metrics
	StreamsAcquired prometheus.Counter
	StreamsActive   prometheus.Gauge
	ChunksDropped   *prometheus.CounterVec

	// Backend metrics
	BackendLatency   *prometheus.HistogramVec
	BackendErrors    *prometheus.CounterVec
	CompletionUpload *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTStreams         *prometheus.CounterVec
	STTStreamDuration  prometheus.Histogram
	STTErrors          *prometheus.CounterVec
	RecognizerRestarts *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Session metrics
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of interview sessions started from the beginning",
		}),
		SessionsResumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_resumed_total",
			Help:      "Total number of interview sessions resumed at a cursor",
		}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of interview sessions completed with all artifacts uploaded",
		}),
		SessionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of interview sessions ending in the error state",
		}, []string{"kind"}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Controller state transitions",
		}, []string{"from", "to"}),

		// Question / answer metrics
		QuestionsPresented: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_presented_total",
			Help:      "Total number of questions presented to candidates",
		}),
		AnswersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Answer upload attempts by result",
		}, []string{"result"}),
		SubmitRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_rejected_total",
			Help:      "Submissions rejected because another one was in flight",
		}),

		// Recorder metrics
		SegmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total number of answer segments started",
		}),
		SegmentsDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_delivered_total",
			Help:      "Total number of answer segments flushed and delivered",
		}),
		SegmentsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_discarded_total",
			Help:      "Total number of answer segments discarded before delivery",
		}),
		SegmentBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_bytes",
			Help:      "Size of delivered answer segments",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		RecordingBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_bytes_total",
			Help:      "Media bytes captured by recorders",
		}, []string{"recorder"}),
		LimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_limit_exceeded_total",
			Help:      "Total number of times a recorder byte limit was exceeded",
		}, []string{"recorder"}),

		// Transcript metrics
		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of finalized transcripts received",
		}),

		// Media metrics
		StreamsAcquired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_streams_acquired_total",
			Help:      "Total number of combined media streams acquired",
		}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "media_streams_active",
			Help:      "Number of currently live combined media streams",
		}),
		ChunksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_chunks_dropped_total",
			Help:      "Chunks dropped for lossy subscribers",
		}, []string{"track"}),

		// Backend metrics
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Latency of backend calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"op"}),
		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Backend call failures by operation and kind",
		}, []string{"op", "kind"}),
		CompletionUpload: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_uploads_total",
			Help:      "Completion-phase calls by artifact and result",
		}, []string{"artifact", "result"}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// STT metrics
		STTStreams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_streams_total",
			Help:      "Recognition streams opened against the provider, by result",
		}, []string{"method", "code"}),
		STTStreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_stream_duration_seconds",
			Help:      "Lifetime of provider recognition streams",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 300, 600},
		}),
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		RecognizerRestarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_restarts_total",
			Help:      "Recognition sessions restarted after provider-side termination",
		}, []string{"result"}),
	}
}

// RecordTransition records a controller state change.
func (m *Metrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordSessionStarted records a fresh or resumed session start.
func (m *Metrics) RecordSessionStarted(resumed bool) {
	if resumed {
		m.SessionsResumed.Inc()
		return
	}
	m.SessionsStarted.Inc()
}

// RecordSessionEnd records a session reaching a terminal state.
func (m *Metrics) RecordSessionEnd(completed bool, kind string) {
	if completed {
		m.SessionsCompleted.Inc()
		return
	}
	m.SessionsFailed.WithLabelValues(kind).Inc()
}

// RecordAnswerSubmitted records one answer upload attempt.
func (m *Metrics) RecordAnswerSubmitted(err error) {
	m.AnswersSubmitted.WithLabelValues(result(err)).Inc()
}

// RecordQuestionPresented records a question shown to the candidate.
func (m *Metrics) RecordQuestionPresented() {
	m.QuestionsPresented.Inc()
}

// RecordSubmitRejected records a submit refused while the interview was locked.
func (m *Metrics) RecordSubmitRejected() {
	m.SubmitRejected.Inc()
}

// RecordSegmentCreated records a new answer segment being started.
func (m *Metrics) RecordSegmentCreated() {
	m.SegmentsCreated.Inc()
}

// RecordSegmentDelivered records a flushed answer segment.
func (m *Metrics) RecordSegmentDelivered(bytes int) {
	m.SegmentsDelivered.Inc()
	m.SegmentBytes.Observe(float64(bytes))
}

// RecordSegmentDiscarded records an answer segment abandoned before delivery.
func (m *Metrics) RecordSegmentDiscarded() {
	m.SegmentsDiscarded.Inc()
}

// RecordRecorded records media bytes captured by a recorder.
func (m *Metrics) RecordRecorded(recorder string, bytes int) {
	m.RecordingBytes.WithLabelValues(recorder).Add(float64(bytes))
}

// RecordLimitExceeded records when a recorder byte limit is exceeded.
func (m *Metrics) RecordLimitExceeded(recorder string) {
	m.LimitExceeded.WithLabelValues(recorder).Inc()
}

// RecordPartialTranscript records an interim transcript received.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a finalized transcript received.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordStreamAcquired records a new combined media stream.
func (m *Metrics) RecordStreamAcquired() {
	m.StreamsAcquired.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamReleased records a combined media stream being released.
func (m *Metrics) RecordStreamReleased() {
	m.StreamsActive.Dec()
}

// RecordChunkDropped records a chunk a lossy subscriber could not keep up with.
func (m *Metrics) RecordChunkDropped(track string) {
	m.ChunksDropped.WithLabelValues(track).Inc()
}

// RecordBackendCall records a backend call outcome.
func (m *Metrics) RecordBackendCall(op, kind string, latencySeconds float64) {
	m.BackendLatency.WithLabelValues(op).Observe(latencySeconds)
	if kind != "" {
		m.BackendErrors.WithLabelValues(op, kind).Inc()
	}
}

// RecordCompletionUpload records one completion-phase call.
func (m *Metrics) RecordCompletionUpload(artifact string, err error) {
	m.CompletionUpload.WithLabelValues(artifact, result(err)).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTStream records a provider stream ending.
func (m *Metrics) RecordSTTStream(method, code string, durationSeconds float64) {
	m.STTStreams.WithLabelValues(method, code).Inc()
	m.STTStreamDuration.Observe(durationSeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordRecognizerRestart records a recognition restart attempt.
func (m *Metrics) RecordRecognizerRestart(err error) {
	m.RecognizerRestarts.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
