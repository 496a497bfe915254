package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"ai-interview-capture-service/internal/models"
	"ai-interview-capture-service/internal/observability/metrics"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil || p.writerFinal != nil || p.writerLifecycle != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:        true,
		Brokers:        []string{"localhost:9092"},
		TopicPartial:   "t.partial",
		TopicFinal:     "t.final",
		TopicLifecycle: "t.lifecycle",
		Metrics:        metrics.NewMetrics(prometheus.NewRegistry()),
	})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerLifecycle == nil || p.writerLifecycle.Topic != "t.lifecycle" {
		t.Errorf("expected lifecycle writer on t.lifecycle")
	}
	if p.writerPartial.Topic != "t.partial" || p.writerFinal.Topic != "t.final" {
		t.Errorf("unexpected writer topics %s %s", p.writerPartial.Topic, p.writerFinal.Topic)
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:        false,
		Brokers:        []string{"localhost:9092"},
		TopicPartial:   "test.partial",
		TopicFinal:     "test.final",
		TopicLifecycle: "test.lifecycle",
		Principal:      "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicPartial != "test.partial" {
		t.Errorf("expected topic partial 'test.partial', got %s", p.topicPartial)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
	if p.topicLifecycle != "test.lifecycle" {
		t.Errorf("expected topic lifecycle 'test.lifecycle', got %s", p.topicLifecycle)
	}
}

func TestPublisher_Disabled_PublishesAllFamilies(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := New(&Config{
		TopicPartial:   "test.partial",
		TopicFinal:     "test.final",
		TopicLifecycle: "test.lifecycle",
		Principal:      "test-svc",
		Metrics:        m,
	})
	ctx := context.Background()

	if err := p.PublishPartial(ctx, "s-1", models.TranscriptPartial{
		EventType: models.EventTranscriptPartial,
		SessionID: "s-1",
		Text:      "hello",
	}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := p.PublishFinal(ctx, "s-1", models.TranscriptFinal{
		EventType:  models.EventTranscriptFinal,
		SessionID:  "s-1",
		Text:       "hello world",
		Confidence: 0.9,
	}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := p.PublishLifecycle(ctx, "s-1", models.SessionLifecycle{
		EventType: models.EventSessionLifecycle,
		SessionID: "s-1",
		From:      "LOADING",
		To:        "PERMISSIONS",
	}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("test.lifecycle", "lifecycle")); got != 1 {
		t.Errorf("expected 1 lifecycle publish, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("test.final", "final")); got != 0 {
		t.Errorf("expected no final publish errors, got %v", got)
	}
}

func TestPublisher_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Create an unmarshalable value (channel)
	event := make(chan int)

	if err := p.PublishPartial(context.Background(), "test-key", event); err == nil {
		t.Error("expected error for unmarshalable partial event")
	}
	if err := p.PublishFinal(context.Background(), "test-key", event); err == nil {
		t.Error("expected error for unmarshalable final event")
	}
	if err := p.PublishLifecycle(context.Background(), "test-key", event); err == nil {
		t.Error("expected error for unmarshalable lifecycle event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{}

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

func TestDecode_RoundTripsPublisherPayload(t *testing.T) {
	payload, err := json.Marshal(models.TranscriptFinal{
		EventType:  models.EventTranscriptFinal,
		SessionID:  "s1",
		QuestionID: "q2",
		Text:       "I led the migration",
		Confidence: 0.91,
	})
	if err != nil {
		t.Fatal(err)
	}

	e, err := Decode(kafka.Message{
		Topic:   "t.final",
		Key:     []byte("s1"),
		Value:   payload,
		Headers: []kafka.Header{{Key: "principal", Value: []byte("svc-test")}},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Topic != "t.final" || e.Key != "s1" || e.Principal != "svc-test" {
		t.Errorf("unexpected envelope metadata %+v", e)
	}
	if e.EventType != models.EventTranscriptFinal || e.QuestionID != "q2" || e.Text != "I led the migration" || e.Confidence != 0.91 {
		t.Errorf("unexpected envelope body %+v", e)
	}

	if _, err := Decode(kafka.Message{Value: []byte("{")}); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestWatch_RequiresBrokers(t *testing.T) {
	err := Watch(context.Background(), WatchConfig{Topic: "t"}, func(Envelope) {})
	if err == nil {
		t.Error("expected error without brokers")
	}
}
