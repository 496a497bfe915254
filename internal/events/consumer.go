package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Envelope is one event read back from a topic. It carries the fields
// shared by transcript and lifecycle events.
type Envelope struct {
	Topic      string    `json:"-"`
	Key        string    `json:"-"`
	Principal  string    `json:"-"`
	Time       time.Time `json:"-"`
	EventType  string    `json:"eventType"`
	SessionID  string    `json:"sessionId"`
	QuestionID string    `json:"questionId,omitempty"`
	Text       string    `json:"text,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Decode parses a message written by Publisher.
func Decode(msg kafka.Message) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return Envelope{}, err
	}
	e.Topic = msg.Topic
	e.Key = string(msg.Key)
	e.Time = msg.Time
	for _, h := range msg.Headers {
		if h.Key == "principal" {
			e.Principal = string(h.Value)
		}
	}
	return e, nil
}

// WatchConfig configures Watch.
type WatchConfig struct {
	Brokers []string
	Topic   string
	// Since rewinds the reader; zero starts at the newest message.
	Since time.Duration
}

// Watch reads partition 0 of the topic without a consumer group and calls
// fn for every decodable event until ctx ends.
func Watch(ctx context.Context, cfg WatchConfig, fn func(Envelope)) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("events: no brokers configured")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if cfg.Since > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-cfg.Since)); err != nil {
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Could not rewind reader, reading new messages only")
		}
	} else if err := reader.SetOffset(kafka.LastOffset); err != nil {
		return err
	}
	log.Info().Str("topic", cfg.Topic).Dur("since", cfg.Since).Msg("Watching Kafka topic")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", cfg.Topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		e, err := Decode(msg)
		if err != nil {
			log.Warn().Err(err).Str("topic", cfg.Topic).Int64("offset", msg.Offset).Msg("Skipping undecodable event")
			continue
		}
		fn(e)
	}
}
