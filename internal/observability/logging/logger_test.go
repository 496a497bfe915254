package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "debug", Format: "json"}, &buf)
	defer Init(DefaultConfig())

	l := WithSegment("sess-1", "q-2", "sess-1-seg-1")
	l.Info().Msg("segment flushed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["sessionId"] != "sess-1" || entry["questionId"] != "q-2" || entry["segmentId"] != "sess-1-seg-1" {
		t.Errorf("missing segment fields in %v", entry)
	}
	if entry["message"] != "segment flushed" {
		t.Errorf("unexpected message %v", entry["message"])
	}
}

func TestInitWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "loud"}, &buf)
	defer Init(DefaultConfig())

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}

	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug output to be suppressed, got %q", buf.String())
	}
}
