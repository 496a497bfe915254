package google

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},        // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStreamingConfig(t *testing.T) {
	cfg := Config{
		LanguageCode:   "es-ES",
		SampleRateHz:   48000,
		InterimResults: false,
		AudioEncoding:  "MULAW",
	}

	sc := streamingConfig(cfg)

	if sc.GetConfig().GetLanguageCode() != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", sc.GetConfig().GetLanguageCode())
	}
	if sc.GetConfig().GetSampleRateHertz() != 48000 {
		t.Errorf("expected sample rate 48000, got %d", sc.GetConfig().GetSampleRateHertz())
	}
	if sc.GetInterimResults() {
		t.Errorf("expected interim results false")
	}
	if sc.GetConfig().GetEncoding() != speechpb.RecognitionConfig_MULAW {
		t.Errorf("expected MULAW encoding, got %v", sc.GetConfig().GetEncoding())
	}
	if sc.GetVoiceActivityTimeout() != nil {
		t.Errorf("expected no voice activity timeout by default")
	}
}

func TestStreamingConfig_SpeechEndTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpeechEndTimeout = 3 * time.Second

	sc := streamingConfig(cfg)

	if !sc.GetEnableVoiceActivityEvents() {
		t.Error("expected voice activity events enabled")
	}
	if got := sc.GetVoiceActivityTimeout().GetSpeechEndTimeout().AsDuration(); got != 3*time.Second {
		t.Errorf("expected speech end timeout 3s, got %v", got)
	}
}

func TestIsSessionEnd(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("recv: %w", io.EOF), true},
		{"max duration", status.Error(codes.OutOfRange, "Exceeded maximum allowed stream duration"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline"), true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad key"), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSessionEnd(tt.err); got != tt.want {
				t.Errorf("isSessionEnd(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseAudioEncoding_CaseSensitive(t *testing.T) {
	// Encoding strings should be uppercase
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // lowercase -> fallback
		{"Linear16", speechpb.RecognitionConfig_LINEAR16}, // mixed case -> fallback
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16}, // uppercase -> match
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
