package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeQuestionAudio turns the opaque question audio payload (raw base64 or
// a data: URL holding a PCM WAV file) into mono 16-bit PCM at sampleRate.
// An empty payload yields no audio.
func DecodeQuestionAudio(payload string, sampleRate int) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, fmt.Errorf("question audio: unsupported data URL")
		}
		payload = payload[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
			return nil, fmt.Errorf("question audio: %w", err)
		}
	}

	pcm, format, err := ParseWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("question audio: %w", err)
	}
	mono := downmix(samples(pcm), format.Channels)
	return pcmBytes(resample(mono, format.SampleRate, sampleRate)), nil
}
