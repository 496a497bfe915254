// Package config loads the agent configuration from the environment,
// optionally layered over a TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Configuration is the full agent configuration.
type Configuration struct {
	Service       ServiceConfig
	Backend       BackendConfig
	STT           STTConfig
	Media         MediaConfig
	Recording     RecordingConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string `toml:"principal" validate:"required"`
	HTTPAddr    string `toml:"http_addr" validate:"required"`
	MetricsAddr string `toml:"metrics_addr"`
}

type BackendConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	// Timeout of zero disables client-side timeouts.
	Timeout time.Duration `toml:"timeout" validate:"gte=0"`
}

type STTConfig struct {
	Provider           string        `toml:"provider" validate:"oneof=mock google none"`
	LanguageCode       string        `toml:"language_code" validate:"required"`
	SampleRateHz       int           `toml:"sample_rate_hz" validate:"gt=0"`
	InterimResults     bool          `toml:"interim_results"`
	AudioEncoding      string        `toml:"audio_encoding"`
	Required           bool          `toml:"required"`
	MaxRestartFailures int           `toml:"max_restart_failures" validate:"gte=0"`
	CredentialsFile    string        `toml:"credentials_file"`
	MockUtteranceDelay time.Duration `toml:"-"`
}

type MediaConfig struct {
	Provider      string        `toml:"provider" validate:"oneof=synthetic ffmpeg"`
	InputFormat   string        `toml:"input_format"`
	VideoDevice   string        `toml:"video_device"`
	AudioDevice   string        `toml:"audio_device"`
	MicWAV        string        `toml:"mic_wav"`
	FrameDuration time.Duration `toml:"frame_duration" validate:"gt=0"`
}

type RecordingConfig struct {
	MaxSegmentBytes int64 `toml:"max_segment_bytes" validate:"gte=0"`
	MaxSessionBytes int64 `toml:"max_session_bytes" validate:"gte=0"`
}

type KafkaConfig struct {
	Enabled        bool     `toml:"enabled"`
	Brokers        []string `toml:"brokers"`
	TopicPartial   string   `toml:"topic_partial"`
	TopicFinal     string   `toml:"topic_final"`
	TopicLifecycle string   `toml:"topic_lifecycle"`
	Principal      string   `toml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format" validate:"oneof=json console"`
}

// fileConfig mirrors the optional TOML file.
type fileConfig struct {
	Service       ServiceConfig       `toml:"service"`
	Backend       fileBackend         `toml:"backend"`
	STT           STTConfig           `toml:"stt"`
	Media         fileMedia           `toml:"media"`
	Recording     RecordingConfig     `toml:"recording"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Observability ObservabilityConfig `toml:"observability"`
}

type fileBackend struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type fileMedia struct {
	Provider      string `toml:"provider"`
	InputFormat   string `toml:"input_format"`
	VideoDevice   string `toml:"video_device"`
	AudioDevice   string `toml:"audio_device"`
	MicWAV        string `toml:"mic_wav"`
	FrameDuration string `toml:"frame_duration"`
}

// Defaults returns the built-in configuration.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   "svc-interview-capture",
			HTTPAddr:    ":8088",
			MetricsAddr: ":9090",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:3001/api",
		},
		STT: STTConfig{
			Provider:           "mock",
			LanguageCode:       "en-US",
			SampleRateHz:       16000,
			InterimResults:     true,
			AudioEncoding:      "LINEAR16",
			MaxRestartFailures: 3,
		},
		Media: MediaConfig{
			Provider:      "synthetic",
			InputFormat:   "avfoundation",
			VideoDevice:   "0",
			AudioDevice:   ":default",
			FrameDuration: 100 * time.Millisecond,
		},
		Recording: RecordingConfig{
			MaxSegmentBytes: 50 * 1024 * 1024,
			MaxSessionBytes: 2 * 1024 * 1024 * 1024,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			TopicPartial:   "interview.transcript.partial",
			TopicFinal:     "interview.transcript.final",
			TopicLifecycle: "interview.session.lifecycle",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration: defaults, then CONFIG_FILE, then env vars.
// Unparseable env values fall back to the value already in place.
func Load() *Configuration {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	applyEnv(cfg)
	return cfg
}

// Validate checks the loaded configuration.
func (c *Configuration) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyFile(cfg *Configuration, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return err
	}

	setString(&cfg.Service.Principal, fc.Service.Principal)
	setString(&cfg.Service.HTTPAddr, fc.Service.HTTPAddr)
	setString(&cfg.Service.MetricsAddr, fc.Service.MetricsAddr)

	setString(&cfg.Backend.BaseURL, fc.Backend.BaseURL)
	setDuration(&cfg.Backend.Timeout, fc.Backend.Timeout)

	setString(&cfg.STT.Provider, fc.STT.Provider)
	setString(&cfg.STT.LanguageCode, fc.STT.LanguageCode)
	setString(&cfg.STT.AudioEncoding, fc.STT.AudioEncoding)
	setString(&cfg.STT.CredentialsFile, fc.STT.CredentialsFile)
	if fc.STT.SampleRateHz > 0 {
		cfg.STT.SampleRateHz = fc.STT.SampleRateHz
	}
	if fc.STT.MaxRestartFailures > 0 {
		cfg.STT.MaxRestartFailures = fc.STT.MaxRestartFailures
	}
	cfg.STT.Required = cfg.STT.Required || fc.STT.Required

	setString(&cfg.Media.Provider, fc.Media.Provider)
	setString(&cfg.Media.InputFormat, fc.Media.InputFormat)
	setString(&cfg.Media.VideoDevice, fc.Media.VideoDevice)
	setString(&cfg.Media.AudioDevice, fc.Media.AudioDevice)
	setString(&cfg.Media.MicWAV, fc.Media.MicWAV)
	setDuration(&cfg.Media.FrameDuration, fc.Media.FrameDuration)

	if fc.Recording.MaxSegmentBytes > 0 {
		cfg.Recording.MaxSegmentBytes = fc.Recording.MaxSegmentBytes
	}
	if fc.Recording.MaxSessionBytes > 0 {
		cfg.Recording.MaxSessionBytes = fc.Recording.MaxSessionBytes
	}

	cfg.Kafka.Enabled = cfg.Kafka.Enabled || fc.Kafka.Enabled
	if len(fc.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = fc.Kafka.Brokers
	}
	setString(&cfg.Kafka.TopicPartial, fc.Kafka.TopicPartial)
	setString(&cfg.Kafka.TopicFinal, fc.Kafka.TopicFinal)
	setString(&cfg.Kafka.TopicLifecycle, fc.Kafka.TopicLifecycle)
	setString(&cfg.Kafka.Principal, fc.Kafka.Principal)

	setString(&cfg.Observability.LogLevel, fc.Observability.LogLevel)
	setString(&cfg.Observability.LogFormat, fc.Observability.LogFormat)
	return nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.HTTPAddr = envOrDefault("HTTP_ADDR", cfg.Service.HTTPAddr)
	cfg.Service.MetricsAddr = envOrDefault("METRICS_ADDR", cfg.Service.MetricsAddr)

	cfg.Backend.BaseURL = envOrDefault("BACKEND_BASE_URL", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = envOrDefaultDuration("BACKEND_TIMEOUT", cfg.Backend.Timeout)

	cfg.STT.Provider = envOrDefault("STT_PROVIDER", cfg.STT.Provider)
	cfg.STT.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", cfg.STT.LanguageCode)
	cfg.STT.SampleRateHz = envOrDefaultInt("STT_SAMPLE_RATE_HZ", cfg.STT.SampleRateHz)
	cfg.STT.InterimResults = envOrDefaultBool("STT_INTERIM_RESULTS", cfg.STT.InterimResults)
	cfg.STT.AudioEncoding = envOrDefault("STT_AUDIO_ENCODING", cfg.STT.AudioEncoding)
	cfg.STT.Required = envOrDefaultBool("STT_REQUIRED", cfg.STT.Required)
	cfg.STT.MaxRestartFailures = envOrDefaultInt("STT_MAX_RESTART_FAILURES", cfg.STT.MaxRestartFailures)
	cfg.STT.CredentialsFile = envOrDefault("STT_CREDENTIALS_FILE", cfg.STT.CredentialsFile)
	cfg.STT.MockUtteranceDelay = envOrDefaultDuration("STT_MOCK_DELAY", cfg.STT.MockUtteranceDelay)

	cfg.Media.Provider = envOrDefault("MEDIA_PROVIDER", cfg.Media.Provider)
	cfg.Media.InputFormat = envOrDefault("MEDIA_INPUT_FORMAT", cfg.Media.InputFormat)
	cfg.Media.VideoDevice = envOrDefault("MEDIA_VIDEO_DEVICE", cfg.Media.VideoDevice)
	cfg.Media.AudioDevice = envOrDefault("MEDIA_AUDIO_DEVICE", cfg.Media.AudioDevice)
	cfg.Media.MicWAV = envOrDefault("MEDIA_MIC_WAV", cfg.Media.MicWAV)
	cfg.Media.FrameDuration = envOrDefaultDuration("MEDIA_FRAME_DURATION", cfg.Media.FrameDuration)

	cfg.Recording.MaxSegmentBytes = envOrDefaultInt64("RECORDING_MAX_SEGMENT_BYTES", cfg.Recording.MaxSegmentBytes)
	cfg.Recording.MaxSessionBytes = envOrDefaultInt64("RECORDING_MAX_SESSION_BYTES", cfg.Recording.MaxSessionBytes)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", cfg.Kafka.TopicPartial)
	cfg.Kafka.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", cfg.Kafka.TopicFinal)
	cfg.Kafka.TopicLifecycle = envOrDefault("KAFKA_TOPIC_LIFECYCLE", cfg.Kafka.TopicLifecycle)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
