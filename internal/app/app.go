package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/config"
	"ai-interview-capture-service/internal/events"
	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/backend"
	"ai-interview-capture-service/internal/service/interview"
	"ai-interview-capture-service/internal/service/media"
	"ai-interview-capture-service/internal/service/stt"
	"ai-interview-capture-service/internal/service/stt/google"
	"ai-interview-capture-service/internal/service/stt/mock"
)

// Application holds process-wide state for the agent: one interview
// session and the pipeline serving it.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Metrics   *metrics.Metrics
	Publisher *events.Publisher
	Backend   *backend.Client
	Media     *media.Manager
	Interview *interview.Controller

	recognizer *google.Recognizer
}

// New builds the pipeline for the interview behind token.
func New(ctx context.Context, cfg *config.Configuration, token string) (*Application, error) {
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	a := &Application{
		Cfg:     cfg,
		Logger:  logging.WithComponent("application"),
		Metrics: metrics.DefaultMetrics,
	}

	a.Publisher = events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicPartial:   cfg.Kafka.TopicPartial,
		TopicFinal:     cfg.Kafka.TopicFinal,
		TopicLifecycle: cfg.Kafka.TopicLifecycle,
		Principal:      cfg.Kafka.Principal,
		Metrics:        a.Metrics,
	})

	a.Backend = backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		Principal: cfg.Service.Principal,
		Metrics:   a.Metrics,
	})

	devices, err := a.devices()
	if err != nil {
		a.Publisher.Close()
		return nil, err
	}
	a.Media = media.NewManager(devices, nil, a.Metrics)

	factory, err := a.recognition(ctx)
	if err != nil {
		a.Publisher.Close()
		return nil, err
	}

	a.Interview = interview.New(token, interview.Deps{
		Backend:            a.Backend,
		Capture:            a.Media,
		STT:                factory,
		STTProvider:        cfg.STT.Provider,
		STTRequired:        cfg.STT.Required,
		MaxRestartFailures: cfg.STT.MaxRestartFailures,
		MaxSegmentBytes:    cfg.Recording.MaxSegmentBytes,
		MaxSessionBytes:    cfg.Recording.MaxSessionBytes,
		Publisher:          a.Publisher,
		Metrics:            a.Metrics,
	})

	a.Logger.Info().
		Str("backend", cfg.Backend.BaseURL).
		Str("sttProvider", cfg.STT.Provider).
		Str("mediaProvider", cfg.Media.Provider).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Interview capture application created")
	return a, nil
}

func (a *Application) devices() (media.Devices, error) {
	format := media.AudioFormat{SampleRate: a.Cfg.STT.SampleRateHz, Channels: 1, BitsPerSample: 16}
	switch a.Cfg.Media.Provider {
	case "ffmpeg":
		d := &media.FFmpegDevices{
			InputFormat:   a.Cfg.Media.InputFormat,
			VideoDevice:   a.Cfg.Media.VideoDevice,
			AudioDevice:   a.Cfg.Media.AudioDevice,
			Format:        format,
			FrameDuration: a.Cfg.Media.FrameDuration,
		}
		if err := d.CheckFFmpeg(); err != nil {
			return nil, err
		}
		return d, nil
	case "synthetic":
		d := media.NewSyntheticDevices(format.SampleRate, a.Cfg.Media.FrameDuration)
		d.MicWAV = a.Cfg.Media.MicWAV
		return d, nil
	default:
		return nil, fmt.Errorf("unknown media provider %q", a.Cfg.Media.Provider)
	}
}

func (a *Application) recognition(ctx context.Context) (stt.Factory, error) {
	switch a.Cfg.STT.Provider {
	case "mock":
		return mock.Factory(mock.Config{Delay: a.Cfg.STT.MockUtteranceDelay}), nil
	case "google":
		r, err := google.NewRecognizer(ctx, google.Config{
			LanguageCode:    a.Cfg.STT.LanguageCode,
			SampleRateHz:    a.Cfg.STT.SampleRateHz,
			InterimResults:  a.Cfg.STT.InterimResults,
			AudioEncoding:   a.Cfg.STT.AudioEncoding,
			CredentialsFile: a.Cfg.STT.CredentialsFile,
		}, a.Metrics)
		if err != nil {
			if a.Cfg.STT.Required {
				return nil, err
			}
			a.Logger.Warn().Err(err).Msg("Speech recognition unavailable, continuing without it")
			return stt.Unsupported, nil
		}
		a.recognizer = r
		return r.NewAdapter, nil
	default:
		return stt.Unsupported, nil
	}
}

// Start validates the interview token and begins the session.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Interview capture agent starting")
	return a.Interview.Start(ctx)
}

// Ready fails once the interview has ended in ERROR.
func (a *Application) Ready() error {
	snap := a.Interview.Snapshot()
	if snap.State == interview.StateError {
		return fmt.Errorf("interview failed: %w", snap.Err)
	}
	return nil
}

// Shutdown stops the session and releases every resource. Nothing is
// uploaded for an interview that has not completed.
func (a *Application) Shutdown() {
	a.Logger.Info().
		Str("state", string(a.Interview.Snapshot().State)).
		Msg("Interview capture agent shutting down")

	a.Interview.Close()
	if a.recognizer != nil {
		if err := a.recognizer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close speech client")
		}
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close Kafka publisher")
	}
}
