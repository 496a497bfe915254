// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"ai-interview-capture-service/internal/observability"
	"ai-interview-capture-service/internal/observability/metrics"
	"ai-interview-capture-service/internal/service/stt"
)

const provider = "google"

// Config holds recognition settings.
type Config struct {
	LanguageCode    string
	SampleRateHz    int
	InterimResults  bool
	AudioEncoding   string
	CredentialsFile string
	// SpeechEndTimeout ends the stream after this much trailing silence; zero leaves the provider default.
	SpeechEndTimeout time.Duration
}

// DefaultConfig returns the settings matching the microphone track.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// Recognizer owns the Speech client shared by all recognition sessions.
type Recognizer struct {
	client  *speech.Client
	cfg     Config
	metrics *metrics.Metrics
}

// NewRecognizer dials Google Speech-to-Text.
// Without a credentials file, GOOGLE_APPLICATION_CREDENTIALS is used.
func NewRecognizer(ctx context.Context, cfg Config, m *metrics.Metrics, opts ...option.ClientOption) (*Recognizer, error) {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts,
		option.WithGRPCDialOption(grpc.WithChainStreamInterceptor(observability.StreamClientInterceptor(m))),
		option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(observability.UnaryClientInterceptor())),
	)

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Recognizer{client: c, cfg: cfg, metrics: m}, nil
}

// NewAdapter returns an adapter for one recognition session. It satisfies stt.Factory.
func (r *Recognizer) NewAdapter(ctx context.Context) (stt.Adapter, error) {
	return &Adapter{client: r.client, cfg: r.cfg, metrics: r.metrics}, nil
}

// Close releases the underlying connection.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client  *speech.Client
	cfg     Config
	metrics *metrics.Metrics

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	closed bool
}

// Start begins a streaming recognition session, sends the initial config
// and starts receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	}); err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closed := a.stream, a.closed
	a.mu.Unlock()
	if stream == nil || closed {
		return io.ErrClosedPipe
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream; results still in flight are dropped.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.stream != nil {
		return a.stream.CloseSend()
	}
	return nil
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// listen receives transcript responses from Google and invokes callbacks.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if a.isClosed() {
				return
			}
			if isSessionEnd(err) {
				cb.OnEnd()
				return
			}
			a.metrics.RecordSTTError(provider, status.Code(err).String())
			cb.OnError(err)
			return
		}
		if a.isClosed() {
			return
		}

		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			log.Debug().Str("sttProvider", provider).Msg("End of single utterance")
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			alt := r.GetAlternatives()[0]
			if r.GetIsFinal() {
				cb.OnFinal(alt.GetTranscript(), float64(alt.GetConfidence()))
			} else {
				cb.OnPartial(alt.GetTranscript())
			}
		}
	}
}

// isSessionEnd reports whether err is the provider closing the stream on its
// own: end of input, the maximum stream duration, or a silence deadline.
func isSessionEnd(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	switch status.Code(err) {
	case codes.OutOfRange, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	sc := &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz:            int32(cfg.SampleRateHz),
			LanguageCode:               cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		InterimResults: cfg.InterimResults,
	}
	if cfg.SpeechEndTimeout > 0 {
		sc.EnableVoiceActivityEvents = true
		sc.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechEndTimeout: durationpb.New(cfg.SpeechEndTimeout),
		}
	}
	return sc
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
