package media

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/observability/metrics"
)

// Manager acquires the capture devices and owns the combined stream.
type Manager struct {
	devices Devices
	player  *Player
	metrics *metrics.Metrics

	mu      sync.Mutex
	current *capture
}

type capture struct {
	stream  *Stream
	sources []Source
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager over devices. player may be nil, in which
// case a silent player is used.
func NewManager(devices Devices, player *Player, m *metrics.Metrics) *Manager {
	if player == nil {
		player = NewPlayer(nil)
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Manager{devices: devices, player: player, metrics: m}
}

// Player returns the question audio player mixed into the microphone track.
func (m *Manager) Player() *Player { return m.player }

// AudioFormat is the format of the stream's audio track.
func (m *Manager) AudioFormat() AudioFormat { return m.devices.AudioFormat() }

// CheckPermissions opens both devices and releases them immediately.
func (m *Manager) CheckPermissions(ctx context.Context) error {
	cam, mic, err := m.open(ctx)
	if err != nil {
		return err
	}
	cam.Close()
	mic.Close()
	return nil
}

func (m *Manager) open(ctx context.Context) (Source, Source, error) {
	cam, err := m.devices.OpenCamera(ctx)
	if err != nil {
		return nil, nil, classify("open camera", err)
	}
	mic, err := m.devices.OpenMicrophone(ctx)
	if err != nil {
		cam.Close()
		return nil, nil, classify("open microphone", err)
	}
	return cam, mic, nil
}

func classify(op string, err error) error {
	var fe *faults.Error
	if errors.As(err, &fe) {
		return err
	}
	return faults.New(faults.DeviceUnavailable, op, err)
}

// Acquire opens the devices and starts a new combined stream. Any previous
// stream is released first, closing its subscribers.
func (m *Manager) Acquire(ctx context.Context) (*Stream, error) {
	m.Release()

	cam, mic, err := m.open(ctx)
	if err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	c := &capture{
		stream:  newStream(m.devices.AudioFormat(), m.metrics),
		sources: []Source{cam, mic},
		cancel:  cancel,
	}
	c.wg.Add(2)
	go m.pump(pumpCtx, c, cam, TrackVideo, nil)
	go m.pump(pumpCtx, c, mic, TrackAudio, m.player)

	m.mu.Lock()
	m.current = c
	m.mu.Unlock()

	m.metrics.RecordStreamAcquired()
	log.Info().Str("streamId", c.stream.ID()).Msg("Media stream acquired")
	return c.stream, nil
}

// pump forwards timeslices from src to the stream until released.
// The microphone pump drives the mixing clock.
func (m *Manager) pump(ctx context.Context, c *capture, src Source, track Track, player *Player) {
	defer c.wg.Done()
	var seq int64
	for {
		data, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, ErrSourceClosed) {
				log.Warn().Err(err).Str("track", string(track)).Str("streamId", c.stream.ID()).Msg("Capture source failed")
			}
			return
		}
		if player != nil {
			data = player.mixFrame(data)
		}
		seq++
		c.stream.Broadcast(Chunk{Track: track, Seq: seq, Data: data})
	}
}

// Current returns the live stream, or nil.
func (m *Manager) Current() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.stream
}

// Release stops capture and releases every device handle. Idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()
	if c == nil {
		return
	}

	c.stream.halt()
	c.cancel()
	for _, src := range c.sources {
		src.Close()
	}
	c.wg.Wait()
	c.stream.release()
	m.player.Stop()

	m.metrics.RecordStreamReleased()
	log.Info().Str("streamId", c.stream.ID()).Msg("Media stream released")
}

// PlayQuestion decodes the question audio and starts playing it into the stream.
func (m *Manager) PlayQuestion(payload string) error {
	pcm, err := DecodeQuestionAudio(payload, m.devices.AudioFormat().SampleRate)
	if err != nil {
		return err
	}
	m.player.Play(pcm)
	return nil
}
