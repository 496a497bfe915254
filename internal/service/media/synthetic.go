package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"ai-interview-capture-service/internal/faults"
)

const syntheticFrameBytes = 1024

// SyntheticDevices produces paced, deterministic media: numbered video
// frames and either silence or the samples of a WAV file on the microphone.
type SyntheticDevices struct {
	Format        AudioFormat
	FrameDuration time.Duration
	// MicWAV is played once through the microphone, followed by silence.
	MicWAV string
	// DenyPermission and NoDevices simulate the two acquisition failures.
	DenyPermission bool
	NoDevices      bool

	mu    sync.Mutex
	opens int
}

// NewSyntheticDevices returns synthetic devices at sampleRate mono.
func NewSyntheticDevices(sampleRate int, frame time.Duration) *SyntheticDevices {
	return &SyntheticDevices{
		Format:        AudioFormat{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16},
		FrameDuration: frame,
	}
}

func (d *SyntheticDevices) AudioFormat() AudioFormat { return d.Format }

// Opens returns how many devices have been opened successfully.
func (d *SyntheticDevices) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *SyntheticDevices) check(op string) error {
	if d.DenyPermission {
		return faults.New(faults.PermissionDenied, op, nil)
	}
	if d.NoDevices {
		return faults.New(faults.DeviceUnavailable, op, nil)
	}
	d.mu.Lock()
	d.opens++
	d.mu.Unlock()
	return nil
}

func (d *SyntheticDevices) frame() time.Duration {
	if d.FrameDuration <= 0 {
		return 100 * time.Millisecond
	}
	return d.FrameDuration
}

func (d *SyntheticDevices) OpenCamera(ctx context.Context) (Source, error) {
	if err := d.check("open camera"); err != nil {
		return nil, err
	}
	var seq uint64
	return newPacedSource(d.frame(), func() []byte {
		seq++
		b := make([]byte, syntheticFrameBytes)
		binary.BigEndian.PutUint64(b, seq)
		return b
	}), nil
}

func (d *SyntheticDevices) OpenMicrophone(ctx context.Context) (Source, error) {
	var pcm []byte
	if d.MicWAV != "" {
		data, err := os.ReadFile(d.MicWAV)
		if err != nil {
			return nil, faults.New(faults.DeviceUnavailable, "open microphone", err)
		}
		raw, format, err := ParseWAV(data)
		if err != nil {
			return nil, faults.New(faults.DeviceUnavailable, "open microphone", fmt.Errorf("%s: %w", d.MicWAV, err))
		}
		pcm = pcmBytes(resample(downmix(samples(raw), format.Channels), format.SampleRate, d.Format.SampleRate))
	}
	if err := d.check("open microphone"); err != nil {
		return nil, err
	}

	frameBytes := d.Format.BytesPerSecond() * int(d.frame()/time.Millisecond) / 1000
	frameBytes -= frameBytes % 2
	return newPacedSource(d.frame(), func() []byte {
		b := make([]byte, frameBytes)
		n := copy(b, pcm)
		pcm = pcm[n:]
		return b
	}), nil
}

// pacedSource emits one generated timeslice per interval.
type pacedSource struct {
	ticker *time.Ticker
	gen    func() []byte
	done   chan struct{}
	once   sync.Once
}

func newPacedSource(interval time.Duration, gen func() []byte) *pacedSource {
	return &pacedSource{
		ticker: time.NewTicker(interval),
		gen:    gen,
		done:   make(chan struct{}),
	}
}

func (s *pacedSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSourceClosed
	case <-s.ticker.C:
		return s.gen(), nil
	}
}

func (s *pacedSource) Close() error {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	return nil
}
