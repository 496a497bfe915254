package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-interview-capture-service/internal/faults"
	"ai-interview-capture-service/internal/observability/metrics"
)

func newTestManager(d Devices) *Manager {
	return NewManager(d, NewPlayer(nil), metrics.NewMetrics(prometheus.NewRegistry()))
}

func firstOf(t *testing.T, sub *Subscription, track Track) Chunk {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-sub.C():
			require.True(t, ok, "subscription closed before a %s chunk arrived", track)
			if c.Track == track {
				return c
			}
		case <-timeout:
			t.Fatalf("no %s chunk received", track)
		}
	}
}

func TestManager_AcquireProducesBothTracks(t *testing.T) {
	devices := NewSyntheticDevices(16000, 5*time.Millisecond)
	m := newTestManager(devices)
	defer m.Release()

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, m.Current())

	sub := s.Subscribe("test", true)
	audio := firstOf(t, sub, TrackAudio)
	firstOf(t, sub, TrackVideo)

	// 5ms at 16kHz mono 16-bit.
	assert.Len(t, audio.Data, 160)
	assert.Equal(t, 2, devices.Opens())
}

func TestManager_ReacquireInvalidatesOldStream(t *testing.T) {
	m := newTestManager(NewSyntheticDevices(16000, 5*time.Millisecond))
	defer m.Release()

	old, err := m.Acquire(context.Background())
	require.NoError(t, err)
	oldSub := old.Subscribe("reader", true)

	fresh, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, old.ID(), fresh.ID())
	assert.True(t, old.Released())
	for range oldSub.C() {
	}
	assert.False(t, fresh.Released())
}

func TestManager_AcquireFailures(t *testing.T) {
	tests := []struct {
		name    string
		devices *SyntheticDevices
		want    error
	}{
		{"permission denied", &SyntheticDevices{Format: testFormat, DenyPermission: true}, faults.ErrPermissionDenied},
		{"no devices", &SyntheticDevices{Format: testFormat, NoDevices: true}, faults.ErrDeviceUnavailable},
		{"missing wav", &SyntheticDevices{Format: testFormat, MicWAV: "/nonexistent.wav"}, faults.ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(tt.devices)
			_, err := m.Acquire(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, m.Current())

			assert.ErrorIs(t, m.CheckPermissions(context.Background()), tt.want)
		})
	}
}

type rawDevices struct{ SyntheticDevices }

func (d *rawDevices) OpenCamera(ctx context.Context) (Source, error) {
	return nil, errors.New("driver crashed")
}

func TestManager_UnclassifiedErrorIsDeviceUnavailable(t *testing.T) {
	m := newTestManager(&rawDevices{SyntheticDevices{Format: testFormat}})
	_, err := m.Acquire(context.Background())
	assert.Equal(t, faults.DeviceUnavailable, faults.KindOf(err))
}

func TestManager_CheckPermissionsReleasesDevices(t *testing.T) {
	devices := NewSyntheticDevices(16000, 5*time.Millisecond)
	m := newTestManager(devices)

	require.NoError(t, m.CheckPermissions(context.Background()))
	assert.Equal(t, 2, devices.Opens())
	assert.Nil(t, m.Current())
}

func TestManager_ReleaseIdempotent(t *testing.T) {
	m := newTestManager(NewSyntheticDevices(16000, 5*time.Millisecond))
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.Release()
	m.Release()
	assert.True(t, s.Released())
	assert.Nil(t, m.Current())
}

func TestManager_QuestionAudioMixedIntoMicrophone(t *testing.T) {
	m := newTestManager(NewSyntheticDevices(16000, 5*time.Millisecond))
	defer m.Release()

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	sub := s.Subscribe("test", true)

	tone := make([]int16, 16000)
	for i := range tone {
		tone[i] = 1234
	}
	m.Player().Play(pcmBytes(tone))

	deadline := time.After(2 * time.Second)
	for {
		c := firstOf(t, sub, TrackAudio)
		if samples(c.Data)[0] == 1234 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("question audio never reached the audio track")
		default:
		}
	}
}

func TestSyntheticDevices_MicWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mic.wav")
	require.NoError(t, os.WriteFile(path, EncodeWAV(pcmBytes([]int16{7, 7, 7}), testFormat), 0o600))

	d := NewSyntheticDevices(16000, time.Millisecond)
	d.MicWAV = path
	src, err := d.OpenMicrophone(context.Background())
	require.NoError(t, err)
	defer src.Close()

	frame, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int16{7, 7, 7, 0}, samples(frame)[:4])

	src.Close()
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestClassifyFFmpeg(t *testing.T) {
	exit := errors.New("exit status 1")

	err := classifyFFmpeg("open camera", "[avfoundation] Failed to create AV capture input device: Permission denied", exit)
	assert.ErrorIs(t, err, faults.ErrPermissionDenied)

	err = classifyFFmpeg("open camera", "Video device not found", exit)
	assert.ErrorIs(t, err, faults.ErrDeviceUnavailable)
	assert.ErrorIs(t, err, exit)
}

func TestFFmpegDevices_MissingBinary(t *testing.T) {
	d := &FFmpegDevices{Binary: "ffmpeg-does-not-exist", Format: testFormat}
	_, err := d.OpenMicrophone(context.Background())
	assert.ErrorIs(t, err, faults.ErrDeviceUnavailable)
	assert.Equal(t, 3200, d.frameBytes())
}
