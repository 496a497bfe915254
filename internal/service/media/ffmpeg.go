package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-interview-capture-service/internal/faults"
)

// FFmpegDevices captures the camera and microphone through the ffmpeg binary.
type FFmpegDevices struct {
	Binary        string // defaults to "ffmpeg"
	InputFormat   string // avfoundation, v4l2, dshow ...
	VideoDevice   string
	AudioDevice   string
	Format        AudioFormat
	FrameDuration time.Duration
}

func (d *FFmpegDevices) AudioFormat() AudioFormat { return d.Format }

func (d *FFmpegDevices) binary() string {
	if d.Binary == "" {
		return "ffmpeg"
	}
	return d.Binary
}

// CheckFFmpeg reports whether the ffmpeg binary can be found.
func (d *FFmpegDevices) CheckFFmpeg() error {
	if _, err := exec.LookPath(d.binary()); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func (d *FFmpegDevices) frameBytes() int {
	frame := d.FrameDuration
	if frame <= 0 {
		frame = 100 * time.Millisecond
	}
	n := d.Format.BytesPerSecond() * int(frame/time.Millisecond) / 1000
	return n - n%2
}

// OpenCamera streams MJPEG frames from the video device.
func (d *FFmpegDevices) OpenCamera(ctx context.Context) (Source, error) {
	return d.open(ctx, "open camera", 64*1024, false,
		"-f", d.InputFormat,
		"-i", d.VideoDevice,
		"-an",
		"-f", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
}

// OpenMicrophone streams mono s16le PCM at the configured rate.
func (d *FFmpegDevices) OpenMicrophone(ctx context.Context) (Source, error) {
	return d.open(ctx, "open microphone", d.frameBytes(), true,
		"-f", d.InputFormat,
		"-i", d.AudioDevice,
		"-vn",
		"-ac", strconv.Itoa(d.Format.Channels),
		"-ar", strconv.Itoa(d.Format.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

func (d *FFmpegDevices) open(ctx context.Context, op string, size int, exact bool, args ...string) (Source, error) {
	if err := d.CheckFFmpeg(); err != nil {
		return nil, faults.New(faults.DeviceUnavailable, op, err)
	}

	cmd := exec.Command(d.binary(), append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, args...)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, faults.New(faults.DeviceUnavailable, op, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, faults.New(faults.DeviceUnavailable, op, err)
	}

	src := &processSource{cmd: cmd, stdout: stdout, size: size, exact: exact}

	// Devices that are denied or missing make ffmpeg exit before producing
	// anything; the first read tells the two cases apart.
	first, err := src.read()
	if err != nil {
		src.Close()
		return nil, classifyFFmpeg(op, stderr.String(), err)
	}
	src.first = first

	log.Debug().Str("op", op).Strs("args", args).Msg("ffmpeg capture started")
	return src, nil
}

func classifyFFmpeg(op, stderr string, err error) error {
	msg := strings.ToLower(stderr)
	cause := err
	if stderr != "" {
		cause = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr))
	}
	for _, needle := range []string{"permission denied", "not authorized", "not permitted", "access denied"} {
		if strings.Contains(msg, needle) {
			return faults.New(faults.PermissionDenied, op, cause)
		}
	}
	return faults.New(faults.DeviceUnavailable, op, cause)
}

// processSource reads timeslices from a running ffmpeg process.
type processSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	size   int
	exact  bool
	first  []byte

	once sync.Once
	mu   sync.Mutex
}

func (s *processSource) read() ([]byte, error) {
	buf := make([]byte, s.size)
	if s.exact {
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	n, err := s.stdout.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

// Next returns the next timeslice. A pending read is interrupted by Close;
// ctx only bounds the wait for the reader goroutine.
func (s *processSource) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if first := s.first; first != nil {
		s.first = nil
		s.mu.Unlock()
		return first, nil
	}
	s.mu.Unlock()

	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := s.read()
		ch <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil && (errors.Is(r.err, io.EOF) || errors.Is(r.err, io.ErrUnexpectedEOF)) {
			return nil, ErrSourceClosed
		}
		return r.b, r.err
	}
}

func (s *processSource) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.stdout.Close()
		s.cmd.Wait()
	})
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
