package media

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("media: source closed")

// Source is one open capture device producing fixed timeslices.
type Source interface {
	// Next blocks until the next timeslice is available.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Devices is the capability to open capture devices. Open errors are
// classified as faults.PermissionDenied or faults.DeviceUnavailable.
type Devices interface {
	OpenCamera(ctx context.Context) (Source, error)
	OpenMicrophone(ctx context.Context) (Source, error)
	// AudioFormat is the PCM format produced by the microphone.
	AudioFormat() AudioFormat
}
