package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// ErrNotWAV is returned for payloads that are not RIFF/WAVE files.
var ErrNotWAV = errors.New("media: not a valid WAV file")

// EncodeWAV wraps little-endian PCM in a canonical 44-byte WAV header.
// Empty PCM yields a valid, empty WAV file.
func EncodeWAV(pcm []byte, format AudioFormat) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	blockAlign := format.Channels * format.BitsPerSample / 8
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(format.BytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(format.BitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// ParseWAV returns the PCM payload and format of a WAV file. Chunks other
// than "fmt " and "data" are skipped; only 16-bit PCM is accepted.
func ParseWAV(data []byte) ([]byte, AudioFormat, error) {
	var format AudioFormat
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, format, ErrNotWAV
	}

	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming writers leave the data size unset; take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, format, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			format.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if audioFormat != 1 {
				return nil, format, fmt.Errorf("only PCM format supported, got %d", audioFormat)
			}
			if format.BitsPerSample != 16 {
				return nil, format, fmt.Errorf("only 16-bit samples supported, got %d", format.BitsPerSample)
			}
			if format.Channels < 1 || format.SampleRate < 1 {
				return nil, format, fmt.Errorf("%w: bad fmt chunk", ErrNotWAV)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, format, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			return data[body:end], format, nil
		}
		pos = end + size%2
	}
	return nil, format, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
